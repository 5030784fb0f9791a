package mcp

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Handler is a builtin capability served locally, without an agent.
type Handler func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error)

// builtinHandlers wires the default local skills. The clock is
// injectable for tests.
func builtinHandlers(now func() time.Time) map[string]Handler {
	return map[string]Handler{
		"time":        timeHandler(now),
		"weather":     weatherHandler,
		"calculator":  calculatorHandler,
		"system_info": systemInfoHandler,
	}
}

// timeHandler answers time requests in one of three formats.
func timeHandler(now func() time.Time) Handler {
	return func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
		t := now()
		switch params["format"] {
		case "timestamp":
			return map[string]interface{}{"timestamp": t.Unix()}, nil
		case "iso":
			return map[string]interface{}{"time": t.Format(time.RFC3339)}, nil
		default:
			zone, _ := t.Zone()
			return map[string]interface{}{
				"time":     t.Format("3:04 PM"),
				"date":     t.Format("Monday, January 2, 2006"),
				"timezone": zone,
			}, nil
		}
	}
}

// weatherHandler is the stub used when no weather agent is connected.
func weatherHandler(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	return nil, fmt.Errorf("weather service temporarily unavailable: no weather agents connected")
}

// calculatorHandler evaluates a basic arithmetic expression.
func calculatorHandler(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	expression, _ := params["expression"].(string)
	if expression == "" {
		return nil, fmt.Errorf("%w: no expression provided", ErrBadExpression)
	}

	result, err := Evaluate(expression)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"result":     result,
		"expression": expression,
	}, nil
}

// systemInfoHandler reports basic process and host facts.
func systemInfoHandler(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]interface{}{
		"system":       runtime.GOOS,
		"architecture": runtime.GOARCH,
		"go_version":   runtime.Version(),
		"num_cpu":      runtime.NumCPU(),
		"goroutines":   runtime.NumGoroutine(),
		"heap_mb":      float64(mem.HeapAlloc) / (1024 * 1024),
	}, nil
}
