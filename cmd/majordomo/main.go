// Command majordomo runs the voice assistant shell: a budget-gated LLM
// cascade, tiered voice output, capability routing to MCP agents, and
// a web dashboard. Interactively it reads commands from stdin; the
// dashboard's /api/ask accepts the same commands over HTTP.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/majordomo-ai/majordomo/internal/config"
	"github.com/majordomo-ai/majordomo/internal/log"
	"github.com/majordomo-ai/majordomo/pkg/assistant"
	"github.com/majordomo-ai/majordomo/pkg/budget"
	"github.com/majordomo-ai/majordomo/pkg/llm"
	"github.com/majordomo-ai/majordomo/pkg/mcp"
	"github.com/majordomo-ai/majordomo/pkg/speech"
	"github.com/majordomo-ai/majordomo/pkg/usage"
	"github.com/majordomo-ai/majordomo/pkg/web"
)

const defaultSystemPrompt = "You are Majordomo, a capable household assistant. " +
	"Be efficient, helpful, and concise."

func main() {
	cfg := config.Default()

	budgetFile := flag.String("budget", cfg.BudgetFile, "Budget ledger file")
	usageDB := flag.String("usage-db", cfg.UsageDB, "SQLite usage journal (empty disables)")
	roster := flag.String("roster", "majordomo.yaml", "Roster file with limits and agents")
	port := flag.String("port", cfg.WebPort, "Dashboard port")
	workers := flag.Int("workers", cfg.Workers, "Worker pool size")
	mute := flag.Bool("mute", false, "Disable voice output")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// .env is a convenience for development; absence is fine.
	godotenv.Load()

	level := "info"
	if *debug {
		level = "debug"
	}
	log.Init(level)
	logger := log.L()

	cfg.BudgetFile = *budgetFile
	cfg.UsageDB = *usageDB
	cfg.WebPort = *port
	cfg.Workers = *workers
	cfg.Debug = *debug
	cfg.SystemPrompt = defaultSystemPrompt
	cfg.LoadEnv()
	if err := cfg.LoadRoster(*roster); err != nil {
		logger.Error("roster load failed", "path", *roster, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	a, srv, err := build(cfg, *mute)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv.StartAsync()
	defer srv.Shutdown()

	printBanner(a, cfg)
	repl(ctx, a)

	fmt.Println("Goodbye.")
}

// build constructs the assistant and dashboard from configuration.
func build(cfg config.Config, mute bool) (*assistant.Assistant, *web.Server, error) {
	logger := log.L()

	// Budget ledger, persisted to disk, with roster overrides.
	var ledgerOpts []budget.Option
	if len(cfg.Limits) > 0 {
		limits := make(map[string]map[budget.Period]float64, len(cfg.Limits))
		for service, periods := range cfg.Limits {
			limits[service] = make(map[budget.Period]float64, len(periods))
			for p, amount := range periods {
				limits[service][budget.Period(p)] = amount
			}
		}
		ledgerOpts = append(ledgerOpts, budget.WithLimits(limits))
	}
	ledger, err := budget.NewLedger(budget.NewJSONStore(cfg.BudgetFile), ledgerOpts...)
	if err != nil {
		return nil, nil, err
	}

	// LLM cascade: free local tier first, then the paid providers.
	providers := []llm.Provider{
		llm.NewOllama(llm.WithBaseURL(cfg.OllamaHost)),
		llm.NewOpenAI(llm.WithAPIKey(cfg.OpenAIKey)),
		llm.NewAnthropic(llm.WithAPIKey(cfg.AnthropicKey)),
	}
	orch, err := llm.NewOrchestrator(ledger, providers,
		llm.WithMaxContextTokens(cfg.MaxContextTokens),
		llm.WithAttemptTimeout(cfg.LLMTimeout),
		llm.WithSystemPrompt(cfg.SystemPrompt),
	)
	if err != nil {
		return nil, nil, err
	}

	// Voice cascade: premium, free cloud, offline, then text.
	tiers := []speech.Provider{
		speech.NewElevenLabs(
			speech.WithAPIKey(cfg.ElevenLabsKey),
			speech.WithVoice(cfg.ElevenLabsVoice),
		),
		speech.NewGTTS(),
		speech.NewEspeak(),
		speech.NewText(),
	}
	speaker, err := speech.NewSpeaker(ledger, tiers)
	if err != nil {
		return nil, nil, err
	}

	// Capability router with the roster's agents.
	router := mcp.NewRouter()
	for _, agent := range cfg.Agents {
		priority := agent.Priority
		if priority <= 0 {
			priority = 1
		}
		if err := router.Register(agent.Name, agent.Endpoint, agent.Capabilities, agent.AuthToken, priority); err != nil {
			logger.Warn("skipping roster agent", "agent", agent.Name, "error", err)
		}
	}

	// Usage journal, optional.
	var recorder usage.Recorder = usage.Noop{}
	if cfg.UsageDB != "" {
		journal, err := usage.OpenSQLite(cfg.UsageDB)
		if err != nil {
			logger.Warn("usage journal disabled", "error", err)
		} else {
			recorder = journal
		}
	}

	a, err := assistant.New(orch, speaker, router, ledger,
		assistant.WithRecorder(recorder),
		assistant.WithWorkers(cfg.Workers),
		assistant.WithMute(mute),
	)
	if err != nil {
		return nil, nil, err
	}

	return a, web.NewServer(cfg.WebPort, a, logger), nil
}

// printBanner reports what came up.
func printBanner(a *assistant.Assistant, cfg config.Config) {
	status := a.Status()

	fmt.Println("Majordomo assistant")
	available := make([]string, 0, len(status.Providers))
	for _, p := range status.Providers {
		if p.Available {
			available = append(available, p.Name)
		}
	}
	fmt.Printf("  LLM providers: %s\n", strings.Join(available, ", "))

	voices := make([]string, 0, len(status.Voice))
	for _, tier := range status.Voice {
		if avail, _ := tier["available"].(bool); avail {
			voices = append(voices, fmt.Sprint(tier["name"]))
		}
	}
	fmt.Printf("  Voice tiers:   %s\n", strings.Join(voices, ", "))
	fmt.Printf("  Agents:        %d/%d healthy\n", status.Agents.HealthyAgents, status.Agents.TotalAgents)
	fmt.Printf("  Dashboard:     http://localhost:%s\n", cfg.WebPort)
	fmt.Println("Type a command, or 'exit' to quit.")
}

// repl reads commands from stdin until EOF, exit, or cancellation.
func repl(ctx context.Context, a *assistant.Assistant) {
	scanner := bufio.NewScanner(os.Stdin)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			input := strings.TrimSpace(line)
			if input == "" {
				continue
			}
			if input == "exit" || input == "quit" {
				return
			}

			turn, err := a.Handle(ctx, input)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Printf("%s\n", turn.Response)
			if turn.Cost > 0 {
				fmt.Printf("  [%s, $%.4f]\n", turn.Source, turn.Cost)
			} else {
				fmt.Printf("  [%s]\n", turn.Source)
			}
		}
	}
}
