package budget

import "math"

// ModelPrice holds per-token prices for a chat model.
type ModelPrice struct {
	// Input is the price per prompt token.
	Input float64

	// Output is the price per completion token.
	Output float64
}

// PriceTable maps (service, model) pairs to prices.
// Chat models are token-priced; voices are character-priced.
type PriceTable struct {
	chat  map[string]map[string]ModelPrice
	voice map[string]map[string]float64
}

// NewPriceTable creates an empty price table.
func NewPriceTable() *PriceTable {
	return &PriceTable{
		chat:  make(map[string]map[string]ModelPrice),
		voice: make(map[string]map[string]float64),
	}
}

// SetChatPrice registers per-token prices for a chat model.
func (t *PriceTable) SetChatPrice(service, model string, price ModelPrice) {
	if t.chat[service] == nil {
		t.chat[service] = make(map[string]ModelPrice)
	}
	t.chat[service][model] = price
}

// SetVoicePrice registers a per-character price for a voice model.
func (t *PriceTable) SetVoicePrice(service, model string, perChar float64) {
	if t.voice[service] == nil {
		t.voice[service] = make(map[string]float64)
	}
	t.voice[service][model] = perChar
}

// EstimateChat returns the cost of a chat call.
// Unknown service/model pairs estimate zero so that an unrecognized model
// never blocks execution on cost grounds alone.
func (t *PriceTable) EstimateChat(service, model string, inputTokens, outputTokens int) float64 {
	price, ok := t.chat[service][model]
	if !ok {
		return 0
	}
	return Round(float64(inputTokens)*price.Input + float64(outputTokens)*price.Output)
}

// EstimateVoice returns the cost of a synthesis call.
// Unknown service/model pairs estimate zero.
func (t *PriceTable) EstimateVoice(service, model string, characters int) float64 {
	perChar, ok := t.voice[service][model]
	if !ok {
		return 0
	}
	return Round(float64(characters) * perChar)
}

// EstimateTokens approximates the token count of text when the provider
// has not reported exact usage. Fixed heuristic: four characters per token.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// Round rounds a monetary amount to 6 decimal places. All amounts are
// rounded at the point cost is computed or recorded so floating error
// never accumulates across many small calls.
func Round(amount float64) float64 {
	return math.Round(amount*1e6) / 1e6
}

// DefaultPriceTable returns the static price table for the stock services.
// Prices are per token (chat) or per character (voice).
func DefaultPriceTable() *PriceTable {
	t := NewPriceTable()

	openai := map[string]ModelPrice{
		"gpt-4.1":       {Input: 0.015 / 1000, Output: 0.060 / 1000},
		"gpt-4o":        {Input: 0.005 / 1000, Output: 0.015 / 1000},
		"gpt-4o-mini":   {Input: 0.0015 / 1000, Output: 0.006 / 1000},
		"gpt-4-turbo":   {Input: 0.01 / 1000, Output: 0.03 / 1000},
		"gpt-4":         {Input: 0.03 / 1000, Output: 0.06 / 1000},
		"gpt-3.5-turbo": {Input: 0.0015 / 1000, Output: 0.002 / 1000},
	}
	for model, price := range openai {
		t.SetChatPrice("openai", model, price)
	}

	claude := map[string]ModelPrice{
		"claude-3-sonnet": {Input: 0.003 / 1000, Output: 0.015 / 1000},
		"claude-3-haiku":  {Input: 0.00025 / 1000, Output: 0.00125 / 1000},
	}
	for model, price := range claude {
		t.SetChatPrice("claude", model, price)
	}

	t.SetVoicePrice("elevenlabs", "standard", 0.18/1000)
	t.SetVoicePrice("elevenlabs", "premium", 0.30/1000)

	return t
}
