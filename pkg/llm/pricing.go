package llm

import "strings"

// Per-million-token USD prices, by model family. Cache-creation tokens are
// billed at 1.25x input; cache reads at 0.1x input.
type modelPricing struct {
	inputPerMTok  float64
	outputPerMTok float64
}

var pricingTable = map[string]modelPricing{
	"claude-opus":   {15.0, 75.0},
	"claude-sonnet": {3.0, 15.0},
	"claude-haiku":  {0.80, 4.0},
}

// estimateCostUSD computes the cost of one turn from its usage. Unknown
// models fall back to sonnet pricing.
func estimateCostUSD(model string, usage Usage) float64 {
	pricing := pricingTable["claude-sonnet"]
	for prefix, p := range pricingTable {
		if strings.HasPrefix(model, prefix) {
			pricing = p
			break
		}
	}

	const mTok = 1_000_000
	cost := float64(usage.InputTokens) * pricing.inputPerMTok / mTok
	cost += float64(usage.OutputTokens) * pricing.outputPerMTok / mTok
	cost += float64(usage.CacheCreationInputTokens) * pricing.inputPerMTok * 1.25 / mTok
	cost += float64(usage.CacheReadInputTokens) * pricing.inputPerMTok * 0.1 / mTok
	return cost
}
