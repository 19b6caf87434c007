package llm

// Per-1K-token input prices in USD, used for coarse cost estimates on
// the job metrics. Prices for unknown models fall back to gpt-4o-mini.
var inputPricePer1K = map[string]float64{
	"gpt-4o":        0.0025,
	"gpt-4o-mini":   0.00015,
	"gpt-3.5-turbo": 0.001,
}

// EstimateCost approximates the cost of a call from its total token usage.
func EstimateCost(model string, tokens int) float64 {
	price, ok := inputPricePer1K[model]
	if !ok {
		price = inputPricePer1K["gpt-4o-mini"]
	}
	return float64(tokens) / 1000 * price
}
