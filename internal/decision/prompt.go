package decision

import (
	"fmt"
	"strings"

	"github.com/mixh8/Truth-Bench/internal/domain"
)

// SystemPrompt frames the trading task and pins the JSON response contract.
const SystemPrompt = `You are an expert prediction market trader participating in a simulation.
Your goal is to make profitable trading decisions based on the market information provided.

You will be shown a prediction market and its current state. Based on your analysis,
you must decide whether to:
- BUY YES contracts (if you think the event will happen)
- BUY NO contracts (if you think the event won't happen)
- HOLD (if you're uncertain or already have a position)
- SELL (if you want to exit an existing position)

Important rules:
1. Contracts pay $1 if correct, $0 if wrong
2. Prices are in cents (0-100), representing probability
3. You should NEVER see the actual result - make predictions based only on the information given
4. Consider the market price as the crowd's estimate - you can agree or disagree
5. Factor in time until resolution when assessing risk

You MUST respond with valid JSON in exactly this format:
{
  "action": "buy_yes" | "buy_no" | "hold" | "sell_yes" | "sell_no",
  "quantity": <number of contracts 1-100>,
  "confidence": <0-100>,
  "probability_yes": <0.0-1.0>,
  "reasoning": "<brief explanation>"
}`

// BuildPrompt renders the market state and the agent's portfolio into the
// user prompt. It is a pure function: identical inputs produce identical
// text, and the market's ground-truth result is never rendered.
func BuildPrompt(state domain.MarketState, portfolio *domain.Portfolio) string {
	var b strings.Builder

	b.WriteString("=== PREDICTION MARKET ===\n\n")
	fmt.Fprintf(&b, "**Question:** %s\n\n", state.Title)
	fmt.Fprintf(&b, "**Rules:** %s\n\n", state.RulesPrimary)

	mid := (state.CurrentYesBid + state.CurrentYesAsk) / 2
	implied := 0.5
	if mid > 0 {
		implied = mid / 100
	}

	b.WriteString("**Market Data:**\n")
	fmt.Fprintf(&b, "- Current YES price: %.0f¢ bid / %.0f¢ ask\n", state.CurrentYesBid, state.CurrentYesAsk)
	fmt.Fprintf(&b, "- Implied probability: %.1f%%\n", implied*100)
	fmt.Fprintf(&b, "- Total volume: %d contracts\n", state.Volume)
	fmt.Fprintf(&b, "- Open interest: %d contracts\n", state.OpenInterest)
	fmt.Fprintf(&b, "- %s\n\n", priceSummary(state.PriceHistory))

	b.WriteString("**Timeline:**\n")
	fmt.Fprintf(&b, "- Market opened: %s\n", state.OpenTime)
	fmt.Fprintf(&b, "- Market closes: %s\n\n", state.CloseTime)

	b.WriteString("**Your Portfolio:**\n")
	fmt.Fprintf(&b, "- Available bankroll: $%.2f\n", portfolio.Bankroll/100)
	fmt.Fprintf(&b, "- %s\n\n", positionSummary(state.Ticker, portfolio))

	b.WriteString("Based on this information, what trading decision do you make?\n")
	b.WriteString("Remember to respond with valid JSON only.")

	return b.String()
}

// priceSummary describes the visible price path in one line.
func priceSummary(history []domain.Candlestick) string {
	var prices []float64
	for _, c := range history {
		if c.PriceClose != 0 {
			prices = append(prices, c.PriceClose)
		}
	}
	if len(prices) == 0 {
		return "No price history available"
	}

	high, low := prices[0], prices[0]
	for _, p := range prices {
		if p > high {
			high = p
		}
		if p < low {
			low = p
		}
	}
	return fmt.Sprintf("Price started at %.0f¢, now at %.0f¢ (high: %.0f¢, low: %.0f¢)",
		prices[0], prices[len(prices)-1], high, low)
}

// positionSummary describes the agent's holding in this market, if any.
func positionSummary(ticker string, portfolio *domain.Portfolio) string {
	pos, ok := portfolio.Positions[ticker]
	if !ok {
		return "You have no position in this market."
	}
	return fmt.Sprintf("You hold %d %s contracts at avg price %.1f¢",
		pos.Quantity, strings.ToUpper(string(pos.Side)), pos.AvgPrice)
}
