package decision_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixh8/Truth-Bench/internal/decision"
	"github.com/mixh8/Truth-Bench/internal/domain"
)

func parse(t *testing.T, raw string) domain.TradingDecision {
	t.Helper()
	d, perr := decision.ParseDecision(raw, "model-a", "MKT-A", 1234)
	require.Nil(t, perr)
	return d
}

func TestParseDecision_WholeJSON(t *testing.T) {
	d := parse(t, `{"action":"buy_yes","quantity":25,"confidence":80,"probability_yes":0.7,"reasoning":"price momentum"}`)

	assert.Equal(t, domain.ActionBuyYes, d.Action)
	assert.Equal(t, 25, d.Quantity)
	assert.Equal(t, 80.0, d.Confidence)
	assert.Equal(t, 0.7, d.ProbabilityYes)
	assert.Equal(t, "price momentum", d.Reasoning)
	assert.Equal(t, "model-a", d.AgentID)
	assert.Equal(t, "MKT-A", d.MarketTicker)
	assert.Equal(t, int64(1234), d.Timestamp)
}

func TestParseDecision_FencedBlock(t *testing.T) {
	raw := "Here is my decision:\n```json\n{\"action\": \"buy_no\", \"quantity\": 10, \"confidence\": 60, \"probability_yes\": 0.3, \"reasoning\": \"overpriced\"}\n```\nGood luck!"

	d := parse(t, raw)
	assert.Equal(t, domain.ActionBuyNo, d.Action)
	assert.Equal(t, 10, d.Quantity)
}

func TestParseDecision_BalancedBraceFallback(t *testing.T) {
	raw := `After careful analysis I decided: {"action": "sell_yes", "quantity": 5, "confidence": 90, "probability_yes": 0.9, "reasoning": "taking profit {locked in}"} end of answer`

	d := parse(t, raw)
	assert.Equal(t, domain.ActionSellYes, d.Action)
	assert.Equal(t, 5, d.Quantity)
	assert.Equal(t, "taking profit {locked in}", d.Reasoning)
}

func TestParseDecision_NotJSONAtAll(t *testing.T) {
	_, perr := decision.ParseDecision("not json at all", "model-a", "MKT-A", 1234)

	require.NotNil(t, perr)
	assert.Equal(t, "not json at all", perr.Raw)
	assert.NotEmpty(t, perr.Reason)
}

func TestParseDecision_ClampsOutOfRangeFields(t *testing.T) {
	d := parse(t, `{"action":"buy_yes","quantity":5000,"confidence":150,"probability_yes":1.7,"reasoning":"all in"}`)

	assert.Equal(t, 100, d.Quantity)
	assert.Equal(t, 100.0, d.Confidence)
	assert.Equal(t, 1.0, d.ProbabilityYes)
}

func TestParseDecision_NegativeFieldsClampToZero(t *testing.T) {
	d := parse(t, `{"action":"buy_no","quantity":-5,"confidence":-1,"probability_yes":-0.2}`)

	assert.Equal(t, 0, d.Quantity)
	assert.Equal(t, 0.0, d.Confidence)
	assert.Equal(t, 0.0, d.ProbabilityYes)
}

func TestParseDecision_DefaultsForMissingFields(t *testing.T) {
	d := parse(t, `{"action":"hold"}`)

	assert.Equal(t, domain.ActionHold, d.Action)
	assert.Equal(t, 0, d.Quantity)
	assert.Equal(t, 50.0, d.Confidence)
	assert.Equal(t, 0.5, d.ProbabilityYes)
	assert.Equal(t, "No reasoning provided", d.Reasoning)
}

func TestParseDecision_UnknownActionDefaultsToHold(t *testing.T) {
	d := parse(t, `{"action":"short_the_moon","quantity":10}`)
	assert.Equal(t, domain.ActionHold, d.Action)
}

func TestParseDecision_BareSellAliasesToSellYes(t *testing.T) {
	d := parse(t, `{"action":"sell","quantity":10}`)
	assert.Equal(t, domain.ActionSellYes, d.Action)
}

func TestParseDecision_FloatQuantityTruncates(t *testing.T) {
	d := parse(t, `{"action":"buy_yes","quantity":12.7}`)
	assert.Equal(t, 12, d.Quantity)
}
