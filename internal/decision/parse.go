package decision

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mixh8/Truth-Bench/internal/domain"
)

const defaultReasoning = "No reasoning provided"

// ParseError is a typed parse failure: the oracle answered, but the text
// could not be decoded into a decision. It carries the raw response so the
// tracer can record it.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decision parse failed: %s", e.Reason)
}

// responsePayload is the decoded JSON body of an oracle response. Numeric
// fields use json.Number so float quantities and missing fields both decode.
type responsePayload struct {
	Action         string      `json:"action"`
	Quantity       json.Number `json:"quantity"`
	Confidence     json.Number `json:"confidence"`
	ProbabilityYes json.Number `json:"probability_yes"`
	Reasoning      string      `json:"reasoning"`
}

// parseStrategy attempts to extract the payload from raw oracle text.
// Strategies return ok=false instead of failing; the first success wins.
type parseStrategy func(raw string) (responsePayload, bool)

var strategies = []parseStrategy{
	parseWhole,
	parseFenced,
	parseBraced,
}

var fencedRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// parseWhole treats the entire response as one JSON document.
func parseWhole(raw string) (responsePayload, bool) {
	return decodePayload(strings.TrimSpace(raw))
}

// parseFenced extracts the first fenced code block and parses its contents.
func parseFenced(raw string) (responsePayload, bool) {
	m := fencedRe.FindStringSubmatch(raw)
	if m == nil {
		return responsePayload{}, false
	}
	return decodePayload(m[1])
}

// parseBraced extracts the first balanced-brace substring and parses it.
// Braces inside string literals are skipped.
func parseBraced(raw string) (responsePayload, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return responsePayload{}, false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return decodePayload(raw[start : i+1])
			}
		}
	}
	return responsePayload{}, false
}

func decodePayload(s string) (responsePayload, bool) {
	var p responsePayload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return responsePayload{}, false
	}
	return p, true
}

// ParseDecision runs the ordered strategy pipeline over the raw response and
// builds a validated decision for the given agent and market.
//
// Out-of-range fields are repaired by clamping, never rejected: quantity to
// [0, 100], confidence to [0, 100], probability to [0, 1]. Unrecognized
// actions fall back to hold; missing reasoning gets a placeholder.
func ParseDecision(raw, agentID, ticker string, timestamp int64) (domain.TradingDecision, *ParseError) {
	var payload responsePayload
	ok := false
	for _, strategy := range strategies {
		if payload, ok = strategy(raw); ok {
			break
		}
	}
	if !ok {
		return domain.TradingDecision{}, &ParseError{Raw: raw, Reason: "no JSON object found in response"}
	}

	quantity := int(clamp(numberOr(payload.Quantity, 0), 0, 100))
	confidence := clamp(numberOr(payload.Confidence, 50), 0, 100)
	probability := clamp(numberOr(payload.ProbabilityYes, 0.5), 0, 1)

	reasoning := strings.TrimSpace(payload.Reasoning)
	if reasoning == "" {
		reasoning = defaultReasoning
	}

	return domain.TradingDecision{
		AgentID:        agentID,
		MarketTicker:   ticker,
		Timestamp:      timestamp,
		Action:         domain.ParseAction(strings.ToLower(strings.TrimSpace(payload.Action))),
		Quantity:       quantity,
		Confidence:     confidence,
		ProbabilityYes: probability,
		Reasoning:      reasoning,
	}, nil
}

// numberOr converts a json.Number, using def when the field was absent or
// not numeric.
func numberOr(n json.Number, def float64) float64 {
	if n.String() == "" {
		return def
	}
	v, err := n.Float64()
	if err != nil {
		return def
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
