package domain

// Action is a trading action an agent can take at a decision point.
type Action string

const (
	ActionBuyYes  Action = "buy_yes"
	ActionBuyNo   Action = "buy_no"
	ActionHold    Action = "hold"
	ActionSellYes Action = "sell_yes"
	ActionSellNo  Action = "sell_no"
)

// actionLookup is the closed set of accepted action strings. "sell" without a
// side is treated as selling the YES leg.
var actionLookup = map[string]Action{
	"buy_yes":  ActionBuyYes,
	"buy_no":   ActionBuyNo,
	"hold":     ActionHold,
	"sell_yes": ActionSellYes,
	"sell_no":  ActionSellNo,
	"sell":     ActionSellYes,
}

// ParseAction maps a raw action string to the action set.
// Unrecognized values default to hold.
func ParseAction(s string) Action {
	if a, ok := actionLookup[s]; ok {
		return a
	}
	return ActionHold
}

// IsBuy reports whether the action opens or adds to a position.
func (a Action) IsBuy() bool {
	return a == ActionBuyYes || a == ActionBuyNo
}

// IsSell reports whether the action exits an existing position.
func (a Action) IsSell() bool {
	return a == ActionSellYes || a == ActionSellNo
}

// TradingDecision is a structured decision produced by the decision protocol.
// Appended to an agent's history and never mutated afterwards.
type TradingDecision struct {
	AgentID        string
	MarketTicker   string
	Timestamp      int64
	Action         Action
	Quantity       int     // contracts, clamped to [0, 100]
	Confidence     float64 // 0-100
	ProbabilityYes float64 // 0.0-1.0
	Reasoning      string
}
