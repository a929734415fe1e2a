package ledger

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/mixh8/Truth-Bench/internal/domain"
)

// TradeExecution is the result of applying one decision to a portfolio.
// Failed trades (insufficient bankroll, no position) are reported here as
// values, not errors to the caller: the decision is still recorded.
type TradeExecution struct {
	AgentID      string
	MarketTicker string
	Action       domain.Action
	Executed     bool
	Quantity     int     // contracts actually moved
	Price        float64 // execution price in cents
	Cost         float64 // quantity × price
	Err          error   // domain.ErrInsufficientFunds, domain.ErrNoPosition, ...
}

// Settlement is the realized outcome of one agent's position when a market
// resolves.
type Settlement struct {
	AgentID  string
	Side     domain.Side
	Quantity int
	PnL      float64
}

// Ledger owns every agent's portfolio for the lifetime of a simulation.
// It is the only writer: all calls happen on the orchestrator's thread.
type Ledger struct {
	portfolios      map[string]*domain.Portfolio
	agentOrder      []string
	maxPositionFrac float64
}

// New creates a ledger with one portfolio per agent, all starting at the
// same bankroll. maxPositionFrac caps any single buy to that fraction of the
// agent's current bankroll.
func New(agentIDs []string, agentNames map[string]string, initialBankroll, maxPositionFrac float64) *Ledger {
	portfolios := make(map[string]*domain.Portfolio, len(agentIDs))
	for _, id := range agentIDs {
		name := agentNames[id]
		if name == "" {
			name = id
		}
		portfolios[id] = domain.NewPortfolio(id, name, initialBankroll)
	}

	slog.Info("ledger initialized",
		"agents", len(agentIDs),
		"initial_bankroll", initialBankroll,
		"max_position_frac", maxPositionFrac,
	)
	return &Ledger{
		portfolios:      portfolios,
		agentOrder:      append([]string(nil), agentIDs...),
		maxPositionFrac: maxPositionFrac,
	}
}

// Portfolio returns one agent's portfolio, or nil if unknown.
func (l *Ledger) Portfolio(agentID string) *domain.Portfolio {
	return l.portfolios[agentID]
}

// Portfolios returns all portfolios in original agent order.
func (l *Ledger) Portfolios() []*domain.Portfolio {
	out := make([]*domain.Portfolio, 0, len(l.agentOrder))
	for _, id := range l.agentOrder {
		out = append(out, l.portfolios[id])
	}
	return out
}

// PortfolioMap returns the ticker-keyed portfolio map shared with the
// decision fan-out. Read-only for callers.
func (l *Ledger) PortfolioMap() map[string]*domain.Portfolio {
	return l.portfolios
}

// Execute applies one decision against the market state. The decision is
// always appended to the agent's history; state changes only happen for
// trades that actually move size.
func (l *Ledger) Execute(decision domain.TradingDecision, state domain.MarketState) TradeExecution {
	exec := TradeExecution{
		AgentID:      decision.AgentID,
		MarketTicker: decision.MarketTicker,
		Action:       decision.Action,
	}

	portfolio, ok := l.portfolios[decision.AgentID]
	if !ok {
		exec.Err = fmt.Errorf("ledger.Execute: %q: %w", decision.AgentID, domain.ErrUnknownAgent)
		return exec
	}

	portfolio.Decisions = append(portfolio.Decisions, decision)

	switch decision.Action {
	case domain.ActionHold:
		exec.Executed = true
		return exec
	case domain.ActionBuyYes, domain.ActionBuyNo:
		return l.executeBuy(portfolio, decision, state, exec)
	case domain.ActionSellYes, domain.ActionSellNo:
		return l.executeSell(portfolio, decision, state, exec)
	}
	return exec
}

// executeBuy pays the ask for YES, 100−bid for NO. The requested quantity is
// capped so the cost never exceeds maxPositionFrac of the current bankroll.
func (l *Ledger) executeBuy(portfolio *domain.Portfolio, decision domain.TradingDecision, state domain.MarketState, exec TradeExecution) TradeExecution {
	var price float64
	var side domain.Side
	if decision.Action == domain.ActionBuyYes {
		price = state.CurrentYesAsk
		side = domain.SideYes
	} else {
		price = 100 - state.CurrentYesBid
		side = domain.SideNo
	}
	price = boundPrice(price)
	exec.Price = price

	maxQuantity := int(math.Floor(portfolio.Bankroll * l.maxPositionFrac / price))
	quantity := min(decision.Quantity, maxQuantity)
	if quantity <= 0 {
		exec.Err = domain.ErrInsufficientFunds
		return exec
	}

	cost := float64(quantity) * price
	portfolio.Bankroll -= cost

	ticker := decision.MarketTicker
	if existing, ok := portfolio.Positions[ticker]; ok && existing.Side == side {
		// Same side: merge by volume-weighted average price.
		totalCost := existing.AvgPrice*float64(existing.Quantity) + cost
		existing.Quantity += quantity
		existing.AvgPrice = totalCost / float64(existing.Quantity)
		portfolio.Positions[ticker] = existing
	} else {
		// New position, or opposite side replaced outright. The old side's
		// cost basis is abandoned, not sold.
		portfolio.Positions[ticker] = domain.Position{
			MarketTicker:   ticker,
			Side:           side,
			Quantity:       quantity,
			AvgPrice:       price,
			EntryTimestamp: decision.Timestamp,
		}
	}
	portfolio.TotalTrades++

	exec.Executed = true
	exec.Quantity = quantity
	exec.Cost = cost

	slog.Debug("trade executed",
		"agent", decision.AgentID,
		"action", decision.Action,
		"quantity", quantity,
		"price", price,
		"market", ticker,
	)
	return exec
}

// executeSell requires an open position on the matching side. The sale price
// is the opposite side of the book: bid for YES, 100−ask for NO.
func (l *Ledger) executeSell(portfolio *domain.Portfolio, decision domain.TradingDecision, state domain.MarketState, exec TradeExecution) TradeExecution {
	side := domain.SideYes
	if decision.Action == domain.ActionSellNo {
		side = domain.SideNo
	}

	position, ok := portfolio.Positions[decision.MarketTicker]
	if !ok || position.Side != side {
		exec.Err = domain.ErrNoPosition
		return exec
	}

	var price float64
	if side == domain.SideYes {
		price = state.CurrentYesBid
	} else {
		price = 100 - state.CurrentYesAsk
	}
	price = boundPrice(price)
	exec.Price = price

	quantity := min(decision.Quantity, position.Quantity)
	if quantity <= 0 {
		return exec
	}

	proceeds := float64(quantity) * price
	portfolio.Bankroll += proceeds
	if price > position.AvgPrice {
		portfolio.WinningTrades++
	}

	position.Quantity -= quantity
	if position.Quantity <= 0 {
		delete(portfolio.Positions, decision.MarketTicker)
	} else {
		portfolio.Positions[decision.MarketTicker] = position
	}
	portfolio.TotalTrades++

	exec.Executed = true
	exec.Quantity = quantity
	exec.Cost = proceeds

	slog.Debug("trade executed",
		"agent", decision.AgentID,
		"action", decision.Action,
		"quantity", quantity,
		"price", price,
		"market", decision.MarketTicker,
	)
	return exec
}

// SettleMarket realizes P&L for every agent holding a position in the
// resolved market: 100¢ per contract on the winning side, 0¢ otherwise.
// The position is deleted, so settling the same ticker again is a no-op.
func (l *Ledger) SettleMarket(ticker string, result domain.Result) map[string]Settlement {
	settlements := make(map[string]Settlement, len(l.agentOrder))

	for _, agentID := range l.agentOrder {
		portfolio := l.portfolios[agentID]
		position, ok := portfolio.Positions[ticker]
		if !ok {
			settlements[agentID] = Settlement{AgentID: agentID}
			continue
		}

		var settlementValue float64
		if position.Side.Matches(result) {
			settlementValue = 100
		}

		proceeds := float64(position.Quantity) * settlementValue
		pnl := proceeds - float64(position.Quantity)*position.AvgPrice

		portfolio.Bankroll += proceeds
		if pnl > 0 {
			portfolio.WinningTrades++
		}
		delete(portfolio.Positions, ticker)

		settlements[agentID] = Settlement{
			AgentID:  agentID,
			Side:     position.Side,
			Quantity: position.Quantity,
			PnL:      pnl,
		}

		slog.Info("market settled",
			"agent", agentID,
			"market", ticker,
			"side", position.Side,
			"quantity", position.Quantity,
			"result", result,
			"pnl", pnl,
		)
	}
	return settlements
}

// RecordSnapshots appends a value snapshot to every portfolio.
func (l *Ledger) RecordSnapshots(timestamp int64) {
	for _, portfolio := range l.portfolios {
		portfolio.Snapshots = append(portfolio.Snapshots, domain.Snapshot{
			Timestamp:     timestamp,
			Bankroll:      portfolio.Bankroll,
			TotalValue:    portfolio.TotalValue(),
			OpenPositions: len(portfolio.Positions),
		})
	}
}

// boundPrice keeps execution prices inside the valid contract range.
func boundPrice(price float64) float64 {
	if price <= 0 {
		return 1
	}
	if price > 100 {
		return 99
	}
	return price
}
