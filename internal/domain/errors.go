package domain

import "errors"

// Error taxonomy for the simulation. Data-load failures are fatal; execution
// failures are local to one trade; parse and oracle failures are local to one
// agent at one decision point.
var (
	// ErrNoMarkets means the source was readable but empty after filtering.
	ErrNoMarkets = errors.New("no usable markets after filtering")

	// ErrInsufficientFunds means the position-size cap reduced a buy to zero.
	ErrInsufficientFunds = errors.New("insufficient bankroll")

	// ErrNoPosition means a sell was requested with no matching open position.
	ErrNoPosition = errors.New("no position to sell")

	// ErrUnknownAgent means a decision referenced an agent the ledger does not track.
	ErrUnknownAgent = errors.New("unknown agent")
)
