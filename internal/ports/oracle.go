package ports

import "context"

// ChatRequest is a single completion request for one agent model.
type ChatRequest struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// ChatResponse is the raw oracle output plus usage accounting when the
// provider reports it. Token and cost fields are zero when unavailable.
type ChatResponse struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
}

// Oracle is the external decision-making agent the engine queries. It is an
// opaque, possibly unreliable function: a returned error means the call
// itself failed, not that the text is unparseable.
type Oracle interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
}
