package metrics

// Metrics holds LLM usage for a time period.
type Metrics struct {
	llmRequests      int
	tokens           int
	costMillidollars int
}

// New creates a Metrics snapshot.
func New(requests, tokens, costMillidollars int) Metrics {
	return Metrics{llmRequests: requests, tokens: tokens, costMillidollars: costMillidollars}
}

// LLMRequests returns the number of model calls.
func (m Metrics) LLMRequests() int { return m.llmRequests }

// Tokens returns the total tokens consumed.
func (m Metrics) Tokens() int { return m.tokens }

// CostMillidollars returns cost in millidollars (1 USD = 1000).
func (m Metrics) CostMillidollars() int { return m.costMillidollars }
