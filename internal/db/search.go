package db

// TextQuery is the input for a scored full-text search.
// Query is passed to FT.SEARCH verbatim; callers are responsible for escaping.
type TextQuery struct {
	IndexName    string
	Query        string
	Offset       int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// Score is nil when the engine did not report one.
type SearchEntry struct {
	Key    string
	Score  *float64
	Fields map[string]string
}
