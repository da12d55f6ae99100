package domain

// MatchSpan is one scored window of a document.
// Start and End are byte offsets, Text == document[Start:End].
type MatchSpan struct {
	Similarity float64 `json:"similarity"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Text       string  `json:"word"`
}

// RankedItem is a search candidate. The ranker orders by Similarity only.
type RankedItem[T any] struct {
	Key        string
	Similarity float64
	Payload    T
}
