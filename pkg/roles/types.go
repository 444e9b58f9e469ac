package roles

// SearchResult is a single hit returned by a Searcher.
type SearchResult struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Link  string `json:"link"`
}
