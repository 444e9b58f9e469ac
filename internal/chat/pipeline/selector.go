package pipeline

import "strings"

// Route names produced by the selector.
const (
	RouteChat      = "chat"
	RouteWebSearch = "web_search"
	RouteSelf      = "self"
)

// realTimeKeywords mark queries that need fresh information from the web.
var realTimeKeywords = []string{
	"today", "tonight", "latest", "current", "currently", "now",
	"recent", "news", "weather", "temperature", "forecast",
	"stock", "price", "score", "election", "live", "update",
	"happening", "who is",
}

// selfInquiryKeywords mark questions about the assistant itself.
var selfInquiryKeywords = []string{
	"who are you", "what are you", "your name",
	"who made you", "who created you",
	"what can you do", "tell me about yourself",
}

// Select picks the route for a query. An explicit web_search service
// request overrides the heuristics; otherwise real-time keywords are
// checked before self-inquiry ones.
func Select(service, input string) string {
	if service == RouteWebSearch {
		return RouteWebSearch
	}

	lower := strings.ToLower(input)
	for _, kw := range realTimeKeywords {
		if strings.Contains(lower, kw) {
			return RouteWebSearch
		}
	}
	for _, kw := range selfInquiryKeywords {
		if strings.Contains(lower, kw) {
			return RouteSelf
		}
	}
	return RouteChat
}
