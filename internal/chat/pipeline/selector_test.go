package pipeline

import "testing"

func TestSelect(t *testing.T) {
	tests := []struct {
		name    string
		service string
		input   string
		want    string
	}{
		{name: "plain question", service: "chat", input: "explain goroutines", want: RouteChat},
		{name: "explicit web_search overrides", service: "web_search", input: "explain goroutines", want: RouteWebSearch},
		{name: "weather keyword", service: "chat", input: "What's the weather in Delhi?", want: RouteWebSearch},
		{name: "latest keyword", service: "chat", input: "latest Go release notes", want: RouteWebSearch},
		{name: "who is routes to web", service: "chat", input: "who is the president of France", want: RouteWebSearch},
		{name: "self inquiry", service: "chat", input: "Who are you?", want: RouteSelf},
		{name: "creator question", service: "chat", input: "who created you", want: RouteSelf},
		{name: "capabilities question", service: "chat", input: "what can you do for me", want: RouteSelf},
		{name: "real-time beats self-inquiry", service: "chat", input: "who are you watching in the election today", want: RouteWebSearch},
		{name: "mixed case", service: "chat", input: "LATEST news please", want: RouteWebSearch},
		{name: "empty input", service: "chat", input: "", want: RouteChat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Select(tt.service, tt.input); got != tt.want {
				t.Errorf("Select(%q, %q) = %q, want %q", tt.service, tt.input, got, tt.want)
			}
		})
	}
}

func TestSelect_Pure(t *testing.T) {
	// Same inputs, same answer, every time.
	for i := 0; i < 3; i++ {
		if got := Select("chat", "what's the stock price of ACME"); got != RouteWebSearch {
			t.Fatalf("call %d: Select = %q, want %q", i, got, RouteWebSearch)
		}
	}
}
