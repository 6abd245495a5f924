package llm

import "strings"

// estimateTokensFromText is a rough chars/4 approximation used for budget
// admission before a provider is asked for an exact count; actual usage
// always comes from the provider's response and is what gets settled.
func estimateTokensFromText(s string) int64 {
	if s == "" {
		return 0
	}
	return int64(len(s)/4) + 1
}

func flattenHistory(req Request) string {
	var b strings.Builder
	b.WriteString(req.System)
	for _, t := range req.Messages {
		b.WriteString(t.Content)
	}
	return b.String()
}
