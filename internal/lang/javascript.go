package lang

// JavaScript sources are segmented with the same indentation heuristic, so
// only consistently indented code yields accurate function spans.
func init() {
	Languages["javascript"] = &Language{
		Name:       "javascript",
		Extensions: []string{".js", ".jsx"},
		Keyword:    "function",
	}
}
