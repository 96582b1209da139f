package models

// Message is a single entry of an agent's conversation history.
type Message struct {
	Role    string         `json:"role"`
	Content string         `json:"content"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Response is a model's reply to a query.
type Response struct {
	Content string
	Extra   map[string]any
}

// ExecResult is the outcome of a command executed in an environment.
// Output holds stdout and stderr interleaved.
type ExecResult struct {
	Output     string `json:"output"`
	ReturnCode int    `json:"returncode"`
}

// Vars returns the result as template variables.
func (r ExecResult) Vars() map[string]any {
	return map[string]any{
		"output":     r.Output,
		"returncode": r.ReturnCode,
	}
}
