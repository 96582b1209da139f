package agent

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	const observation = `{{- if lt (len .output) 20}}{{.output}}{{else}}{{slice .output 0 5}}...{{sub (len .output) 10}} elided...{{slice .output (sub (len .output) 5)}}{{end}}`

	tests := []struct {
		name    string
		tmpl    string
		vars    map[string]any
		want    string
		wantErr string
	}{
		{
			name: "plain variable",
			tmpl: "Task: {{.task}}",
			vars: map[string]any{"task": "fix it"},
			want: "Task: fix it",
		},
		{
			name: "short output kept",
			tmpl: observation,
			vars: map[string]any{"output": "all good"},
			want: "all good",
		},
		{
			name: "long output truncated",
			tmpl: observation,
			vars: map[string]any{"output": "abcde" + strings.Repeat("x", 20) + "vwxyz"},
			want: "abcde...20 elided...vwxyz",
		},
		{
			name:    "missing variable",
			tmpl:    "{{.nope}}",
			vars:    map[string]any{},
			wantErr: "executing template",
		},
		{
			name:    "bad syntax",
			tmpl:    "{{.task",
			vars:    map[string]any{},
			wantErr: "parsing template",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := render(tt.tmpl, tt.vars)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("render() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("render() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMergeVars(t *testing.T) {
	got := mergeVars(
		map[string]any{"a": 1, "b": 1},
		nil,
		map[string]any{"b": 2, "c": 2},
	)
	if got["a"] != 1 || got["b"] != 2 || got["c"] != 2 {
		t.Errorf("mergeVars() = %v", got)
	}
}
