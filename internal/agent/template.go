package agent

import (
	"fmt"
	"maps"
	"strings"
	"text/template"
)

var funcs = template.FuncMap{
	"sub": func(a, b int) int { return a - b },
}

// render executes tmpl with vars. Referencing an undefined variable is an
// error rather than an empty string.
func render(tmpl string, vars map[string]any) (string, error) {
	t, err := template.New("prompt").Funcs(funcs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}
	var b strings.Builder
	if err := t.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return b.String(), nil
}

func mergeVars(sources ...map[string]any) map[string]any {
	vars := make(map[string]any)
	for _, src := range sources {
		maps.Copy(vars, src)
	}
	return vars
}
