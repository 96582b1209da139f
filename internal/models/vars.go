package models

import "encoding/json"

// Vars turns a config struct into template variables keyed by its JSON field
// names. Values that cannot be encoded yield an empty map.
func Vars(v any) map[string]any {
	vars := map[string]any{}
	data, err := json.Marshal(v)
	if err != nil {
		return vars
	}
	if err := json.Unmarshal(data, &vars); err != nil {
		return map[string]any{}
	}
	return vars
}
