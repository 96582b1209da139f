// Package trajectory records the outcome of an agent run as a JSON file.
//
// A trajectory holds the run's exit status and submission, the model's spend,
// the full conversation, and the configuration and concrete types of the
// agent, model and environment:
//
//	{
//	  "info": {
//	    "exit_status": "Submitted",
//	    "submission": "...",
//	    "model_stats": {"instance_cost": 0.12, "api_calls": 7},
//	    "config": {"agent": {...}, "model": {...}, "environment": {...}, ...}
//	  },
//	  "messages": [{"role": "system", "content": "..."}, ...]
//	}
package trajectory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"slices"

	"github.com/spachava753/coderun/internal/agent"
)

// Option configures Save.
type Option func(*options)

type field struct {
	key   string
	value any
}

type options struct {
	exitStatus *string
	result     *string
	extraInfo  map[string]any
	fields     []field
	printer    func(string)
	print      bool
}

// WithExitStatus sets info.exit_status. Without it the status is null.
func WithExitStatus(status string) Option {
	return func(o *options) { o.exitStatus = &status }
}

// WithResult sets info.submission. Without it the submission is null.
func WithResult(result string) Option {
	return func(o *options) { o.result = &result }
}

// WithExtraInfo merges info into the record's info object last, overriding
// keys already present.
func WithExtraInfo(info map[string]any) Option {
	return func(o *options) { o.extraInfo = info }
}

// WithField adds a top-level field after info and messages. Fields keep the
// order they were added in; adding a key twice keeps the last value. The keys
// info and messages are ignored: the record's own values win.
func WithField(key string, value any) Option {
	return func(o *options) { o.fields = append(o.fields, field{key: key, value: value}) }
}

// WithPrinter replaces the function that reports the saved path.
func WithPrinter(printer func(string)) Option {
	return func(o *options) { o.printer = printer }
}

// WithoutPrint disables reporting the saved path.
func WithoutPrint() Option {
	return func(o *options) { o.print = false }
}

// Save writes the trajectory of a to path, creating parent directories as
// needed and replacing any existing file. A nil agent records only the exit
// status, submission and extension fields. Identical input produces identical
// bytes.
func Save(a agent.Agent, path string, opts ...Option) error {
	o := options{
		print:   true,
		printer: func(s string) { fmt.Println(s) },
	}
	for _, opt := range opts {
		opt(&o)
	}

	record := build(a, &o)

	data, err := encode(record, "  ")
	if err != nil {
		return fmt.Errorf("encoding trajectory: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating trajectory directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing trajectory: %w", err)
	}

	if o.print && o.printer != nil {
		o.printer(fmt.Sprintf("Saved trajectory to '%s'", path))
	}
	return nil
}

func build(a agent.Agent, o *options) object {
	var exitStatus, submission any
	if o.exitStatus != nil {
		exitStatus = *o.exitStatus
	}
	if o.result != nil {
		submission = *o.result
	}

	stats := object{{"instance_cost", 0.0}, {"api_calls", 0}}
	info := object{
		{"exit_status", exitStatus},
		{"submission", submission},
		{"model_stats", stats},
	}
	var messages any = []any{}

	if !isNil(a) {
		model, env := a.Model(), a.Env()
		stats.set("instance_cost", model.Cost())
		stats.set("api_calls", model.NCalls())
		info.set("model_stats", stats)

		if msgs := a.Messages(); msgs != nil {
			messages = msgs
		}
		info.set("config", object{
			{"agent", flatten(a.Config())},
			{"model", flatten(model.Config())},
			{"environment", flatten(env.Config())},
			{"agent_type", typeName(a)},
			{"model_type", typeName(model)},
			{"environment_type", typeName(env)},
		})
	}

	keys := make([]string, 0, len(o.extraInfo))
	for k := range o.extraInfo {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		info.set(k, o.extraInfo[k])
	}

	record := object{{"info", info}, {"messages", messages}}
	for _, f := range o.fields {
		if f.key == "info" || f.key == "messages" {
			slog.Warn("ignoring trajectory field that would replace the record's own", "field", f.key)
			continue
		}
		record.set(f.key, f.value)
	}
	return record
}

// member is one key of an object.
type member struct {
	key   string
	value any
}

// object is a JSON object that keeps its keys in insertion order.
type object []member

// set replaces the value of key in place, or appends it.
func (obj *object) set(key string, value any) {
	for i := range *obj {
		if (*obj)[i].key == key {
			(*obj)[i].value = value
			return
		}
	}
	*obj = append(*obj, member{key: key, value: value})
}

func (obj object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range obj {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := encode(m.key, "")
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := encode(m.value, "")
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", m.key, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encode marshals v without escaping HTML characters, so commands such as
// "a && b > out" are stored as written.
func encode(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// mapper is implemented by configs that know their own serialized form.
type mapper interface {
	AsMap() map[string]any
}

// flatten returns the serializable form of a config. Structs are expanded
// through their JSON tags when the record is encoded.
func flatten(cfg any) any {
	if m, ok := cfg.(mapper); ok && !isNil(cfg) {
		return m.AsMap()
	}
	return cfg
}

// typeName is the package-qualified name of v's dynamic type, with pointers
// removed.
func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
