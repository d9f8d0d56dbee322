package protocol

// Field is one "key: value" data line.
type Field struct {
	Key   string
	Value string
}

// Response is the accumulated body of one successfully terminated command.
// Fields keep arrival order; repeated keys are kept.
type Response struct {
	Fields []Field
}

// Len returns the number of fields in the body.
func (r Response) Len() int {
	return len(r.Fields)
}

// Map returns the body keyed by field name; a repeated key keeps its last
// value.
func (r Response) Map() map[string]string {
	out := make(map[string]string, len(r.Fields))
	for _, f := range r.Fields {
		out[f.Key] = f.Value
	}
	return out
}

// Get returns the last value recorded for key.
func (r Response) Get(key string) (string, bool) {
	for i := len(r.Fields) - 1; i >= 0; i-- {
		if r.Fields[i].Key == key {
			return r.Fields[i].Value, true
		}
	}
	return "", false
}

// Values returns every value recorded for key, in order.
func (r Response) Values(key string) []string {
	var out []string
	for _, f := range r.Fields {
		if f.Key == key {
			out = append(out, f.Value)
		}
	}
	return out
}

// Lines renders the body back to "key: value" form.
func (r Response) Lines() []string {
	out := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		out = append(out, f.Key+fieldSeparator+f.Value)
	}
	return out
}
