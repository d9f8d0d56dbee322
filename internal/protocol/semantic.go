package protocol

// Record is one object within a multi-object response, keyed by field name.
// Within a record, a repeated key keeps its last value.
type Record map[string]string

// Records splits a response into objects. A new record starts at every field
// whose key is one of startKeys. Fields that precede the first start key are
// discarded.
func (r Response) Records(startKeys ...string) []Record {
	starts := make(map[string]struct{}, len(startKeys))
	for _, k := range startKeys {
		starts[k] = struct{}{}
	}

	var out []Record
	var cur Record
	for _, f := range r.Fields {
		if _, ok := starts[f.Key]; ok {
			if cur != nil {
				out = append(out, cur)
			}
			cur = Record{}
		}
		if cur == nil {
			continue
		}
		cur[f.Key] = f.Value
	}
	if cur != nil {
		out = append(out, cur)
	}
	return out
}

// Single returns the whole response as one record.
func (r Response) Single() Record {
	return Record(r.Map())
}
