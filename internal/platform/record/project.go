package record

// Project returns the values of flat in the order of names. Absent names
// produce nil, so the result always has len(names) entries.
func Project(flat *Object, names []string) []any {
	out := make([]any, len(names))
	for i, name := range names {
		if value, ok := flat.Get(name); ok {
			out[i] = value
		}
	}
	return out
}
