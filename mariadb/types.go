package mariadb

// UnknownRowCount is reported by streaming cursors, which cannot know how
// many rows remain until they are read.
const UnknownRowCount int64 = -1

// Row is one record of a result set in projection order. Text values are
// strings, SQL NULL is nil.
type Row []any

// Column describes one column of a result set.
type Column struct {
	Name string
	// DatabaseType is the server type name, e.g. "VARCHAR" or "INT".
	DatabaseType string
	Nullable     bool
}

func (r Row) normalize() Row {
	for i, v := range r {
		if b, ok := v.([]byte); ok {
			r[i] = string(b)
		}
	}
	return r
}
