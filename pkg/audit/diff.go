package audit

import (
	"fmt"
	"strings"
	"time"
)

// FieldChange describes one field of a mutation with its value before and
// after. Values may be any scalar-ish type; they are normalized to strings
// for comparison and storage.
type FieldChange struct {
	Name string
	Old  interface{}
	New  interface{}
}

// DiffFields returns only the changes whose normalized old and new values
// actually differ. Normalization trims strings and treats nil and the empty
// string as equivalent, so clearing an already-empty field produces no
// audit noise.
func DiffFields(changes []FieldChange) []FieldChange {
	var out []FieldChange
	for _, c := range changes {
		if normalize(c.Old) != normalize(c.New) {
			out = append(out, c)
		}
	}
	return out
}

// normalize renders a field value to its canonical string form. nil and
// empty strings normalize to "".
func normalize(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case *string:
		if val == nil {
			return ""
		}
		return strings.TrimSpace(*val)
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if val == nil {
			return ""
		}
		return normalize(*val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// storedValue returns the normalized value as a nullable column value:
// empty normalizes to nil.
func storedValue(v interface{}) *string {
	s := normalize(v)
	if s == "" {
		return nil
	}
	return &s
}
