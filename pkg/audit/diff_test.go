package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDiffFields_KeepsOnlyRealChanges(t *testing.T) {
	changes := DiffFields([]FieldChange{
		{Name: "surname", Old: "Nkosi", New: "Nkosi-Sithole"},
		{Name: "email", Old: " x@y.za ", New: "x@y.za"},
		{Name: "id_number", Old: nil, New: ""},
		{Name: "phone", Old: "", New: "0821234567"},
	})

	names := make([]string, len(changes))
	for i, c := range changes {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"surname", "phone"}, names)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "", normalize(nil))
	assert.Equal(t, "", normalize(""))
	assert.Equal(t, "", normalize("   "))
	assert.Equal(t, "abc", normalize("  abc "))
	assert.Equal(t, "", normalize((*string)(nil)))

	s := " def "
	assert.Equal(t, "def", normalize(&s))

	assert.Equal(t, "42", normalize(42))
	assert.Equal(t, "", normalize(time.Time{}))

	ts := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	assert.Equal(t, "2025-02-03T04:05:06Z", normalize(ts))
	assert.Equal(t, normalize(ts), normalize(&ts))
}

func TestStoredValue(t *testing.T) {
	assert.Nil(t, storedValue(""))
	assert.Nil(t, storedValue(nil))

	v := storedValue(" kept ")
	if assert.NotNil(t, v) {
		assert.Equal(t, "kept", *v)
	}
}
