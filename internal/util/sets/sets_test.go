package sets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_AddIsIdempotent(t *testing.T) {
	s := New("a")
	assert.True(t, s.Add("b"))
	assert.False(t, s.Add("b"))
	assert.False(t, s.Add("a"))
	assert.Len(t, s, 2)
}

func TestSet_CloneAndDelete(t *testing.T) {
	s := New(1, 2, 3)
	c := s.Clone()
	c.Delete(2)

	assert.True(t, s.Has(2))
	assert.False(t, c.Has(2))
}

func TestSorted(t *testing.T) {
	assert.Equal(t, []string{"constraint-error", "needs-review", "red"}, Sorted(New("red", "needs-review", "constraint-error")))
	assert.Empty(t, Sorted(New[string]()))
}
