package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldList(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "case variants collapse to the first position",
			input:    []string{"Root", "admin", "ROOT", "root"},
			expected: []string{"root", "admin"},
		},
		{
			name:     "blank entries from a comma list are dropped",
			input:    []string{" mailinator.com", "", "  ", "tempmail.org "},
			expected: []string{"mailinator.com", "tempmail.org"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FoldList(tt.input))
		})
	}
}

func TestFoldSet(t *testing.T) {
	set := FoldSet([]string{" Support", "support", ""})
	assert.Len(t, set, 1)
	assert.Contains(t, set, "support")
	assert.Empty(t, FoldSet(nil))
}
