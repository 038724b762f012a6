package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_Lookup(t *testing.T) {
	tests := []struct {
		model    string
		expected string
		found    bool
	}{
		{"gpt-4.1-mini", "0.4", true},
		{"GPT-4.1-MINI", "0.4", true},
		{"gpt-4.1-mini-2025-04-14", "0.4", true},
		{"gpt-4.1-2025-04-14", "2", true},
		{"grok-3-mini-fast", "0.3", true},
		{"unknown-model", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			p, found := Default.Lookup(tt.model)
			assert.Equal(t, tt.found, found)
			if found {
				assert.Equal(t, tt.expected, p.Input.String())
			}
		})
	}
}

func TestParse(t *testing.T) {
	p, err := Parse("0.40", "", "1.60")
	require.NoError(t, err)
	assert.Nil(t, p.CachedInput)
	assert.Equal(t, "1.6", p.Output.String())

	p, err = Parse("1", "0.1", "2")
	require.NoError(t, err)
	require.NotNil(t, p.CachedInput)
	assert.Equal(t, "0.1", p.CachedInput.String())

	_, err = Parse("abc", "", "1")
	assert.Error(t, err)
	_, err = Parse("1", "x", "1")
	assert.Error(t, err)
}

func TestTable_Merge(t *testing.T) {
	override := Table{"My-Model": mustParse("1", "", "2")}
	merged := Default.Merge(override)

	_, found := merged.Lookup("my-model")
	assert.True(t, found)

	_, found = Default.Lookup("my-model")
	assert.False(t, found, "merge must not modify the receiver")

	assert.Contains(t, merged.Models(), "gpt-4.1")
}
