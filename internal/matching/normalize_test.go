package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "whitespace only", input: "   ", expected: ""},
		{name: "plain", input: "Pat Doe", expected: "pat doe"},
		{name: "junior with period", input: "Pat Doe Jr.", expected: "pat doe"},
		{name: "senior", input: "Pat Doe Sr", expected: "pat doe"},
		{name: "roman numeral three", input: "Robert Griffin III", expected: "robert griffin"},
		{name: "roman numeral two", input: "Odell Beckham II", expected: "odell beckham"},
		{name: "roman numeral four", input: "Sam Doe IV", expected: "sam doe"},
		{name: "initials", input: "A.J. Brown", expected: "aj brown"},
		{name: "apostrophe", input: "D'Andre Swift", expected: "dandre swift"},
		{name: "collapses whitespace", input: "  Amon-Ra   St. Brown ", expected: "amonra st brown"},
		{name: "accent folding", input: "José Núñez", expected: "jose nunez"},
		{name: "suffix inside a word is kept", input: "Irvin Junior", expected: "irvin junior"},
		{name: "leading suffix-like token is kept", input: "Jr Smith", expected: "jr smith"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.input))
		})
	}
}

func TestTeamAliasResolver_Normalize(t *testing.T) {
	r := NewTeamAliasResolver()

	assert.Equal(t, "", r.Normalize(""))
	assert.Equal(t, "KC", r.Normalize("kc"))
	assert.Equal(t, "JAX", r.Normalize("JAC"))
	assert.Equal(t, "JAX", r.Normalize("jax"))
	assert.Equal(t, "LAR", r.Normalize("LA"))
	assert.Equal(t, "WAS", r.Normalize("WSH"))
	assert.Equal(t, "LV", r.Normalize("OAK"))
	assert.Equal(t, "XYZ", r.Normalize(" xyz "))
}

func TestTeamAliasResolver_Equal(t *testing.T) {
	r := NewTeamAliasResolver()

	assert.True(t, r.Equal("JAC", "JAX"))
	assert.True(t, r.Equal("LA", "lar"))
	assert.True(t, r.Equal("KC", "KC"))
	assert.False(t, r.Equal("KC", "LV"))
	assert.True(t, r.Equal("", ""))
	assert.False(t, r.Equal("", "KC"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 1.0, Similarity("pat doe", "pat doe"))
	assert.Equal(t, 0.0, Similarity("pat doe", ""))
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))

	// "n taylor" and "jonath" align: 14 matched of 30
	assert.InDelta(t, 28.0/30.0, Similarity("jonathan taylor", "jonathon taylor"), 1e-9)

	// " davis", "gab" and "e" align: 10 matched of 23
	assert.InDelta(t, 20.0/23.0, Similarity("gabe davis", "gabriel davis"), 1e-9)

	s := Similarity("patrick mahomes", "josh allen")
	assert.GreaterOrEqual(t, s, 0.0)
	assert.Less(t, s, 0.5)
}
