package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("a"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 250, EstimateTokens(strings.Repeat("x", 1000)))
	// Counted in characters, not bytes.
	assert.Equal(t, 1, EstimateTokens("ééé"))
}

func TestContextBundle_Citations(t *testing.T) {
	a := Citation{Repository: "r", Path: "a.md"}
	b := Citation{Repository: "r", Path: "b.md"}
	bundle := &ContextBundle{Fragments: []ContextFragment{
		{Citation: a, Ordinal: 0},
		{Citation: a, Ordinal: 1},
		{Citation: b, Ordinal: 0},
	}}

	assert.Equal(t, []Citation{a, b}, bundle.Citations())
	assert.False(t, bundle.IsEmpty())
}

func TestContextBundle_Empty(t *testing.T) {
	var nilBundle *ContextBundle

	assert.True(t, nilBundle.IsEmpty())
	assert.Nil(t, nilBundle.Citations())
	assert.Empty(t, nilBundle.Render())
	assert.True(t, (&ContextBundle{}).IsEmpty())
}

func TestContextBundle_Render(t *testing.T) {
	bundle := &ContextBundle{Fragments: []ContextFragment{
		{Citation: Citation{Repository: "facebook/react", Path: "hooks.md"}, Ordinal: 2, Score: 0.91234, Text: "useState returns a pair."},
		{Citation: Citation{Path: "local.txt"}, Ordinal: 0, Score: 0.5, Text: "second"},
	}}

	want := "SOURCE 1: facebook/react/hooks.md (chunk 2, relevance 0.912)\nuseState returns a pair.\n\n" +
		"SOURCE 2: local.txt (chunk 0, relevance 0.500)\nsecond"
	assert.Equal(t, want, bundle.Render())
}

func TestCitation_String(t *testing.T) {
	assert.Equal(t, "a/b/c.go", Citation{Repository: "a/b", Path: "c.go"}.String())
	assert.Equal(t, "c.go", Citation{Path: "c.go"}.String())
}
