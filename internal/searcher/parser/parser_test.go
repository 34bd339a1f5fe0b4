package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		query string
		terms []string
	}{
		{"single", "foo", []string{"foo"}},
		{"two", "foo bar", []string{"foo", "bar"}},
		{"whitespace runs", "  foo \t\tbar  baz ", []string{"foo", "bar", "baz"}},
		{"keywords are terms", "foo AND NOT bar", []string{"foo", "AND", "NOT", "bar"}},
		{"case kept", "Foo foo", []string{"Foo", "foo"}},
		{"blank", "   ", []string{}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Parse(tt.query)
			assert.Equal(t, tt.query, plan.RawQuery)
			assert.Equal(t, tt.terms, plan.Terms)
			assert.Equal(t, len(tt.terms) == 0, plan.Empty())
		})
	}
}

func TestNormalized(t *testing.T) {
	assert.Equal(t, "foo bar", Parse("  foo\t bar\n").Normalized())
	assert.NotEqual(t, Parse("foo bar").Normalized(), Parse("bar foo").Normalized())
	assert.Equal(t, "", Parse(" ").Normalized())
}
