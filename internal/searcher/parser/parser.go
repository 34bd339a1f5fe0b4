// Package parser turns a query line into the ordered list of terms to
// intersect. Every whitespace-delimited token is a required term; there are
// no operators.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/tokenizer"
)

type QueryPlan struct {
	Terms    []string
	RawQuery string
}

// Parse splits query on runs of whitespace. A blank line yields a plan with
// no terms.
func Parse(query string) *QueryPlan {
	return &QueryPlan{
		Terms:    tokenizer.Tokenize(query),
		RawQuery: query,
	}
}

// Empty reports whether the plan has no terms to look up.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

// Normalized is the canonical form of the query: its terms in order joined
// by single spaces. Term order is kept because it fixes the intersection
// order, though not the result.
func (p *QueryPlan) Normalized() string {
	return strings.Join(p.Terms, " ")
}
