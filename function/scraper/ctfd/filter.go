package ctfd

import "strings"

// Filter decides whether a challenge is dumped.
type Filter func(chall *Challenge) bool

type Filters []Filter

// Match reports whether every filter accepts chall.
func (fs Filters) Match(chall *Challenge) bool {
	for _, f := range fs {
		if !f(chall) {
			return false
		}
	}
	return true
}

// CategoryFilter keeps challenges of one category, compared case-insensitively.
func CategoryFilter(category string) Filter {
	return func(chall *Challenge) bool {
		return strings.EqualFold(chall.Category, category)
	}
}

// SolvedFilter keeps challenges the logged-in user already solved.
func SolvedFilter() Filter {
	return func(chall *Challenge) bool {
		return chall.SolvedByMe
	}
}
