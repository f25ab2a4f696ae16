package structs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		Name   string
		Given  *Query
		Expect *Query
	}{
		{
			Name:   "SetsDefaultLimit",
			Given:  &Query{},
			Expect: &Query{Limit: queryLimitDefault},
		},
		{
			Name:   "SetsMaxLimit",
			Given:  &Query{Limit: queryLimitMax + 1},
			Expect: &Query{Limit: queryLimitMax},
		},
		{
			Name:   "NegativeLimit",
			Given:  &Query{Limit: -1},
			Expect: &Query{Limit: queryLimitDefault},
		},
		{
			Name:   "ZeroStates",
			Given:  &Query{Limit: 1, States: []Status{}},
			Expect: &Query{Limit: 1},
		},
		{
			Name:   "KeepsFilters",
			Given:  &Query{Limit: 5, Owner: "alice", States: []Status{QUEUED}, PageToken: "abc"},
			Expect: &Query{Limit: 5, Owner: "alice", States: []Status{QUEUED}, PageToken: "abc"},
		},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			c.Given.Sanitize()
			assert.Equal(t, c.Expect, c.Given)
		})
	}
}
