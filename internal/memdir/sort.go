package memdir

import (
	"slices"

	"github.com/KilimcininKorOglu/dirquery/internal/directory"
	"github.com/KilimcininKorOglu/dirquery/internal/filter"
	"github.com/KilimcininKorOglu/dirquery/internal/ldap"
)

// sortEntries orders entries by keys in place. Entries missing a key
// attribute sort last whatever the direction.
func sortEntries(entries []*directory.Entry, keys []ldap.SortKey) {
	if len(keys) == 0 || len(entries) < 2 {
		return
	}
	slices.SortStableFunc(entries, func(a, b *directory.Entry) int {
		for _, key := range keys {
			if c := compareAttribute(a, b, key); c != 0 {
				return c
			}
		}
		return 0
	})
}

func compareAttribute(a, b *directory.Entry, key ldap.SortKey) int {
	va, aHas := firstValue(a, key.Attribute)
	vb, bHas := firstValue(b, key.Attribute)
	switch {
	case !aHas && !bHas:
		return 0
	case !aHas:
		return 1
	case !bHas:
		return -1
	}

	c := filter.CompareValues(va, vb)
	if key.Reverse {
		return -c
	}
	return c
}

func firstValue(e *directory.Entry, attr string) ([]byte, bool) {
	values := e.Attributes.Values(attr)
	if len(values) == 0 || len(values[0]) == 0 {
		return nil, false
	}
	return values[0], true
}

// sortResponse rejects keys the directory cannot honour.
func sortResponse(keys []ldap.SortKey) *ldap.SortResponse {
	for _, key := range keys {
		if key.OrderingRule != "" {
			return &ldap.SortResponse{ResultCode: ldap.ResultInappropriateMatching, AttributeType: key.Attribute}
		}
	}
	return &ldap.SortResponse{ResultCode: ldap.ResultSuccess}
}
