package filter

import (
	"strconv"
	"strings"
)

// Matching rule OIDs understood by extensible match evaluation.
const (
	RuleBitAnd = "1.2.840.113556.1.4.803"
	RuleBitOr  = "1.2.840.113556.1.4.804"
)

// Evaluator evaluates LDAP search filters against entries.
type Evaluator struct{}

// NewEvaluator creates a new filter evaluator. Matching is case-insensitive
// for strings and numeric when both sides parse as integers.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate tests whether an entry matches a filter.
func (e *Evaluator) Evaluate(filter *Filter, entry Entry) bool {
	if filter == nil || entry == nil {
		return false
	}

	switch filter.Type {
	case FilterAnd:
		for _, child := range filter.Children {
			if !e.Evaluate(child, entry) {
				return false
			}
		}
		return true
	case FilterOr:
		for _, child := range filter.Children {
			if e.Evaluate(child, entry) {
				return true
			}
		}
		return false
	case FilterNot:
		if filter.Child == nil {
			return false
		}
		return !e.Evaluate(filter.Child, entry)
	case FilterEquality:
		return anyValue(entry.Values(filter.Attribute), filter.Value, matchEquality)
	case FilterSubstring:
		sf := filter.Substring
		if sf == nil {
			return false
		}
		for _, v := range entry.Values(sf.Attribute) {
			if matchSubstring(v, sf.Initial, sf.Any, sf.Final) {
				return true
			}
		}
		return false
	case FilterPresent:
		if strings.EqualFold(filter.Attribute, "objectClass") {
			return true
		}
		return len(entry.Values(filter.Attribute)) > 0
	case FilterGreaterOrEqual:
		return anyValue(entry.Values(filter.Attribute), filter.Value, matchGreaterOrEqual)
	case FilterLessOrEqual:
		return anyValue(entry.Values(filter.Attribute), filter.Value, matchLessOrEqual)
	case FilterApproxMatch:
		return anyValue(entry.Values(filter.Attribute), filter.Value, matchApprox)
	case FilterExtensibleMatch:
		return e.evaluateExtensible(filter, entry)
	default:
		return false
	}
}

func anyValue(values [][]byte, assertion []byte, match func(a, b []byte) bool) bool {
	for _, v := range values {
		if match(v, assertion) {
			return true
		}
	}
	return false
}

// evaluateExtensible supports the bitwise AND/OR rules and falls back to
// equality for any other rule. With dnAttributes set, RDN values of the DN
// are matched as well.
func (e *Evaluator) evaluateExtensible(f *Filter, entry Entry) bool {
	match := matchEquality
	switch f.MatchingRule {
	case RuleBitAnd:
		match = matchBits(func(v, mask uint64) bool { return v&mask == mask })
	case RuleBitOr:
		match = matchBits(func(v, mask uint64) bool { return v&mask != 0 })
	}

	if f.Attribute != "" && anyValue(entry.Values(f.Attribute), f.Value, match) {
		return true
	}
	if !f.DNAttributes {
		return false
	}
	for _, rdn := range splitDN(entry.DistinguishedName()) {
		name, value, ok := strings.Cut(rdn, "=")
		if !ok {
			continue
		}
		if f.Attribute != "" && !strings.EqualFold(strings.TrimSpace(name), f.Attribute) {
			continue
		}
		if match([]byte(strings.TrimSpace(value)), f.Value) {
			return true
		}
	}
	return false
}

func matchBits(test func(v, mask uint64) bool) func(a, b []byte) bool {
	return func(a, b []byte) bool {
		v, err := strconv.ParseInt(string(a), 10, 64)
		if err != nil {
			return false
		}
		mask, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return false
		}
		return test(uint64(v), uint64(mask))
	}
}

// splitDN splits a DN into its RDN components, honouring backslash escapes.
func splitDN(dn string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(dn); i++ {
		switch dn[i] {
		case '\\':
			i++
		case ',':
			parts = append(parts, dn[start:i])
			start = i + 1
		}
	}
	if start < len(dn) {
		parts = append(parts, dn[start:])
	}
	return parts
}
