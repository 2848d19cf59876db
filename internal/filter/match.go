package filter

import (
	"bytes"
	"strconv"
	"strings"
)

// matchEquality performs case-insensitive equality matching between two byte slices.
// This is the default matching behavior for string attributes in LDAP.
func matchEquality(a, b []byte) bool {
	return bytes.EqualFold(a, b)
}

// matchSubstring checks if a value matches a substring filter pattern.
// The pattern consists of optional initial, any (middle), and final components.
func matchSubstring(value []byte, initial []byte, any [][]byte, final []byte) bool {
	valueLower := bytes.ToLower(value)
	pos := 0

	if len(initial) > 0 {
		initialLower := bytes.ToLower(initial)
		if !bytes.HasPrefix(valueLower, initialLower) {
			return false
		}
		pos = len(initialLower)
	}

	for _, substr := range any {
		if len(substr) == 0 {
			continue
		}
		substrLower := bytes.ToLower(substr)
		idx := bytes.Index(valueLower[pos:], substrLower)
		if idx < 0 {
			return false
		}
		pos += idx + len(substrLower)
	}

	if len(final) > 0 {
		finalLower := bytes.ToLower(final)
		if !bytes.HasSuffix(valueLower[pos:], finalLower) {
			return false
		}
	}

	return true
}

// CompareValues orders two attribute values: numerically when both are
// integers and case-insensitively otherwise.
func CompareValues(a, b []byte) int {
	ai, errA := strconv.ParseInt(string(a), 10, 64)
	bi, errB := strconv.ParseInt(string(b), 10, 64)
	if errA == nil && errB == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}
	return bytes.Compare(bytes.ToLower(a), bytes.ToLower(b))
}

func matchGreaterOrEqual(value, threshold []byte) bool {
	return CompareValues(value, threshold) >= 0
}

func matchLessOrEqual(value, threshold []byte) bool {
	return CompareValues(value, threshold) <= 0
}

// matchApprox compares values after lowercasing and collapsing whitespace.
func matchApprox(a, b []byte) bool {
	return bytes.Equal(normalizeForApprox(a), normalizeForApprox(b))
}

func normalizeForApprox(value []byte) []byte {
	return []byte(strings.Join(strings.Fields(strings.ToLower(string(value))), " "))
}
