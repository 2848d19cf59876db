// Package filter parses, encodes and evaluates LDAP search filters.
//
// # Overview
//
// Filters arrive as RFC 4515 strings that are already escaped by the caller.
// Parse turns them into a Filter tree, Encode writes the tree as the BER
// Filter CHOICE of a SearchRequest, and Decode reads it back:
//
//	f, err := filter.Parse(`(&(objectClass=user)(cn=Smith\2a*))`)
//	if err != nil {
//	    return err
//	}
//	enc := ber.NewBEREncoder(128)
//	err = f.Encode(enc)
//
// String renders a tree in canonical form with values escaped, and
// EscapeValue escapes a single assertion value for callers building
// filter strings by hand.
//
// # Filter Evaluation
//
// The Evaluator tests entries against filters. It is used by the in-memory
// directory to answer searches:
//
//	ok := filter.NewEvaluator().Evaluate(f, entry)
//
// Attribute names match case-insensitively, values match case-insensitively,
// and ordering filters compare numerically when both sides are integers.
// Extensible matches understand the bitwise AND and OR matching rules and
// the dnAttributes flag.
package filter
