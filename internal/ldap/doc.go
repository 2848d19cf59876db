// Package ldap implements the client side of the LDAP v3 message layer
// (RFC 4511) that typed queries need: the message envelope, simple bind,
// search requests and the responses a search produces.
//
// # Message Structure
//
// All LDAP messages follow the LDAPMessage envelope structure:
//
//	LDAPMessage ::= SEQUENCE {
//	    messageID       MessageID,
//	    protocolOp      CHOICE { ... },
//	    controls        [0] Controls OPTIONAL
//	}
//
// Requests are built as structs and wrapped with Message or NewMessage:
//
//	req := &ldap.SearchRequest{
//	    BaseObject: "dc=example,dc=com",
//	    Scope:      ldap.ScopeWholeSubtree,
//	    Filter:     "(objectClass=user)",
//	    Attributes: []string{"cn", "mail"},
//	}
//	msg, err := req.Message(7)
//	data, err := msg.Encode()
//
// Responses are read with ParseLDAPMessage and then the parser matching the
// operation tag:
//
//	msg, err := ldap.ParseLDAPMessage(packet)
//	switch msg.OperationType() {
//	case ldap.ApplicationSearchResultEntry:
//	    entry, err := ldap.ParseSearchResultEntry(msg.Operation.Data)
//	case ldap.ApplicationSearchResultDone:
//	    done, err := ldap.ParseSearchResultDone(msg.Operation.Data)
//	}
//
// The server-side halves (ParseSearchRequest, ParseBindRequest and the
// response Encode methods) exist so that tests can stand up a wire-level
// peer without a real directory.
//
// # Controls
//
// Simple Paged Results (RFC 2696) and Server-Side Sorting (RFC 2891) are
// supported in both directions.
//
// # References
//
//   - RFC 4511: LDAP Protocol
//   - RFC 2696: Simple Paged Results Manipulation
//   - RFC 2891: Server Side Sorting of Search Results
package ldap
