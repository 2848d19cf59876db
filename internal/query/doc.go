// Package query plans and executes typed searches against a directory.
//
// A plan (Options) is built once per query and selects one of four shapes:
//
//	users, _ := query.NewEntityOptions(userMapping, "(department=Sales)",
//	    query.OrderBy("sn"),
//	    query.WithTake(50),
//	)
//	names, _ := query.Project(userMapping, "", func(u *User) string { return u.Name },
//	    query.WithProperties("Name"),
//	)
//	rows, _ := query.NewListingOptions("(objectClass=group)", query.WithBaseDN("dc=example,dc=com"))
//	dicts, _ := query.NewDictionaryOptions("(cn=admin*)", query.WithBaseDN("dc=example,dc=com"))
//
// A Command drives the plan over a Connection. It sends a single request
// when the plan fits one, and otherwise pages with the Simple Paged Results
// control, echoing each cookie until the server returns an empty one:
//
//	cmd := query.NewCommand(conn, users, query.WithLogger(logger))
//	all, err := query.Collect[*User](ctx, cmd.Execute(ctx))
//
// Skip and take are applied client-side. Entries past the take boundary
// are never materialized and no page is requested once it is reached.
//
// Faults end the query: transport errors arrive as *ConnectionError, a
// missing or malformed paged results control as *ProtocolViolationError,
// non-success results as *ldap.ResultError and bad values as
// *mapping.ConversionError. Nothing is retried.
package query
