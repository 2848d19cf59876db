// Package config loads dirquery's configuration.
//
// Configuration is read in three layers. DefaultConfig supplies every
// value; a YAML file overrides the fields it names; DIRQUERY_* environment
// variables override both:
//
//	directory:
//	  address: ldap.example.com:636
//	  tls: true
//	  bindDN: cn=reader,dc=example,dc=com
//	  bindPassword: ${LDAP_PASSWORD}
//	  baseDN: dc=example,dc=com
//	  requestTimeout: 30s
//	query:
//	  defaultPageSize: 500
//	  maxPageSize: 1000
//	logging:
//	  level: ${LOG_LEVEL:-info}
//	  format: json
//	metrics:
//	  enabled: true
//	  address: :9464
//	tracing:
//	  enabled: true
//	  endpoint: http://localhost:4318
//
// Inside the file ${VAR} and ${VAR:-default} are replaced before parsing.
// Unknown keys are rejected.
//
// Environment overrides use the section prefix and the upper-case field
// name, for example DIRQUERY_DIRECTORY_BIND_PASSWORD, DIRQUERY_QUERY_MAX_PAGE_SIZE
// or DIRQUERY_LOG_LEVEL.
package config
