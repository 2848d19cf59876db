package ldap

import (
	"errors"
	"fmt"
)

// ResultCode represents an LDAP result code as defined in RFC 4511 Section 4.1.9.
type ResultCode int

// LDAP result codes per RFC 4511 Section 4.1.9
const (
	ResultSuccess                      ResultCode = 0
	ResultOperationsError              ResultCode = 1
	ResultProtocolError                ResultCode = 2
	ResultTimeLimitExceeded            ResultCode = 3
	ResultSizeLimitExceeded            ResultCode = 4
	ResultCompareFalse                 ResultCode = 5
	ResultCompareTrue                  ResultCode = 6
	ResultAuthMethodNotSupported       ResultCode = 7
	ResultStrongerAuthRequired         ResultCode = 8
	ResultReferral                     ResultCode = 10
	ResultAdminLimitExceeded           ResultCode = 11
	ResultUnavailableCriticalExtension ResultCode = 12
	ResultConfidentialityRequired      ResultCode = 13
	ResultSASLBindInProgress           ResultCode = 14
	ResultNoSuchAttribute              ResultCode = 16
	ResultUndefinedAttributeType       ResultCode = 17
	ResultInappropriateMatching        ResultCode = 18
	ResultConstraintViolation          ResultCode = 19
	ResultInvalidAttributeSyntax       ResultCode = 21
	ResultNoSuchObject                 ResultCode = 32
	ResultInvalidDNSyntax              ResultCode = 34
	ResultInappropriateAuthentication  ResultCode = 48
	ResultInvalidCredentials           ResultCode = 49
	ResultInsufficientAccessRights     ResultCode = 50
	ResultBusy                         ResultCode = 51
	ResultUnavailable                  ResultCode = 52
	ResultUnwillingToPerform           ResultCode = 53
	ResultOther                        ResultCode = 80
)

var resultCodeNames = map[ResultCode]string{
	ResultSuccess:                      "success",
	ResultOperationsError:              "operationsError",
	ResultProtocolError:                "protocolError",
	ResultTimeLimitExceeded:            "timeLimitExceeded",
	ResultSizeLimitExceeded:            "sizeLimitExceeded",
	ResultCompareFalse:                 "compareFalse",
	ResultCompareTrue:                  "compareTrue",
	ResultAuthMethodNotSupported:       "authMethodNotSupported",
	ResultStrongerAuthRequired:         "strongerAuthRequired",
	ResultReferral:                     "referral",
	ResultAdminLimitExceeded:           "adminLimitExceeded",
	ResultUnavailableCriticalExtension: "unavailableCriticalExtension",
	ResultConfidentialityRequired:      "confidentialityRequired",
	ResultSASLBindInProgress:           "saslBindInProgress",
	ResultNoSuchAttribute:              "noSuchAttribute",
	ResultUndefinedAttributeType:       "undefinedAttributeType",
	ResultInappropriateMatching:        "inappropriateMatching",
	ResultConstraintViolation:          "constraintViolation",
	ResultInvalidAttributeSyntax:       "invalidAttributeSyntax",
	ResultNoSuchObject:                 "noSuchObject",
	ResultInvalidDNSyntax:              "invalidDNSyntax",
	ResultInappropriateAuthentication:  "inappropriateAuthentication",
	ResultInvalidCredentials:           "invalidCredentials",
	ResultInsufficientAccessRights:     "insufficientAccessRights",
	ResultBusy:                         "busy",
	ResultUnavailable:                  "unavailable",
	ResultUnwillingToPerform:           "unwillingToPerform",
	ResultOther:                        "other",
}

// String returns the RFC 4511 name of the result code.
func (r ResultCode) String() string {
	if name, ok := resultCodeNames[r]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(r))
}

// IsSuccess returns true if the result code indicates success.
func (r ResultCode) IsSuccess() bool {
	return r == ResultSuccess
}

// IsError returns true if the result code indicates an error.
func (r ResultCode) IsError() bool {
	return r != ResultSuccess && r != ResultCompareFalse && r != ResultCompareTrue && r != ResultReferral && r != ResultSASLBindInProgress
}

// ResultError is returned when the server completes an operation with a
// non-success result code.
type ResultError struct {
	Operation OperationType
	Result    LDAPResult
}

func (e *ResultError) Error() string {
	msg := fmt.Sprintf("ldap: %s failed: %s (%d)", e.Operation, e.Result.ResultCode, int(e.Result.ResultCode))
	if e.Result.DiagnosticMessage != "" {
		msg += ": " + e.Result.DiagnosticMessage
	}
	if e.Result.MatchedDN != "" {
		msg += " (matched " + e.Result.MatchedDN + ")"
	}
	return msg
}

// IsResultCode reports whether err is a ResultError carrying code.
func IsResultCode(err error, code ResultCode) bool {
	var re *ResultError
	return errors.As(err, &re) && re.Result.ResultCode == code
}
