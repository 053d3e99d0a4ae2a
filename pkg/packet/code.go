package packet

import "fmt"

// Code represents a RADIUS packet code as defined in RFC 2865
type Code uint8

// RADIUS packet codes as defined in RFC 2865 and related RFCs
const (
	CodeAccessRequest      Code = 1
	CodeAccessAccept       Code = 2
	CodeAccessReject       Code = 3
	CodeAccountingRequest  Code = 4
	CodeAccountingResponse Code = 5
	CodeAccessChallenge    Code = 11
	CodeStatusServer       Code = 12
	CodeStatusClient       Code = 13
	CodeDisconnectRequest  Code = 40
	CodeDisconnectACK      Code = 41
	CodeDisconnectNAK      Code = 42
	CodeCoARequest         Code = 43
	CodeCoAAck             Code = 44
	CodeCoANak             Code = 45
)

var codeNames = map[Code]string{
	CodeAccessRequest:      "Access-Request",
	CodeAccessAccept:       "Access-Accept",
	CodeAccessReject:       "Access-Reject",
	CodeAccountingRequest:  "Accounting-Request",
	CodeAccountingResponse: "Accounting-Response",
	CodeAccessChallenge:    "Access-Challenge",
	CodeStatusServer:       "Status-Server",
	CodeStatusClient:       "Status-Client",
	CodeDisconnectRequest:  "Disconnect-Request",
	CodeDisconnectACK:      "Disconnect-ACK",
	CodeDisconnectNAK:      "Disconnect-NAK",
	CodeCoARequest:         "CoA-Request",
	CodeCoAAck:             "CoA-ACK",
	CodeCoANak:             "CoA-NAK",
}

// String returns the string representation of the packet code
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", c)
}

// IsValid checks if the packet code is valid
func (c Code) IsValid() bool {
	_, ok := codeNames[c]
	return ok
}

// IsRequest returns true if the code represents a request packet
func (c Code) IsRequest() bool {
	switch c {
	case CodeAccessRequest, CodeAccountingRequest, CodeStatusServer,
		CodeDisconnectRequest, CodeCoARequest:
		return true
	default:
		return false
	}
}

// IsResponse returns true if the code represents a response packet
func (c Code) IsResponse() bool {
	return c.IsValid() && !c.IsRequest()
}

// ExpectedResponseCode returns the response codes a request may be answered with.
// The first entry is the default reply code.
func (c Code) ExpectedResponseCode() []Code {
	switch c {
	case CodeAccessRequest:
		return []Code{CodeAccessAccept, CodeAccessReject, CodeAccessChallenge}
	case CodeAccountingRequest:
		return []Code{CodeAccountingResponse}
	case CodeStatusServer:
		return []Code{CodeAccessAccept, CodeAccountingResponse}
	case CodeDisconnectRequest:
		return []Code{CodeDisconnectACK, CodeDisconnectNAK}
	case CodeCoARequest:
		return []Code{CodeCoAAck, CodeCoANak}
	default:
		return nil
	}
}

// hasRandomAuthenticator reports whether requests with this code carry a random
// Request Authenticator rather than one computed from the shared secret.
func (c Code) hasRandomAuthenticator() bool {
	return c == CodeAccessRequest || c == CodeStatusServer
}
