package protocol

import (
	"strconv"
	"strings"
)

// StatusCode is a protocol-level outcome. Its decimal value is the wire form.
type StatusCode int

const (
	ConnAccepted StatusCode = 0 // name registered, session open
	Disconnect   StatusCode = 1 // peer is leaving
	InvalidName  StatusCode = 2 // name already taken
	MissingName  StatusCode = 3 // name never arrived
	MsgReceived  StatusCode = 4 // recipient got the message
	MsgSuccess   StatusCode = 5 // server delivered the message
	MsgFailed    StatusCode = 6 // server could not deliver the message
	InvalidDest  StatusCode = 7 // no client with that name
	ReqClients   StatusCode = 8 // roster request
)

var statusNames = [...]string{
	ConnAccepted: "ConnAccepted",
	Disconnect:   "Disconnect",
	InvalidName:  "InvalidName",
	MissingName:  "MissingName",
	MsgReceived:  "MsgReceived",
	MsgSuccess:   "MsgSuccess",
	MsgFailed:    "MsgFailed",
	InvalidDest:  "InvalidDest",
	ReqClients:   "ReqClients",
}

// Valid reports whether c is one of the known codes.
func (c StatusCode) Valid() bool {
	return c >= 0 && int(c) < len(statusNames)
}

func (c StatusCode) String() string {
	if !c.Valid() {
		return "StatusCode(" + strconv.Itoa(int(c)) + ")"
	}
	return statusNames[c]
}

// Failure reports whether c tells the sender that its request did not go through.
func (c StatusCode) Failure() bool {
	switch c {
	case InvalidName, MissingName, MsgFailed, InvalidDest:
		return true
	}
	return false
}

// Encode returns the StatusFrame bytes for c.
func (c StatusCode) Encode() []byte {
	return strconv.AppendInt(nil, int64(c), 10)
}

// StatusFromInt maps a wire integer to its StatusCode.
func StatusFromInt(v int) (StatusCode, error) {
	c := StatusCode(v)
	if !c.Valid() {
		return 0, &DecodeError{Kind: DecodeUnknownCode, Frame: strconv.Itoa(v)}
	}
	return c, nil
}

// LookupStatus maps a code name such as "MsgSuccess" back to its StatusCode.
func LookupStatus(name string) (StatusCode, error) {
	for i, n := range statusNames {
		if strings.EqualFold(n, name) {
			return StatusCode(i), nil
		}
	}
	return 0, &DecodeError{Kind: DecodeUnknownCode, Frame: name}
}

// ParseStatus decodes a StatusFrame payload.
func ParseStatus(raw string) (StatusCode, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &DecodeError{Kind: DecodeMalformed, Frame: raw, Err: err}
	}
	return StatusFromInt(v)
}
