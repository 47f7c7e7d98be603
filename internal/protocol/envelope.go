package protocol

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

var (
	ErrInvalidName = errors.New("invalid name")
	ErrInvalidBody = errors.New("invalid message body")
)

// DecodeErrorKind classifies a frame that could not be decoded.
type DecodeErrorKind int

const (
	DecodeMalformed   DecodeErrorKind = iota // wrong field count or non-numeric status
	DecodeUnknownCode                        // numeric status outside the known set
)

func (k DecodeErrorKind) String() string {
	switch k {
	case DecodeMalformed:
		return "malformed frame"
	case DecodeUnknownCode:
		return "unknown status code"
	default:
		return "unknown decode error"
	}
}

// DecodeError reports a frame the codec could not interpret.
type DecodeError struct {
	Kind  DecodeErrorKind
	Frame string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %q: %v", e.Kind, e.Frame, e.Err)
	}
	return fmt.Sprintf("%s %q", e.Kind, e.Frame)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// --- Frame types ---

// Frame is either an *Envelope or a *StatusFrame.
type Frame interface {
	frame()
}

// Envelope is a chat message. Frames received from the server carry no
// destination field; Decode fills in the receiving session's own name.
type Envelope struct {
	Source      string
	Destination string
	Body        string
}

// StatusFrame carries a single status code.
type StatusFrame struct {
	Code StatusCode
}

func (*Envelope) frame()    {}
func (*StatusFrame) frame() {}

// --- Validation ---

// ValidateName checks a display name: 1 to NameSize printable characters,
// starting with a letter and free of the field delimiter.
func ValidateName(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidName, "name is empty")
	}
	if n := utf8.RuneCountInString(name); n > NameSize {
		return errors.Wrapf(ErrInvalidName, "name %q has %d characters, limit is %d", name, n, NameSize)
	}
	first, _ := utf8.DecodeRuneInString(name)
	if !unicode.IsLetter(first) {
		return errors.Wrapf(ErrInvalidName, "name %q does not start with a letter", name)
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return errors.Wrapf(ErrInvalidName, "name %q contains a non-printable character", name)
		}
	}
	if strings.Contains(name, Delimiter) {
		return errors.Wrapf(ErrInvalidName, "name %q contains %q", name, Delimiter)
	}
	return nil
}

// validateBody rejects bodies the server cannot split back apart.
func validateBody(body string) error {
	if body == "" {
		return errors.Wrap(ErrInvalidBody, "body is empty")
	}
	if strings.Contains(body, Delimiter) {
		return errors.Wrapf(ErrInvalidBody, "body contains %q", Delimiter)
	}
	return nil
}

// --- Encoding ---

// Encode builds the "<src>|<dest>|<body>" frame a client sends to the server.
func Encode(source, destination, body string) ([]byte, error) {
	if err := ValidateName(source); err != nil {
		return nil, errors.Wrap(err, "source")
	}
	if err := ValidateName(destination); err != nil {
		return nil, errors.Wrap(err, "destination")
	}
	if err := validateBody(body); err != nil {
		return nil, err
	}
	return []byte(source + Delimiter + destination + Delimiter + body), nil
}

// EncodeStatus builds a StatusFrame.
func EncodeStatus(code StatusCode) []byte {
	return code.Encode()
}

// --- Decoding ---

// Decode interprets one read from the server. self is the receiving
// session's name and becomes the Destination of delivered envelopes.
func Decode(data []byte, self string) (Frame, error) {
	raw := strings.TrimRight(string(data), "\x00")
	parts := strings.Split(raw, Delimiter)

	switch len(parts) {
	case DeliveryFields:
		return &Envelope{
			Source:      parts[0],
			Destination: self,
			Body:        parts[1],
		}, nil

	case StatusFields:
		code, err := ParseStatus(parts[0])
		if err != nil {
			return nil, err
		}
		return &StatusFrame{Code: code}, nil

	default:
		return nil, &DecodeError{
			Kind:  DecodeMalformed,
			Frame: raw,
			Err:   errors.Errorf("%d fields", len(parts)),
		}
	}
}
