package protocol

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"simple", "Bob", true},
		{"max length", "Abcdefghij", true},
		{"digits after letter", "bob2", true},
		{"unicode letter", "Ödön", true},
		{"empty", "", false},
		{"too long", "Abcdefghijk", false},
		{"leading digit", "2bob", false},
		{"leading symbol", "!bob", false},
		{"leading space", " bob", false},
		{"delimiter", "bo|b", false},
		{"control char", "bo\tb", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateName(tc.input)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidName), "got %v", err)
		})
	}
}

func TestEncode(t *testing.T) {
	frame, err := Encode("Bob", "Ann", "hi")
	require.NoError(t, err)
	require.Equal(t, "Bob|Ann|hi", string(frame))
}

func TestEncodeRejects(t *testing.T) {
	_, err := Encode("2bob", "Ann", "hi")
	require.True(t, errors.Is(err, ErrInvalidName))

	_, err = Encode("Bob", "", "hi")
	require.True(t, errors.Is(err, ErrInvalidName))

	_, err = Encode("Bob", "Ann", "")
	require.True(t, errors.Is(err, ErrInvalidBody))

	_, err = Encode("Bob", "Ann", "a|b")
	require.True(t, errors.Is(err, ErrInvalidBody))
}

func TestEncodeStatus(t *testing.T) {
	require.Equal(t, "0", string(EncodeStatus(ConnAccepted)))
	require.Equal(t, "4", string(EncodeStatus(MsgReceived)))
	require.Equal(t, "8", string(EncodeStatus(ReqClients)))
}

func TestDecodeDelivery(t *testing.T) {
	f, err := Decode([]byte("Ann|hello"), "Bob")
	require.NoError(t, err)

	env, ok := f.(*Envelope)
	require.True(t, ok, "expected *Envelope, got %T", f)
	require.Equal(t, Envelope{Source: "Ann", Destination: "Bob", Body: "hello"}, *env)
}

func TestDecodeStatus(t *testing.T) {
	for code := ConnAccepted; code <= ReqClients; code++ {
		f, err := Decode(code.Encode(), "Bob")
		require.NoError(t, err)
		sf, ok := f.(*StatusFrame)
		require.True(t, ok, "expected *StatusFrame, got %T", f)
		require.Equal(t, code, sf.Code)
	}
}

func TestDecodeTrailingNUL(t *testing.T) {
	f, err := Decode([]byte("5\x00\x00"), "Bob")
	require.NoError(t, err)
	require.Equal(t, &StatusFrame{Code: MsgSuccess}, f)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  DecodeErrorKind
	}{
		{"not a number", "hello", DecodeMalformed},
		{"empty", "", DecodeMalformed},
		{"unknown code", "42", DecodeUnknownCode},
		{"negative code", "-1", DecodeUnknownCode},
		{"three fields", "Ann|Bob|hi", DecodeMalformed},
		{"delimiter in body", "Ann|a|b|c", DecodeMalformed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Decode([]byte(tc.input), "Bob")
			require.Nil(t, f)
			var de *DecodeError
			require.True(t, errors.As(err, &de), "expected *DecodeError, got %v", err)
			require.Equal(t, tc.kind, de.Kind)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []struct{ src, dst, body string }{
		{"Bob", "Ann", "hi"},
		{"Ann", "Bob", "hello there"},
		{"Zed", "Amy", "12345"},
		{"Ödön", "Ann", "ünïcödé"},
	}
	for _, tc := range cases {
		frame, err := Encode(tc.src, tc.dst, tc.body)
		require.NoError(t, err)

		// The server strips the destination before forwarding.
		_, rest, ok := cutDestination(string(frame))
		require.True(t, ok)

		f, err := Decode([]byte(rest), tc.dst)
		require.NoError(t, err)
		env := f.(*Envelope)
		require.Equal(t, tc.src, env.Source)
		require.Equal(t, tc.body, env.Body)
		require.Equal(t, tc.dst, env.Destination)
	}
}

// cutDestination turns "<src>|<dest>|<body>" into "<src>|<body>", the way
// the relay server rewrites frames before forwarding them.
func cutDestination(frame string) (dest, forwarded string, ok bool) {
	src, rest, ok := strings.Cut(frame, Delimiter)
	if !ok {
		return "", "", false
	}
	dest, body, ok := strings.Cut(rest, Delimiter)
	if !ok {
		return "", "", false
	}
	return dest, src + Delimiter + body, true
}
