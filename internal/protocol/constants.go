package protocol

// Delimiter separates envelope fields on the wire.
const Delimiter = "|"

// NameSize is the longest display name the server accepts, in characters.
const NameSize = 10

// BufferSize is the largest frame either side reads in one call.
const BufferSize = 512

// Envelope field counts. The wire carries no type tag, so the number of
// fields is what tells a chat frame from a status frame.
const (
	StatusFields   = 1 // "<code>"
	DeliveryFields = 2 // "<src>|<body>", server to recipient
	SendFields     = 3 // "<src>|<dest>|<body>", client to server
)
