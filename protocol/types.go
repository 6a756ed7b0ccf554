package protocol

// MessageType tags the outer envelope a SessionCipher produces, so a
// transport layer knows which decode path to hand the bytes to.
type MessageType int

const (
	// WhisperType wraps a bare WhisperMessage frame.
	WhisperType MessageType = 1
	// KeyExchangeType wraps a KeyExchangeMessage frame.
	KeyExchangeType MessageType = 2
	// PreKeyType wraps a PreKeyWhisperMessage frame.
	PreKeyType MessageType = 3
)
