package protocol

import "fmt"

// CurrentVersion is the highest message version this implementation
// produces and understands.
const CurrentVersion = 3

// MinimumVersion is the lowest message version this implementation
// will accept on the wire.
const MinimumVersion = 3

// VersionByte packs the sender version into the high nibble and the
// minimum-compatible version into the low nibble, as prepended to
// every WhisperMessage and PreKeyWhisperMessage frame.
func VersionByte() byte {
	return byte(CurrentVersion<<4) | byte(CurrentVersion)
}

// ParseVersionByte splits a version byte into (senderVersion,
// minVersion) and rejects it if the frame claims a minimum version we
// don't meet, or a sender version we don't understand.
func ParseVersionByte(b byte) (senderVersion, minVersion byte, err error) {
	senderVersion = b >> 4
	minVersion = b & 0x0F
	if minVersion > CurrentVersion {
		return 0, 0, fmt.Errorf("protocol: message requires version >= %d, have %d", minVersion, CurrentVersion)
	}
	if senderVersion < MinimumVersion {
		return 0, 0, fmt.Errorf("protocol: sender version %d is below minimum supported %d", senderVersion, MinimumVersion)
	}
	return senderVersion, minVersion, nil
}
