// Package protocol implements the wire-level concerns shared by every
// session: peer addressing, the version byte prepended to every
// frame, and the tag-delimited codecs for WhisperMessage,
// PreKeyWhisperMessage, and KeyExchangeMessage.
package protocol

import "fmt"

// Address identifies a remote party's specific device. It is used as
// both the per-address job queue key and the storage key.
type Address struct {
	ID       string
	DeviceID uint32
}

// NewAddress constructs an Address.
func NewAddress(id string, deviceID uint32) Address {
	return Address{ID: id, DeviceID: deviceID}
}

// String renders the address as "id.deviceId", the canonical
// identifier used for locking and storage lookups.
func (a Address) String() string {
	return fmt.Sprintf("%s.%d", a.ID, a.DeviceID)
}
