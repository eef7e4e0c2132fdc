package id

import (
	"crypto/rand"
	"encoding/hex"
)

// NewRunID returns a random 16-hex-character identifier used to
// correlate log lines and activity entries produced by one check run.
func NewRunID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		return "0000000000000000"
	}
	return hex.EncodeToString(buf[:])
}
