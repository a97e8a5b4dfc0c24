package domain

import (
	"crypto/rand"
	"fmt"
)

// NewUUID returns a version-4 UUID string. Used as the primary key for
// message log rows.
func NewUUID() string {
	var b [16]byte
	rand.Read(b[:]) // guaranteed not to fail since Go 1.24
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
