package ident

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// UidSize is the width of the base identifier in bytes (256 bits).
const UidSize = 32

// Uid identifies one resource instance across the network.
//
// Dup is the duplicate marker. Zero means no marker; the environment sets a
// non-zero value only after detecting two systems with the same Base.
// Two Uids are equal only if both fields match, so Uid is usable with ==
// and as a map key.
type Uid struct {
	Base [UidSize]byte
	Dup  uint16
}

// IsZero reports whether u is the zero Uid, which no resource ever carries.
func (u Uid) IsZero() bool {
	return u == Uid{}
}

// HasDup reports whether the environment assigned a duplicate marker.
func (u Uid) HasDup() bool {
	return u.Dup != 0
}

// String renders the base as hex, with "#dup" appended when a marker is set.
func (u Uid) String() string {
	s := hex.EncodeToString(u.Base[:])
	if u.Dup != 0 {
		return fmt.Sprintf("%s#%d", s, u.Dup)
	}
	return s
}

// Short returns the first 12 hex characters of the base, for logs.
func (u Uid) Short() string {
	return hex.EncodeToString(u.Base[:6])
}

// Compare orders Uids by base bytes, then by duplicate marker.
func (u Uid) Compare(other Uid) int {
	if c := bytes.Compare(u.Base[:], other.Base[:]); c != 0 {
		return c
	}
	switch {
	case u.Dup < other.Dup:
		return -1
	case u.Dup > other.Dup:
		return 1
	}
	return 0
}

// WithDup returns a copy of u carrying the given duplicate marker.
func (u Uid) WithDup(dup uint16) Uid {
	u.Dup = dup
	return u
}

// ParseUid parses the String form of a Uid.
func ParseUid(s string) (Uid, error) {
	var u Uid
	base := s
	var dup uint16
	if i := strings.IndexByte(s, '#'); i >= 0 {
		base = s[:i]
		n, err := strconv.ParseUint(s[i+1:], 10, 16)
		if err != nil {
			return Uid{}, fmt.Errorf("parse uid %q: bad duplicate marker: %w", s, err)
		}
		dup = uint16(n)
	}
	raw, err := hex.DecodeString(base)
	if err != nil {
		return Uid{}, fmt.Errorf("parse uid %q: %w", s, err)
	}
	if len(raw) != UidSize {
		return Uid{}, fmt.Errorf("parse uid %q: want %d bytes, got %d", s, UidSize, len(raw))
	}
	copy(u.Base[:], raw)
	u.Dup = dup
	return u, nil
}

// Domain prefixes for uid derivation.
// Version suffix enables future algorithm migration.
const (
	DomainThread   = "kobzar/thread/v1"
	DomainMessage  = "kobzar/message/v1"
	DomainResource = "kobzar/resource/v1"
)

// DeriveUid computes a Uid from a seed with domain separation.
// Format: SHA256(domain + 0x00 + seed)
// The null byte separator prevents domain/seed boundary ambiguity.
//
// Only environment implementations call this; clients receive Uids.
func DeriveUid(domain string, seed []byte) Uid {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(seed)
	var u Uid
	copy(u.Base[:], h.Sum(nil))
	return u
}
