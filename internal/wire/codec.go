// Package wire implements the CWCom-style relay datagram protocol:
// short CONNECT/DISCONNECT/DATA/ACK records, the 496-byte identity
// record, and the heuristic mark/space timing extractor.
package wire

import (
	"encoding/binary"
	"errors"
	"strings"
)

// Command identifies the kind of a short wire-protocol record.
type Command uint16

const (
	Disconnect Command = 2
	Data       Command = 3
	Connect    Command = 4
	Ack        Command = 5
)

// Port is the UDP port the relay server listens on.
const Port = 7890

// ShortRecordSize is the size in bytes of a CONNECT/DISCONNECT short record.
const ShortRecordSize = 4

// IdentityRecordSize is the size in bytes of the identity/DATA record.
const IdentityRecordSize = 496

const (
	identityCallsignOffset = 4
	identityFieldLen       = 128
	identitySequenceOffset = 356
	identityVersionOffset  = 360
)

var (
	// ErrShortRecord indicates a buffer too small to hold a short record.
	ErrShortRecord = errors.New("wire: buffer too small for short record")
	// ErrIdentityRecord indicates a buffer of the wrong size for an identity record.
	ErrIdentityRecord = errors.New("wire: buffer is not an identity record")
)

// EncodeShort serialises a CONNECT/DISCONNECT/DATA/ACK short record.
func EncodeShort(cmd Command, wireNum uint16) []byte {
	buf := make([]byte, ShortRecordSize)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(cmd))
	binary.LittleEndian.PutUint16(buf[2:4], wireNum)
	return buf
}

// DecodeShort parses a 4-byte short record.
func DecodeShort(buf []byte) (Command, uint16, error) {
	if len(buf) < ShortRecordSize {
		return 0, 0, ErrShortRecord
	}
	cmd := Command(binary.LittleEndian.Uint16(buf[0:2]))
	wireNum := binary.LittleEndian.Uint16(buf[2:4])
	return cmd, wireNum, nil
}

// Identity is the station identity carried in the DATA identity record.
type Identity struct {
	Callsign string
	Version  string
	// Sequence is always encoded as 0; the server-side meaning of this
	// field is undocumented and it is preserved as-is, never interpreted.
	Sequence uint32
}

// EncodeIdentity serialises an Identity into a 496-byte identity record.
// Callsign and Version are ASCII-only, NUL-padded, and truncated to 127
// bytes plus the terminating NUL.
func EncodeIdentity(id Identity) []byte {
	buf := make([]byte, IdentityRecordSize)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(Data))
	putPaddedASCII(buf[identityCallsignOffset:identityCallsignOffset+identityFieldLen], id.Callsign)
	binary.LittleEndian.PutUint32(buf[identitySequenceOffset:identitySequenceOffset+4], id.Sequence)
	putPaddedASCII(buf[identityVersionOffset:identityVersionOffset+identityFieldLen], id.Version)
	return buf
}

// DecodeIdentity parses a 496-byte identity record.
func DecodeIdentity(buf []byte) (Identity, error) {
	if len(buf) != IdentityRecordSize {
		return Identity{}, ErrIdentityRecord
	}
	seq := binary.LittleEndian.Uint32(buf[identitySequenceOffset : identitySequenceOffset+4])
	return Identity{
		Callsign: readPaddedASCII(buf[identityCallsignOffset : identityCallsignOffset+identityFieldLen]),
		Version:  readPaddedASCII(buf[identityVersionOffset : identityVersionOffset+identityFieldLen]),
		Sequence: seq,
	}, nil
}

func putPaddedASCII(dst []byte, s string) {
	if len(s) > identityFieldLen-1 {
		s = s[:identityFieldLen-1]
	}
	clear(dst)
	copy(dst, s)
}

func readPaddedASCII(src []byte) string {
	n := 0
	for n < len(src) && src[n] != 0 {
		n++
	}
	return string(src[:n])
}

// CleanHost strips a leading http:// or https:// scheme and anything
// from the first path separator onward.
func CleanHost(h string) string {
	h = strings.TrimSpace(h)
	h = strings.TrimPrefix(h, "https://")
	h = strings.TrimPrefix(h, "http://")
	if idx := strings.Index(h, "/"); idx >= 0 {
		h = h[:idx]
	}
	return h
}

// WiresAround returns the 2*span+1 wire numbers centred on center,
// clamped so the window edges never drop below 1.
func WiresAround(center, span int) []int {
	if span < 0 {
		span = 0
	}
	start := center - span
	if start < 1 {
		start = 1
	}
	wires := make([]int, 2*span+1)
	for i := range wires {
		wires[i] = start + i
	}
	return wires
}
