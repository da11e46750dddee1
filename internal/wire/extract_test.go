package wire

import (
	"encoding/binary"
	"testing"
)

// buildPayload encodes a DATA header followed by the given int16
// sequence, little-endian, matching the on-wire layout the extractor
// scans.
func buildPayload(seq []int16) []byte {
	buf := make([]byte, 2+len(seq)*2)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(Data))
	for i, v := range seq {
		binary.LittleEndian.PutUint16(buf[2+i*2:4+i*2], uint16(v))
	}
	return buf
}

func TestExtractTimings_AcceptsAlternatingSequence(t *testing.T) {
	payload := buildPayload([]int16{60, -400})
	seq, ok := ExtractTimings(payload)
	if !ok {
		t.Fatal("expected accepted sequence")
	}
	if len(seq) != 2 || seq[0] != 60 || seq[1] != -400 {
		t.Errorf("seq = %v, want [60 -400]", seq)
	}
}

func TestExtractTimings_RejectsAllZeroPayload(t *testing.T) {
	payload := make([]byte, 32)
	binary.LittleEndian.PutUint16(payload[0:2], uint16(Data))
	_, ok := ExtractTimings(payload)
	if ok {
		t.Error("expected no accepted sequence from all-zero payload")
	}
}

func TestExtractTimings_RejectsOutOfRangeDurations(t *testing.T) {
	payload := buildPayload([]int16{1, -1, 5000})
	_, ok := ExtractTimings(payload)
	if ok {
		t.Error("expected rejection of implausible durations")
	}
}

func TestExtractTimings_MustStartPositive(t *testing.T) {
	payload := buildPayload([]int16{-60, 40})
	_, ok := ExtractTimings(payload)
	if ok {
		t.Error("expected rejection of sequence starting negative")
	}
}

func TestIsAcceptable_RejectsEqualAdjacent(t *testing.T) {
	if isAcceptable([]int{60, 60}) {
		t.Error("equal adjacent elements should be rejected")
	}
}

func TestIsAcceptable_RejectsAllNegative(t *testing.T) {
	if isAcceptable([]int{-60, -40}) {
		t.Error("all-negative sequence should be rejected (no positive fraction)")
	}
}

func TestScore_PrefersLengthNearSix(t *testing.T) {
	near6 := []int{60, -60, 60, -60, 60, -60}
	far := []int{60, -60}
	if score(near6) <= score(far) {
		t.Error("a sequence of length 6 should score higher than length 2, all else equal")
	}
}
