package wire

import "encoding/binary"

// minTimingMs and maxTimingMs bound the plausible duration of a single
// mark or space element, in milliseconds.
const (
	minTimingMs = 2
	maxTimingMs = 4000
	minWindow   = 2
	maxWindow   = 16
)

// ExtractTimings scans a DATA payload for an embedded mark/space timing
// sequence. It tries both 2-byte and 4-byte signed-integer strides,
// starting at offset 2, sliding a window of length 2..16 over the
// decoded integers. Among all accepted candidates it returns the one
// that maximises a score preferring shorter total duration, stricter
// sign alternation, and length near 6. It reports false if no candidate
// is accepted, meaning the caller should fall through to fallback
// gating.
func ExtractTimings(payload []byte) ([]int, bool) {
	var best []int
	bestScore := 0.0
	haveBest := false

	for _, stride := range [2]int{2, 4} {
		ints := decodeInts(payload, stride)
		n := len(ints)
		for start := 0; start < n; start++ {
			maxEnd := start + maxWindow
			if maxEnd > n {
				maxEnd = n
			}
			for end := start + minWindow; end <= maxEnd; end++ {
				seq := ints[start:end]
				if !isAcceptable(seq) {
					continue
				}
				s := score(seq)
				if !haveBest || s > bestScore {
					best = append([]int(nil), seq...)
					bestScore = s
					haveBest = true
				}
			}
		}
	}

	return best, haveBest
}

// decodeInts decodes the payload starting at offset 2 as a run of
// signed integers of the given byte stride (2 or 4).
func decodeInts(payload []byte, stride int) []int {
	if len(payload) <= 2 {
		return nil
	}
	body := payload[2:]
	n := len(body) / stride
	ints := make([]int, n)
	for i := 0; i < n; i++ {
		off := i * stride
		switch stride {
		case 2:
			ints[i] = int(int16(binary.LittleEndian.Uint16(body[off : off+2])))
		case 4:
			ints[i] = int(int32(binary.LittleEndian.Uint32(body[off : off+4])))
		}
	}
	return ints
}

// isAcceptable applies the extraction acceptance contract: every
// element's absolute value in [2, 4000], the sequence starts with a
// positive value, no two adjacent elements equal, and at least one
// positive element.
func isAcceptable(seq []int) bool {
	if len(seq) < minWindow || len(seq) > maxWindow {
		return false
	}
	if seq[0] <= 0 {
		return false
	}
	positives := 0
	for i, v := range seq {
		a := v
		if a < 0 {
			a = -a
		}
		if a < minTimingMs || a > maxTimingMs {
			return false
		}
		if v > 0 {
			positives++
		}
		if i > 0 && v == seq[i-1] {
			return false
		}
	}
	return positives > 0
}

// score ranks an accepted candidate: alternation is weighted heaviest,
// then a preference for shorter total duration, then for length near 6.
func score(seq []int) float64 {
	total := 0
	for _, v := range seq {
		if v < 0 {
			total += -v
		} else {
			total += v
		}
	}
	alternations := 0
	for i := 1; i < len(seq); i++ {
		if (seq[i] > 0) != (seq[i-1] > 0) {
			alternations++
		}
	}
	lengthPenalty := len(seq) - 6
	if lengthPenalty < 0 {
		lengthPenalty = -lengthPenalty
	}
	return float64(alternations)*10.0 - float64(total)/50.0 - float64(lengthPenalty)
}
