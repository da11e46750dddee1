package decode

import (
	"testing"
	"time"
)

type recorder struct {
	elems []string
	chars []rune
	spcs  int
}

func (r *recorder) cb() Callbacks {
	return Callbacks{
		OnElement: func(s string) { r.elems = append(r.elems, s) },
		OnChar:    func(ch rune) { r.chars = append(r.chars, ch) },
		OnSpace:   func() { r.spcs++ },
	}
}

func TestDecoder_HintMarkClassifiesDotAndDash(t *testing.T) {
	r := &recorder{}
	d := New(r.cb())

	d.HintMark(60)  // ~dot at 60ms seed
	d.HintMark(200) // clearly a dash

	if len(r.elems) != 2 || r.elems[0] != "." || r.elems[1] != "-" {
		t.Fatalf("elems = %v, want [. -]", r.elems)
	}
}

func TestDecoder_HintSpaceFlushesCharacter(t *testing.T) {
	r := &recorder{}
	d := New(r.cb())

	d.HintMark(60) // E = "."
	d.HintSpace(500)

	if len(r.chars) != 1 || r.chars[0] != 'E' {
		t.Fatalf("chars = %v, want [E]", r.chars)
	}
}

func TestDecoder_HintSpaceShortGapDoesNotFlush(t *testing.T) {
	r := &recorder{}
	d := New(r.cb())

	d.HintMark(60)
	d.HintSpace(10) // well under 1.5*dot, intra-character
	d.HintMark(60)
	d.HintSpace(500)

	if len(r.chars) != 1 || r.chars[0] != 'I' {
		t.Fatalf("chars = %v, want [I] (two dots joined into one character)", r.chars)
	}
}

func TestDecoder_LongGapEmitsWordSpace(t *testing.T) {
	r := &recorder{}
	d := New(r.cb())

	d.HintMark(60)
	d.HintSpace(6.5 * 60 * 1.5) // well past the word threshold

	if len(r.chars) != 1 {
		t.Fatalf("chars = %v, want exactly one flushed character", r.chars)
	}
	if r.spcs != 1 {
		t.Fatalf("spcs = %d, want 1", r.spcs)
	}
}

func TestDecoder_UnknownSequenceEmitsGlyph(t *testing.T) {
	r := &recorder{}
	d := New(r.cb())

	for i := 0; i < 8; i++ {
		d.HintMark(60)
		d.HintSpace(10)
	}
	d.HintSpace(500)

	if len(r.chars) != 1 || r.chars[0] != unknownGlyph {
		t.Fatalf("chars = %v, want [%c]", r.chars, unknownGlyph)
	}
}

func TestDecoder_KeyEdgeRoundTrip(t *testing.T) {
	r := &recorder{}
	d := New(r.cb())

	base := time.Now()
	d.KeyEdge(true, base)                                 // first edge seeds state, no-op
	d.KeyEdge(false, base.Add(60*time.Millisecond))        // mark ends: dot
	d.KeyEdge(true, base.Add(560*time.Millisecond))        // long gap, key back down

	if len(r.elems) != 1 || r.elems[0] != "." {
		t.Fatalf("elems = %v, want [.]", r.elems)
	}
	if len(r.chars) != 1 || r.chars[0] != 'E' {
		t.Fatalf("chars = %v, want [E]", r.chars)
	}
}

func TestDecoder_IdleTickFlushesAfterTrailingMark(t *testing.T) {
	r := &recorder{}
	d := New(r.cb())

	base := time.Now()
	d.KeyEdge(true, base)
	d.KeyEdge(false, base.Add(60*time.Millisecond)) // mark ends, gate off, no further edge arrives

	d.IdleTick(base.Add(60*time.Millisecond + 400*time.Millisecond))

	if len(r.chars) != 1 || r.chars[0] != 'E' {
		t.Fatalf("chars = %v, want [E]", r.chars)
	}
}

func TestDecoder_IdleTickDoesNotDoubleFlush(t *testing.T) {
	r := &recorder{}
	d := New(r.cb())

	base := time.Now()
	d.KeyEdge(true, base)
	d.KeyEdge(false, base.Add(60*time.Millisecond))

	d.IdleTick(base.Add(500 * time.Millisecond))
	d.IdleTick(base.Add(600 * time.Millisecond))
	d.IdleTick(base.Add(2 * time.Second))

	if len(r.chars) != 1 {
		t.Fatalf("chars = %v, want exactly one flush", r.chars)
	}
}

func TestDecoder_WPMTracksDotEstimate(t *testing.T) {
	d := New(Callbacks{})
	got := d.WPM()
	want := 1.2 / 0.060
	if diff := got - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("WPM() = %v, want %v", got, want)
	}
}

func TestDecoder_DotEstimateStaysWithinBounds(t *testing.T) {
	d := New(Callbacks{})
	for i := 0; i < 50; i++ {
		d.HintMark(5) // implausibly short, should clamp at the floor
	}
	if d.Dot() < minDotS || d.Dot() > maxDotS {
		t.Errorf("Dot() = %v, want within [%v, %v]", d.Dot(), minDotS, maxDotS)
	}
}
