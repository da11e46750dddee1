package decode

import "testing"

func TestAdaptiveDecoder_RecognizesKnownPattern(t *testing.T) {
	d := New(Callbacks{})
	a := NewAdaptiveDecoder(d)

	var matched string
	var gotConfidence float64
	a.SetMatchCallback(func(text string, confidence float64, adjusted bool) {
		matched = text
		gotConfidence = confidence
	})

	// DE = -.. . with a character break after the D (index 2).
	elems := []Element{
		{IsDash: true, IsCharEnd: false},
		{IsDash: false, IsCharEnd: false},
		{IsDash: false, IsCharEnd: true},
		{IsDash: false, IsCharEnd: true, IsWordEnd: true},
	}
	for _, e := range elems {
		a.RecordElement(e)
	}

	if matched != "DE" {
		t.Fatalf("matched = %q, want %q", matched, "DE")
	}
	if gotConfidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", gotConfidence)
	}
}

func TestAdaptiveDecoder_NoMatchForUnknownSequence(t *testing.T) {
	d := New(Callbacks{})
	a := NewAdaptiveDecoder(d)

	called := false
	a.SetMatchCallback(func(text string, confidence float64, adjusted bool) {
		called = true
	})

	elems := []Element{
		{IsDash: true, IsCharEnd: true},
		{IsDash: true, IsCharEnd: true},
		{IsDash: true, IsCharEnd: true, IsWordEnd: true},
	}
	for _, e := range elems {
		a.RecordElement(e)
	}

	if called {
		t.Error("expected no pattern match for an all-dash sequence with no CommonPatterns entry")
	}
}

func TestAdaptiveDecoder_ElementBufferBounded(t *testing.T) {
	d := New(Callbacks{})
	a := NewAdaptiveDecoder(d)

	for i := 0; i < maxElementBuffer+20; i++ {
		a.RecordElement(Element{IsDash: i%2 == 0})
	}

	a.mu.Lock()
	n := len(a.elementBuffer)
	a.mu.Unlock()
	if n > maxElementBuffer {
		t.Errorf("elementBuffer len = %d, want <= %d", n, maxElementBuffer)
	}
}

func TestAdaptiveDecoder_Reset(t *testing.T) {
	d := New(Callbacks{})
	a := NewAdaptiveDecoder(d)

	a.RecordElement(Element{IsDash: true, IsCharEnd: true, IsWordEnd: true})
	a.Reset()

	a.mu.Lock()
	n := len(a.elementBuffer)
	a.mu.Unlock()
	if n != 0 {
		t.Errorf("elementBuffer len after Reset = %d, want 0", n)
	}
}

func TestDecodeElements(t *testing.T) {
	got := decodeElements([]Element{{IsDash: false}, {IsDash: true}, {IsDash: false}})
	if got != ".-." {
		t.Errorf("decodeElements() = %q, want %q", got, ".-.")
	}
}
