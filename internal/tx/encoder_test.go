package tx

import (
	"testing"
	"time"
)

func TestEncoder_KeyDownUpEmitsEdges(t *testing.T) {
	var events []bool
	e := NewEncoder(func(isDown bool, t time.Time) { events = append(events, isDown) })

	e.KeyDown()
	e.KeyUp()

	if len(events) != 2 || events[0] != true || events[1] != false {
		t.Errorf("events = %v, want [true false]", events)
	}
}

func TestEncoder_RepeatedKeyDownIsNoOp(t *testing.T) {
	var count int
	e := NewEncoder(func(isDown bool, t time.Time) { count++ })

	e.KeyDown()
	e.KeyDown()
	e.KeyDown()

	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestEncoder_KeyUpWithoutKeyDownIsNoOp(t *testing.T) {
	var count int
	e := NewEncoder(func(isDown bool, t time.Time) { count++ })

	e.KeyUp()

	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestEncoder_SendTextReturnsNotImplemented(t *testing.T) {
	e := NewEncoder(nil)
	if err := e.SendText("CQ CQ"); err != ErrNotImplemented {
		t.Errorf("err = %v, want ErrNotImplemented", err)
	}
}

func TestSpacebarInput_PressRelease(t *testing.T) {
	var downs, ups int
	s := NewSpacebarInput(func() { downs++ }, func() { ups++ })
	s.debounce = 0 // disable debounce for deterministic sequencing in this test

	s.Press()
	s.Release()

	if downs != 1 || ups != 1 {
		t.Errorf("downs=%d ups=%d, want 1 and 1", downs, ups)
	}
}

func TestSpacebarInput_IgnoresRepeatedPress(t *testing.T) {
	var downs int
	s := NewSpacebarInput(func() { downs++ }, nil)
	s.debounce = 0

	s.Press()
	s.Press()

	if downs != 1 {
		t.Errorf("downs = %d, want 1", downs)
	}
}

func TestSpacebarInput_DebounceSuppressesRapidToggle(t *testing.T) {
	var downs int
	s := NewSpacebarInput(func() { downs++ }, nil)
	s.debounce = time.Hour // never elapses within the test

	s.Press()
	s.Release()
	s.Press() // within the debounce window of the first press

	if downs != 1 {
		t.Errorf("downs = %d, want 1 (second press suppressed by debounce)", downs)
	}
}
