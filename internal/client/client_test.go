package client

import "testing"

func TestNew_RejectsNonPositiveCenterWire(t *testing.T) {
	_, err := New(Config{Host: "127.0.0.1", Center: 0, Span: 2})
	if err != ErrInvalidCenterWire {
		t.Errorf("err = %v, want ErrInvalidCenterWire", err)
	}
}

func TestNew_RejectsNegativeSpan(t *testing.T) {
	_, err := New(Config{Host: "127.0.0.1", Center: 133, Span: -1})
	if err != ErrInvalidSpan {
		t.Errorf("err = %v, want ErrInvalidSpan", err)
	}
}

func TestNew_BuildsPipelineForValidConfig(t *testing.T) {
	c, err := New(Config{Host: "127.0.0.1", Center: 133, Span: 2, Callsign: "W1AW"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.decoder == nil || c.adaptive == nil || c.classifier == nil || c.probe == nil || c.engine == nil || c.relay == nil || c.player == nil {
		t.Error("New() left a pipeline component nil")
	}
}

func TestStop_WithoutStartReturnsErrNotRunning(t *testing.T) {
	c, err := New(Config{Host: "127.0.0.1", Center: 133, Span: 0})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Stop(); err != ErrNotRunning {
		t.Errorf("Stop() = %v, want ErrNotRunning", err)
	}
}

func TestColumnsFor_SpreadsWiresAcrossWidth(t *testing.T) {
	cols := columnsFor([]int{131, 132, 133, 134, 135})
	if len(cols) != 5 {
		t.Fatalf("len(cols) = %d, want 5", len(cols))
	}
	if cols[131] != 0 {
		t.Errorf("cols[131] = %d, want 0", cols[131])
	}
	if cols[135] <= cols[134] {
		t.Errorf("cols[135] = %d should be greater than cols[134] = %d", cols[135], cols[134])
	}
}

func TestColumnsFor_EmptyWires(t *testing.T) {
	cols := columnsFor(nil)
	if len(cols) != 0 {
		t.Errorf("len(cols) = %d, want 0", len(cols))
	}
}

func TestMarkerFraction(t *testing.T) {
	if got := markerFraction("-"); got != 1.0 {
		t.Errorf("markerFraction(-) = %v, want 1.0", got)
	}
	if got := markerFraction("."); got != 0.3 {
		t.Errorf("markerFraction(.) = %v, want 0.3", got)
	}
}

func TestBoolEnv(t *testing.T) {
	if boolEnv(true) != 1.0 {
		t.Error("boolEnv(true) should be 1.0")
	}
	if boolEnv(false) != 0.0 {
		t.Error("boolEnv(false) should be 0.0")
	}
}

func TestOnSpace_SkipsAdaptiveRecordWithoutPendingMark(t *testing.T) {
	c, err := New(Config{Host: "127.0.0.1", Center: 133, Span: 0})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	// No OnElem/OnMark has fired yet, so this must not panic and must
	// leave the adaptive matcher untouched.
	c.onSpace(500)
}

func TestOnElemThenOnMarkThenOnSpace_RecordsElement(t *testing.T) {
	c, err := New(Config{Host: "127.0.0.1", Center: 133, Span: 0})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.onElem(".")
	c.onMark(60)
	c.onSpace(200) // just under the 210ms char-gap threshold at the default 60ms dot

	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.pending.have {
		t.Error("pending mark should be cleared after onSpace")
	}
}
