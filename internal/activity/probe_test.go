package activity

import "testing"

func boolPtr(b bool) *bool { return &b }

func TestProbe_SilentChannelStaysAtBaseline(t *testing.T) {
	p := New(133)
	p.SetColumns(map[int]int{132: 10})

	line := p.NextLine(100)
	if line[10] != float32(baseLineLevel) {
		t.Errorf("line[10] = %v, want baseline %v", line[10], baseLineLevel)
	}
}

func TestProbe_CenterWireIgnoresEnvAndScenic(t *testing.T) {
	p := New(133)
	p.SetColumns(map[int]int{133: 10})
	on := true
	p.UpdateEnv(133, 0.9, &on) // UpdateEnv never applies to the center wire

	line := p.NextLine(100)
	if line[10] != 0 {
		t.Errorf("line[10] = %v, want 0 (center wire painted by gate state, not env)", line[10])
	}
}

func TestProbe_CenterGateOnDrawsFullBrightness(t *testing.T) {
	p := New(133)
	p.SetColumns(map[int]int{133: 10})
	p.UpdateCenterGate(true)

	line := p.NextLine(100)
	if line[10] != 1.0 {
		t.Errorf("line[10] = %v, want 1.0 while center gate is on", line[10])
	}
}

func TestProbe_CenterGateOffDecays(t *testing.T) {
	p := New(133)
	p.SetColumns(map[int]int{133: 10})
	p.UpdateCenterGate(true)
	p.NextLine(100)
	p.UpdateCenterGate(false)

	line := p.NextLine(100)
	if line[10] != float32(centerGateDecay) {
		t.Errorf("line[10] = %v, want %v after one decay step", line[10], centerGateDecay)
	}
}

func TestProbe_KeyOnDrawsBrightPulse(t *testing.T) {
	p := New(133)
	p.SetColumns(map[int]int{132: 10})
	p.UpdateEnv(132, 0.9, boolPtr(true))

	line := p.NextLine(100)
	if line[10] <= float32(baseLineLevel) {
		t.Errorf("line[10] = %v, want a pulse above baseline", line[10])
	}
}

func TestProbe_KeyHoldOutlastsTheEvent(t *testing.T) {
	p := New(133)
	p.SetColumns(map[int]int{132: 10})
	p.UpdateEnv(132, 0.0, boolPtr(true))
	p.UpdateEnv(132, 0.0, boolPtr(false)) // key released immediately after

	line := p.NextLine(100)
	if line[10] <= float32(baseLineLevel) {
		t.Errorf("line[10] = %v, want the brief hold to still render a pulse", line[10])
	}
}

func TestProbe_BelowThresholdEnvelopeStaysQuiet(t *testing.T) {
	p := New(133)
	p.SetColumns(map[int]int{132: 10})
	p.UpdateEnv(132, 0.01, nil) // below defaultEnvThreshold

	line := p.NextLine(100)
	if line[10] != float32(baseLineLevel) {
		t.Errorf("line[10] = %v, want baseline for a sub-threshold envelope", line[10])
	}
}

func TestLinspace_EndpointsAndLength(t *testing.T) {
	got := linspace(0.6, 1.0, 3)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0] != 0.6 || got[2] != 1.0 {
		t.Errorf("got = %v, want endpoints 0.6 and 1.0", got)
	}
}

func TestClip01(t *testing.T) {
	if clip01(-1) != 0 {
		t.Error("clip01(-1) should clamp to 0")
	}
	if clip01(2) != 1 {
		t.Error("clip01(2) should clamp to 1")
	}
	if clip01(0.5) != 0.5 {
		t.Error("clip01(0.5) should be unchanged")
	}
}
