package classifier

import "testing"

func TestClassifier_InitialModeUnknown(t *testing.T) {
	c := New()
	mode, wpm := c.Get()
	if mode != ModeUnknown {
		t.Errorf("mode = %v, want %v", mode, ModeUnknown)
	}
	if wpm != 0 {
		t.Errorf("wpm = %v, want 0", wpm)
	}
}

func TestClassifier_RegularTimingClassifiesAuto(t *testing.T) {
	c := New()
	for i := 0; i < minSamples; i++ {
		c.UpdateMarkMs(60)
		c.UpdateSpaceMs(60)
	}
	mode, _ := c.Get()
	if mode != ModeAuto {
		t.Errorf("mode = %v, want %v for perfectly regular timing", mode, ModeAuto)
	}
}

func TestClassifier_IrregularTimingClassifiesHuman(t *testing.T) {
	c := New()
	marks := []float64{50, 90, 55, 120, 45, 100, 60, 130, 48, 95, 70, 110}
	spaces := []float64{40, 150, 60, 200, 45, 120, 55, 180, 50, 140, 65, 160}
	for i := range marks {
		c.UpdateMarkMs(marks[i])
		c.UpdateSpaceMs(spaces[i])
	}
	mode, _ := c.Get()
	if mode != ModeHuman {
		t.Errorf("mode = %v, want %v for irregular timing", mode, ModeHuman)
	}
}

func TestClassifier_WPMTracksShortestMark(t *testing.T) {
	c := New()
	c.UpdateMarkMs(100)
	c.UpdateMarkMs(60)
	c.UpdateMarkMs(80)
	_, wpm := c.Get()
	want := 1.2 / 0.060
	if diff := wpm - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("wpm = %v, want %v", wpm, want)
	}
}

func TestClassifier_OutOfRangeDurationsIgnored(t *testing.T) {
	c := New()
	c.UpdateMarkMs(0.1)     // below minPlausibleMs
	c.UpdateMarkMs(20000.0) // above maxPlausibleMs
	_, wpm := c.Get()
	if wpm != 0 {
		t.Errorf("wpm = %v, want 0 (no plausible marks recorded)", wpm)
	}
}

func TestClassifier_WindowIsBounded(t *testing.T) {
	c := New()
	for i := 0; i < defaultWindow+10; i++ {
		c.UpdateMarkMs(60)
	}
	if len(c.marks) > defaultWindow {
		t.Errorf("len(marks) = %d, want <= %d", len(c.marks), defaultWindow)
	}
}

func TestCoefficientOfVariation_SingleSample(t *testing.T) {
	if got := coefficientOfVariation([]float64{42}); got != 1.0 {
		t.Errorf("coefficientOfVariation(single) = %v, want 1.0", got)
	}
}

func TestCoefficientOfVariation_ZeroForIdenticalValues(t *testing.T) {
	got := coefficientOfVariation([]float64{60, 60, 60, 60})
	if got != 0 {
		t.Errorf("coefficientOfVariation(identical) = %v, want 0", got)
	}
}
