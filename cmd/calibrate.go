// cmd/calibrate.go
package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/n0call/cwrelay/internal/audio"
	"github.com/n0call/cwrelay/internal/dsp"
	"github.com/spf13/cobra"
)

const (
	calSampleRate = 48000.0
	calBlockSize  = 256
	calDotMs      = 60.0 // 20 WPM
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Self-test the tone detector against a synthesized CW pattern",
	Long: `Generates "PARIS" as a sine-wave tone at the configured frequency,
runs it through the Goertzel/AGC/hysteresis detector stack, and reports
whether the recovered mark/space pattern matches what was sent.`,
	RunE: runCalibrate,
}

func init() {
	calibrateCmd.Flags().Float64("tone", 600, "test tone frequency in Hz")
	rootCmd.AddCommand(calibrateCmd)
}

// morseUnit is one "dit"/"dah" mark or one element/char/word gap, in
// dot units; parisPattern returns a slice of them for one send of "PARIS".
type morseUnit struct {
	mark bool // true: tone on for this many dots; false: silence
	dots float64
}

// parisPattern returns the keying sequence for "PARIS ", a timing
// reference word because at 50 units per word it defines WPM directly.
func parisPattern() []morseUnit {
	const (
		dit     = 1.0
		dah     = 3.0
		elemGap = 1.0
		charGap = 3.0
		wordGap = 7.0
	)
	letters := [][]float64{
		{dit, dah, dah, dit}, // P
		{dit, dah},           // A
		{dit, dah, dit, dit}, // R
		{dit, dit},           // I
		{dit, dit, dit},      // S
	}

	var seq []morseUnit
	for li, letter := range letters {
		for ei, dots := range letter {
			seq = append(seq, morseUnit{mark: true, dots: dots})
			if ei < len(letter)-1 {
				seq = append(seq, morseUnit{mark: false, dots: elemGap})
			}
		}
		if li < len(letters)-1 {
			seq = append(seq, morseUnit{mark: false, dots: charGap})
		}
	}
	seq = append(seq, morseUnit{mark: false, dots: wordGap})
	return seq
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	toneHz, _ := cmd.Flags().GetFloat64("tone")
	sent := parisPattern()

	detector, err := buildDetector(toneHz)
	if err != nil {
		return fmt.Errorf("calibrate: %w", err)
	}

	var recovered []bool
	detector.SetCallback(func(ev dsp.ToneEvent) {
		// ToneOn==false fires at mark-end; ToneOn==true fires at space-end.
		recovered = append(recovered, !ev.ToneOn)
	})

	if err := calibrateLiveLoopback(toneHz, detector); err != nil {
		fmt.Fprintf(os.Stdout, "calibrate: no loopback device (%v), falling back to a synthesized signal\n", err)
		samples := synthesizePattern(sent, toneHz, calDotMs)
		processInChunks(detector, samples)
	}

	if ok := verifyPattern(sent, recovered); ok {
		fmt.Fprintf(os.Stdout, "calibrate: OK, recovered %d transitions at %.0f Hz\n", len(recovered), toneHz)
		return nil
	}
	fmt.Fprintf(os.Stdout, "calibrate: MISMATCH, sent %d transitions, recovered %d at %.0f Hz\n",
		len(sent), len(recovered), toneHz)
	return fmt.Errorf("calibrate: detector did not recover the sent pattern")
}

func buildDetector(toneHz float64) (*dsp.Detector, error) {
	goertzel, err := dsp.NewGoertzel(dsp.GoertzelConfig{
		TargetFrequency: toneHz,
		SampleRate:      calSampleRate,
		BlockSize:       calBlockSize,
	})
	if err != nil {
		return nil, fmt.Errorf("build goertzel: %w", err)
	}

	detector, err := dsp.NewDetector(dsp.DetectorConfig{
		Threshold:       0.35,
		Hysteresis:      2,
		OverlapPct:      50,
		AGCEnabled:      true,
		AGCDecay:        0.9995,
		AGCAttack:       0.2,
		AGCWarmupBlocks: 4,
	}, goertzel)
	if err != nil {
		return nil, fmt.Errorf("build detector: %w", err)
	}
	return detector, nil
}

// calibrateLiveLoopback plays the PARIS pattern through the sidetone
// Engine and listens for it on the default capture device, feeding
// whatever it hears into detector. It returns an error (not a test
// failure) whenever no usable loopback path exists, in which case the
// caller falls back to an in-memory synthesized signal.
func calibrateLiveLoopback(toneHz float64, detector *dsp.Detector) error {
	engineCfg := audio.DefaultConfig()
	engineCfg.ToneHz = toneHz
	engine := audio.New(engineCfg)
	if err := engine.Init(); err != nil {
		return fmt.Errorf("init playback: %w", err)
	}
	defer engine.Close()

	capture := audio.NewCapture(audio.DefaultCaptureConfig())
	if err := capture.Init(); err != nil {
		return fmt.Errorf("init capture: %w", err)
	}
	defer capture.Close()

	capture.SetCallback(func(samples []float32) {
		detector.Process(samples)
	})

	sent := parisPattern()
	totalDots := 0.0
	for _, u := range sent {
		totalDots += u.dots
	}
	totalDur := time.Duration(totalDots*calDotMs) * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), totalDur+500*time.Millisecond)
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	if err := capture.Start(ctx); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	for _, u := range sent {
		engine.TXKey(u.mark)
		time.Sleep(time.Duration(u.dots * calDotMs * float64(time.Millisecond)))
	}
	engine.TXKey(false)
	time.Sleep(200 * time.Millisecond)

	return nil
}

func processInChunks(detector *dsp.Detector, samples []float32) {
	const chunk = 512
	for i := 0; i < len(samples); i += chunk {
		end := i + chunk
		if end > len(samples) {
			end = len(samples)
		}
		detector.Process(samples[i:end])
	}
}

// synthesizePattern renders seq as a float32 sample buffer: a sine wave
// at toneHz during marks, silence during spaces, one dot = dotMs.
func synthesizePattern(seq []morseUnit, toneHz, dotMs float64) []float32 {
	var out []float32
	phase := 0.0
	phaseStep := 2 * math.Pi * toneHz / calSampleRate

	for _, u := range seq {
		durS := (u.dots * dotMs) / 1000.0
		n := int(durS * calSampleRate)
		for i := 0; i < n; i++ {
			var v float32
			if u.mark {
				v = float32(0.8 * math.Sin(phase))
			}
			phase += phaseStep
			if phase >= 2*math.Pi {
				phase -= 2 * math.Pi
			}
			out = append(out, v)
		}
	}
	return out
}

// verifyPattern checks the detector recovered the same number of
// mark/space transitions as were sent, within a small tolerance for
// the leading/trailing edge the hysteresis window can swallow.
func verifyPattern(sent []morseUnit, recovered []bool) bool {
	sentTransitions := len(sent)
	diff := sentTransitions - len(recovered)
	if diff < 0 {
		diff = -diff
	}
	return diff <= 2
}
