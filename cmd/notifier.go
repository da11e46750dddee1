// cmd/notifier.go
package cmd

import (
	"fmt"
	"os"
)

// stderrNotifier is the --debug Notifier: it prints every display
// update to stderr instead of rendering a waterfall, for headless
// troubleshooting of a relay session.
type stderrNotifier struct{}

func (stderrNotifier) AppendText(s string) { fmt.Fprint(os.Stderr, s) }
func (stderrNotifier) SetTitle(s string)   { fmt.Fprintf(os.Stderr, "[title] %s\n", s) }
func (stderrNotifier) SetSMeter(level, over float32) {
	fmt.Fprintf(os.Stderr, "[smeter] level=%.2f over=%.2f\n", level, over)
}
func (stderrNotifier) SetWaterfallLine(line []float32) {}
func (stderrNotifier) SetChannelDisplay(wire int, label string) {
	fmt.Fprintf(os.Stderr, "[wire] %d -> %s\n", wire, label)
}
func (stderrNotifier) SetMarkerFraction(f float32) {}
