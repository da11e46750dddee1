// cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/n0call/cwrelay/internal/client"
	"github.com/n0call/cwrelay/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "cwdecoder",
	Short: "CW relay client for CWCom/KOB-style UDP wires",
	Long:  `Tunes a UDP relay wire, decodes received CW, and plays it back as sidetone.`,
	RunE:  runRelay,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("host", "cwcom.co", "relay server hostname")
	rootCmd.PersistentFlags().IntP("wire", "w", 133, "center wire number to tune")
	rootCmd.PersistentFlags().Int("span", 3, "neighbour wires to scan on each side of center")
	rootCmd.PersistentFlags().String("callsign", "", "your callsign, sent in the identity record")
	rootCmd.PersistentFlags().String("version-string", "cwdecoder 1.0", "identity string sent to the relay")
	rootCmd.PersistentFlags().Float64("tone", 600, "sidetone frequency in Hz")
	rootCmd.PersistentFlags().Int("volume", 50, "sidetone volume, 0-100")
	rootCmd.PersistentFlags().Int("wpm", 20, "WPM setting (validated; not read by the relay client)")
	rootCmd.PersistentFlags().IntP("device", "d", -1, "audio playback device index (-1 for default)")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")

	_ = viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	_ = viper.BindPFlag("center_wire", rootCmd.PersistentFlags().Lookup("wire"))
	_ = viper.BindPFlag("span", rootCmd.PersistentFlags().Lookup("span"))
	_ = viper.BindPFlag("callsign", rootCmd.PersistentFlags().Lookup("callsign"))
	_ = viper.BindPFlag("version_string", rootCmd.PersistentFlags().Lookup("version-string"))
	_ = viper.BindPFlag("tone_frequency", rootCmd.PersistentFlags().Lookup("tone"))
	_ = viper.BindPFlag("volume", rootCmd.PersistentFlags().Lookup("volume"))
	_ = viper.BindPFlag("wpm", rootCmd.PersistentFlags().Lookup("wpm"))
	_ = viper.BindPFlag("device_index", rootCmd.PersistentFlags().Lookup("device"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

func runRelay(cmd *cobra.Command, args []string) error {
	settings, err := config.Get()
	if err != nil {
		return err
	}

	c, err := client.New(client.Config{
		Host:        settings.Host,
		Center:      settings.CenterWire,
		Span:        settings.Span,
		Callsign:    settings.Callsign,
		Version:     settings.VersionString,
		ToneHz:      settings.ToneFrequency,
		Volume:      settings.Volume,
		DeviceIndex: settings.DeviceIndex,
	})
	if err != nil {
		return err
	}

	if settings.Debug {
		c.SetNotifier(stderrNotifier{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start client: %w", err)
	}

	fmt.Fprintf(os.Stdout, "tuned to wire %d on %s, span %d\n", settings.CenterWire, settings.Host, settings.Span)
	<-ctx.Done()

	return c.Stop()
}
