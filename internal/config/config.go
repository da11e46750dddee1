// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	AppName       = "cwdecoder"
	ConfigType    = "yaml"
	DefaultConfig = `# CW relay client configuration

# Relay transport
host: "cwcom.co"        # relay server hostname
center_wire: 133         # wire number to tune to
span: 3                  # neighbour wires to scan on each side of center
callsign: ""             # your callsign, sent in the identity record
version_string: "cwdecoder 1.0"

# Sidetone audio
device_index: -1         # -1 for default playback device
tone_frequency: 600      # sidetone pitch in Hz
volume: 50                # 0-100

# Timing
wpm: 20                  # validated (5-60); the relay client does not read it

# Output
debug: false              # enable debug logging
`
)

// Settings holds all application configuration.
type Settings struct {
	// Relay transport
	Host          string `mapstructure:"host"`
	CenterWire    int    `mapstructure:"center_wire"`
	Span          int    `mapstructure:"span"`
	Callsign      string `mapstructure:"callsign"`
	VersionString string `mapstructure:"version_string"`

	// Sidetone audio
	DeviceIndex   int     `mapstructure:"device_index"`
	ToneFrequency float64 `mapstructure:"tone_frequency"`
	Volume        int     `mapstructure:"volume"`

	// Timing
	WPM int `mapstructure:"wpm"`

	// Output
	Debug bool `mapstructure:"debug"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/cwdecoder/
func Init() error {
	viper.SetDefault("host", "cwcom.co")
	viper.SetDefault("center_wire", 133)
	viper.SetDefault("span", 3)
	viper.SetDefault("callsign", "")
	viper.SetDefault("version_string", "cwdecoder 1.0")
	viper.SetDefault("device_index", -1)
	viper.SetDefault("tone_frequency", 600)
	viper.SetDefault("volume", 50)
	viper.SetDefault("wpm", 20)
	viper.SetDefault("debug", false)

	// Support both config.yaml and .config.yaml
	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		// Try config.yaml as fallback
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	// Read config file - if not found, create default in XDG config dir
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config found - create default in ~/.config/cwdecoder/
			xdgConfigPath := filepath.Join(configDir, AppName)
			if err = ensureConfigExists(xdgConfigPath); err != nil {
				return err
			}
			// Read the newly created config
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings.
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within acceptable ranges.
func (s *Settings) Validate() error {
	var errs []error

	if s.Host == "" {
		errs = append(errs, fmt.Errorf("host must not be empty"))
	}
	if s.CenterWire <= 0 {
		errs = append(errs, fmt.Errorf("center_wire must be > 0, got %d", s.CenterWire))
	}
	if s.Span < 0 {
		errs = append(errs, fmt.Errorf("span must be >= 0, got %d", s.Span))
	}
	if s.Span > 50 {
		errs = append(errs, fmt.Errorf("span must be <= 50, got %d", s.Span))
	}

	if s.DeviceIndex < -1 {
		errs = append(errs, fmt.Errorf("device_index must be -1 or a valid device index, got %d", s.DeviceIndex))
	}
	if s.ToneFrequency < 200 || s.ToneFrequency > 1400 {
		errs = append(errs, fmt.Errorf("tone_frequency must be between 200 and 1400 Hz, got %v", s.ToneFrequency))
	}
	if s.Volume < 0 || s.Volume > 100 {
		errs = append(errs, fmt.Errorf("volume must be between 0 and 100, got %d", s.Volume))
	}

	if s.WPM < 5 || s.WPM > 60 {
		errs = append(errs, fmt.Errorf("wpm must be between 5 and 60, got %d", s.WPM))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
