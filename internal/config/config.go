// Package config loads button-monitor settings.
//
// Settings are layered: command-line flags override environment variables
// (BUTTONMON_ prefix), which override a JSON config file, which overrides
// the built-in defaults. A flag named "led-pin" is the key "led.pin", the
// environment variable BUTTONMON_LED_PIN and the JSON path {"led":{"pin":n}}.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"

	"github.com/sweeney/button-monitor/internal/gpio"
	"github.com/sweeney/button-monitor/internal/logger"
	"github.com/sweeney/button-monitor/internal/monitor"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "BUTTONMON_"

// ErrButtonRequired indicates no button pin was configured.
var ErrButtonRequired = errors.New("button pin is required")

// Settings is the complete daemon configuration.
type Settings struct {
	Monitor  monitor.Config
	Chip     string
	Broker   string // empty disables MQTT
	Topic    string
	HTTPAddr string // empty disables the status server
	Log      logger.Config
}

// Defaults returns the default value for every key, as a nested map.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"button":  map[string]interface{}{"pin": -1},
		"led":     map[string]interface{}{"pin": monitor.NoLED},
		"scheme":  "logical",
		"pressed": map[string]interface{}{"edge": "rising"},
		"on":      map[string]interface{}{"level": "high"},
		"chip":    "gpiochip0",
		"broker":  "",
		"topic":   "gpio/button-monitor",
		"http":    "",
		"log": map[string]interface{}{
			"level":  "info",
			"format": "text",
			"output": "stdout",
		},
		"config": map[string]interface{}{"file": ""},
	}
}

// Load resolves Settings from the changed flags in fs, the environment, an
// optional config file and the defaults.
func Load(fs *pflag.FlagSet) (Settings, error) {
	flags := make(map[string]interface{})
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "env-file" || f.Name == "print-state" {
			return
		}
		setPath(flags, flagKey(f.Name), f.Value.String())
	})
	return load(flags)
}

func load(flags map[string]interface{}) (Settings, error) {
	cfg := config.New(
		dict.New(dict.WithMap(flags)),
		env.New(env.WithEnvPrefix(EnvPrefix)),
		config.WithDefault(dict.New(dict.WithMap(Defaults()))))

	r := reader{cfg: cfg}
	if file := r.string("config.file"); file != "" {
		if _, err := os.Stat(file); err != nil {
			return Settings{}, fmt.Errorf("config file: %w", err)
		}
		cfg.Append(blob.NewConfigFile(cfg, "config.file", file, json.NewDecoder()))
	}

	s := Settings{
		Chip:     r.string("chip"),
		Broker:   r.string("broker"),
		Topic:    r.string("topic"),
		HTTPAddr: r.string("http"),
		Log: logger.Config{
			Level:  r.string("log.level"),
			Format: r.string("log.format"),
			Output: r.string("log.output"),
		},
		Monitor: monitor.Config{
			ButtonPin: r.int("button.pin"),
			LEDPin:    r.int("led.pin"),
		},
	}
	if r.err != nil {
		return Settings{}, r.err
	}

	var err error
	if s.Monitor.Scheme, err = gpio.ParseScheme(r.string("scheme")); err != nil {
		return Settings{}, err
	}
	if s.Monitor.PressedEdge, err = gpio.ParseEdge(r.string("pressed.edge")); err != nil {
		return Settings{}, err
	}
	if s.Monitor.OnLevel, err = gpio.ParseLevel(r.string("on.level")); err != nil {
		return Settings{}, err
	}
	if r.err != nil {
		return Settings{}, r.err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the settings are usable.
func (s Settings) Validate() error {
	if s.Monitor.ButtonPin < 0 {
		return ErrButtonRequired
	}
	if s.Monitor.HasLED() && s.Monitor.LEDPin == s.Monitor.ButtonPin {
		return fmt.Errorf("led pin %d is the button pin", s.Monitor.LEDPin)
	}
	if _, err := s.Monitor.Scheme.Resolve(s.Monitor.ButtonPin); err != nil {
		return fmt.Errorf("button: %w", err)
	}
	if s.Monitor.HasLED() {
		if _, err := s.Monitor.Scheme.Resolve(s.Monitor.LEDPin); err != nil {
			return fmt.Errorf("led: %w", err)
		}
	}
	if s.Chip == "" {
		return errors.New("gpio chip is required")
	}
	return nil
}

// LoadEnvFile loads variables from a dotenv file into the environment.
// Variables already set are not overridden.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// reader collects the first lookup or conversion error so callers can
// check once.
type reader struct {
	cfg *config.Config
	err error
}

// get returns the value for key. Conversion errors raised later by the
// Value are routed back to the reader.
func (r *reader) get(key string) config.Value {
	v, err := r.cfg.Get(key, config.WithErrorHandler(func(err error) error {
		r.fail(key, err)
		return nil
	}))
	if err != nil {
		r.fail(key, err)
	}
	return v
}

func (r *reader) string(key string) string {
	return r.get(key).String()
}

func (r *reader) int(key string) int {
	return r.get(key).Int()
}

func (r *reader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("config %s: %w", key, err)
	}
}

func flagKey(name string) string {
	return strings.ReplaceAll(name, "-", ".")
}

// setPath stores v in m at the dotted key, creating nested maps as needed.
func setPath(m map[string]interface{}, key string, v interface{}) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}
