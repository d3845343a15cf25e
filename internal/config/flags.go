package config

import (
	"github.com/spf13/pflag"
)

// RegisterFlags defines the settings flags on fs. Defaults shown in help
// match Defaults; only flags set on the command line override other layers.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.IntP("button-pin", "b", -1, "button pin identifier (required)")
	fs.IntP("led-pin", "l", -1, "LED pin identifier (-1 for no LED)")
	fs.StringP("scheme", "s", "logical", "pin numbering scheme: logical (BCM line offset) or physical (J8 header pin)")
	fs.StringP("pressed-edge", "e", "rising", "edge that signals a press: rising or falling")
	fs.StringP("on-level", "o", "high", "LED level while pressed: high or low")
	fs.String("chip", "gpiochip0", "GPIO character device")
	fs.String("broker", "", "MQTT broker address, e.g. tcp://localhost:1883 (empty to disable)")
	fs.String("topic", "gpio/button-monitor", "MQTT topic prefix")
	fs.String("http", "", "HTTP status address, e.g. :8080 (empty to disable)")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.String("log-format", "text", "log format: text or json")
	fs.String("log-output", "stdout", "log destination: stdout, stderr or a file path")
	fs.StringP("config-file", "c", "", "JSON settings file")
	fs.String("env-file", "", "dotenv file loaded into the environment before settings are read")
	fs.Bool("print-state", false, "print the button level and exit")
}
