package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/button-monitor/internal/status"
)

var indexFuncs = template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateClass": func(s string) string {
		switch s {
		case "PRESSED", "HIGH":
			return "on"
		case "RELEASED", "LOW":
			return "off"
		}
		return "unknown"
	},
}

var indexTmpl = template.Must(template.New("index").Funcs(indexFuncs).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Button Monitor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Button Monitor</h1>

<h2>State</h2>
<table>
<tr><th>Button (pin {{.Config.Monitor.ButtonPin}})</th><td id="button-state" class="{{stateClass .Button}}">{{.Button}}</td></tr>
{{if .Config.Monitor.HasLED}}<tr><th>LED (pin {{.Config.Monitor.LEDPin}})</th><td id="led-state" class="{{stateClass .LEDState}}">{{.LEDState}}</td></tr>{{end}}
<tr><th>Last event</th><td>{{if .Known}}{{.LastEvent}} at {{.LastEventTime.UTC.Format "2006-01-02T15:04:05Z"}}{{else}}none{{end}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Presses</th><td id="presses">{{.Presses}}</td></tr>
<tr><th>Releases</th><td id="releases">{{.Releases}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
{{if .Config.Broker}}<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic</th><td>{{.Config.Topic}}</td></tr>{{else}}<tr><th>MQTT</th><td>disabled</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Chip</th><td>{{.Config.Chip}}</td></tr>
<tr><th>Numbering</th><td>{{.Config.Monitor.Scheme}}</td></tr>
<tr><th>Pressed edge</th><td>{{.Config.Monitor.PressedEdge}}</td></tr>
<tr><th>On level</th><td>{{.Config.Monitor.OnLevel}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// The template needs plain fields for values exposed as methods.
	data := struct {
		status.Snapshot
		Button   string
		LEDState string
		Uptime   time.Duration
	}{
		Snapshot: snap,
		Button:   snap.ButtonState(),
		LEDState: snap.LED.String(),
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
