package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/arming-panel/internal/panel"
	"github.com/sweeney/arming-panel/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
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
	"modeClass": func(mode string) string {
		switch mode {
		case string(panel.ModeRinging):
			return "ringing"
		case string(panel.ModeConfig):
			return "config"
		case string(panel.ModeClock):
			return "clock"
		}
		return "unknown"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Arming Panel</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.display { font-size: 2em; }
.ringing { color: red; font-weight: bold; }
.config { color: #06c; }
.clock { color: green; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.error { color: red; }
</style>
</head>
<body>
<h1>Arming Panel</h1>

<h2>Panel</h2>
<table>
<tr><th>Mode</th><td class="{{modeClass .Mode}}">{{.Mode}}</td></tr>
<tr><th>Display</th><td class="display">{{.Panel.Display}}</td></tr>
<tr><th>Alarm</th><td>{{.Panel.Alarm.Clock24}} ({{if .Panel.AlarmEnabled}}enabled{{else}}disabled{{end}})</td></tr>
<tr><th>Hour format</th><td>{{.HourFormat}}</td></tr>
<tr><th>Clock</th><td class="{{if .Panel.ClockError}}error{{end}}">{{if .Panel.ClockError}}not responding{{else}}ok{{end}}</td></tr>
{{if .Editing}}<tr><th>Editing</th><td>{{.Panel.Target}} {{.Panel.Draft.Clock24}}</td></tr>{{end}}
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Disarm</h2>
<table>
<tr><th>Keypad</th><td>{{.Panel.KeypadMode}} ({{.Panel.Digits}} digits)</td></tr>
<tr><th>Keys</th><td>{{.Panel.ArmingMode}}</td></tr>
<tr><th>Progress</th><td>{{.Panel.Progress}}/{{.Stages}}</td></tr>
<tr><th>Buzzer</th><td>{{if .Panel.Buzzer}}on{{else}}off{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
{{range $event, $n := .Counts}}<tr><th>{{$event}}</th><td>{{$n}}</td></tr>
{{else}}<tr><td>none</td></tr>
{{end}}</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Long press</th><td>{{.Config.LongPressMs}}ms</td></tr>
<tr><th>Two-key window</th><td>{{.Config.WindowMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	data := struct {
		status.Snapshot
		Mode       string
		HourFormat string
		Editing    bool
		Stages     int
		Uptime     time.Duration
	}{
		Snapshot:   snap,
		Mode:       snap.ModeOrUnknown(),
		HourFormat: status.HourFormat(snap.Panel),
		Editing:    snap.Ready && snap.Panel.Mode == panel.ModeConfig,
		Stages:     panel.DisarmStages,
		Uptime:     snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
