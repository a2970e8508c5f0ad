package main

import (
	"flag"
	"os"

	"github.com/sipwatch/sipwatch/publisher"
)

type config struct {
	LogLevel    string
	Listen      string
	Limit       uint
	Rotate      bool
	Invite      bool
	Complete    bool
	SIPFilter   string
	FilterField string
	MetricsAddr string
	MQTT        publisher.MQTTOptions
	MQTTEnabled bool
}

func defEnvStr(k, dval string) string {
	if v, ok := os.LookupEnv(k); ok {
		return v
	}
	return dval
}

func (c *config) Load(args []string) error {
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.StringVar(&c.LogLevel, "log-level", defEnvStr("LOG_LEVEL", "info"), "logging level (debug, info, error)")
	fs.StringVar(&c.Listen, "listen", defEnvStr("LISTEN", ":5060"), "address to accept SIP traffic over UDP and TCP")
	fs.UintVar(&c.Limit, "limit", 10000, "maximum number of calls held in the registry at once")
	fs.BoolVar(&c.Rotate, "rotate", true, "evict the oldest unlocked call instead of dropping new ones at capacity")
	fs.BoolVar(&c.Invite, "invite-only", false, "only admit dialogs that begin with INVITE")
	fs.BoolVar(&c.Complete, "complete-only", false, "only admit dialogs not already in progress when capture started")
	fs.StringVar(&c.SIPFilter, "sip-filter", defEnvStr("SIP_FILTER", ""), "admission match expression")
	fs.StringVar(&c.FilterField, "display-filter", defEnvStr("DISPLAY_FILTER", ""), "FROM-field display filter expression")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", defEnvStr("METRICS_ADDR", ""), "IP:Port to bind for /metrics endpoint")

	fs.BoolVar(&c.MQTTEnabled, "mqtt", false, "publish call lifecycle events to an MQTT broker")
	fs.StringVar(&c.MQTT.Broker, "broker", defEnvStr("BROKER", "tcp://localhost:1883"), "MQTT broker")
	fs.StringVar(&c.MQTT.ClientID, "client-id", defEnvStr("CLIENT_ID", ""), "MQTT Client ID")
	fs.StringVar(&c.MQTT.Topic, "topic", defEnvStr("TOPIC", ""), "MQTT publishing topic for call events")
	fs.StringVar(&c.MQTT.Telemetry, "telemetry-topic", defEnvStr("TELEMETRY_TOPIC", ""), "MQTT publishing topic for telemetry")
	fs.StringVar(&c.MQTT.TLSKeyFile, "key-file", defEnvStr("KEY_FILE", ""), "MQTT TLS key file (pem)")
	fs.StringVar(&c.MQTT.TLSCertFile, "cert-file", defEnvStr("CERT_FILE", ""), "MQTT TLS cert file (pem)")

	return fs.Parse(args[1:])
}
