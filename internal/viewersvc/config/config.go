package config

import (
	"os"
)

type Config struct {
	Viewer          string // executable started with the log path as its only argument
	LogRoot         string
	PanelInstanceId string // only serve requests from this panel service when set
	NatsURL         string
	NatsToken       string
}

func Load() Config {
	c := Config{
		Viewer:          os.Getenv("LOG_VIEWER"),
		LogRoot:         os.Getenv("LOG_ROOT"),
		PanelInstanceId: os.Getenv("PANEL_INSTANCE_ID"),
		NatsURL:         os.Getenv("NATS_URL"),
		NatsToken:       os.Getenv("NATS_TOKEN"),
	}
	if c.Viewer == "" {
		c.Viewer = "./ict_lr"
	}
	return c
}
