package main

import (
	"os"
	"os/signal"

	config "github.com/avvvet/ict-services/configs"
	"github.com/avvvet/ict-services/internal/comm"
	nats "github.com/avvvet/ict-services/internal/nats"
	"github.com/avvvet/ict-services/internal/viewersvc/broker"
	viewerconfig "github.com/avvvet/ict-services/internal/viewersvc/config"
	"github.com/avvvet/ict-services/internal/viewersvc/launcher"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "viewer"

func init() {
	config.Logging(SERVICE_NAME + "_service")
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg := viewerconfig.Load()
	log.Infof("using viewer %s", cfg.Viewer)

	// Connect to NATS
	n, err := nats.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+" service")
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(0)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	b := broker.NewBroker(n.Conn, launcher.New(cfg.Viewer, cfg.LogRoot), cfg.PanelInstanceId)
	sub, err := b.Subscribe(comm.TopicViewerOpen)
	if err != nil {
		log.Errorf("Error: unable to subscribe to %s %v", comm.TopicViewerOpen, err)
		os.Exit(0)
	}
	log.Infof("%s service waiting for requests on %s", SERVICE_NAME, comm.TopicViewerOpen)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	sub.Unsubscribe()
	log.Infof("%s service stopped", SERVICE_NAME)
}
