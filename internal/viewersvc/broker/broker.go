package broker

import (
	"encoding/json"

	"github.com/avvvet/ict-services/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

type Opener interface {
	Open(logRef string) (string, error)
}

type Broker struct {
	Conn            *nats.Conn
	opener          Opener
	panelInstanceId string
}

func NewBroker(nc *nats.Conn, opener Opener, panelInstanceId string) *Broker {
	return &Broker{Conn: nc, opener: opener, panelInstanceId: panelInstanceId}
}

func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	return b.Conn.Subscribe(topic, func(msg *nats.Msg) {
		b.handleMessage(msg.Data)
	})
}

func (b *Broker) handleMessage(data []byte) {
	var req comm.ViewerRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Errorf("Error invalid viewer request %s", err)
		return
	}

	if b.panelInstanceId != "" && req.InstanceId != b.panelInstanceId {
		log.Debugf("ignoring viewer request from panel instance %s", req.InstanceId)
		return
	}

	path, err := b.opener.Open(req.LogRef)
	if err != nil {
		log.Errorf("Error opening log of %s from station %s: %s", req.Serial, req.Station, err)
		return
	}

	log.Infof("log of %s opened from %s", req.Serial, path)
}
