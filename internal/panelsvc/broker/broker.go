package broker

import (
	"encoding/json"
	"sync"

	"github.com/avvvet/ict-services/internal/comm"
	"github.com/avvvet/ict-services/internal/panelsvc/models"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subj string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

type Broker struct {
	Conn Publisher

	mu         sync.Mutex
	generation uint64 // of the last panel published
}

func NewBroker(nc Publisher) *Broker {
	return &Broker{Conn: nc}
}

// PanelUpdated drops panels older than the last one published so that
// subscribers always end on the newest scan.
func (b *Broker) PanelUpdated(view models.PanelView) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if view.Generation < b.generation {
		log.Debugf("not publishing panel of superseded scan %d", view.Generation)
		return
	}
	b.generation = view.Generation
	b.publishMessage(comm.TopicPanelUpdated, "panel", view)
}

func (b *Broker) ScanFailed(generation uint64, identifier string, err error) {
	b.publishMessage(comm.TopicScanFailed, "scan-failed", comm.ScanFailure{
		Generation: generation,
		Identifier: identifier,
		Error:      err.Error(),
	})
}

// RequestView hands a log reference to whichever viewer service listens.
func (b *Broker) RequestView(req comm.ViewerRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return b.Publish(comm.TopicViewerOpen, payload)
}

func (b *Broker) publishMessage(topic, msgType string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Errorf("[%s] unable to marshal payload: %s", msgType, err)
		return
	}

	msg := &comm.WSMessage{
		Type: msgType,
		Data: data,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	b.Publish(topic, payload)
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
