package broker

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/avvvet/ict-services/internal/comm"
	"github.com/avvvet/ict-services/internal/panelsvc/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(subj string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{topic: subj, payload: data})
	return nil
}

func decodeMessage(t *testing.T, payload []byte) comm.WSMessage {
	var msg comm.WSMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg
}

func TestPanelUpdatedPublishesEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	b := NewBroker(pub)

	b.PanelUpdated(models.PanelView{Generation: 2, Identifier: "ABCDEF0001234GHI", PanelSize: 3})

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, comm.TopicPanelUpdated, pub.msgs[0].topic)

	msg := decodeMessage(t, pub.msgs[0].payload)
	assert.Equal(t, "panel", msg.Type)

	var view models.PanelView
	require.NoError(t, json.Unmarshal(msg.Data, &view))
	assert.Equal(t, uint64(2), view.Generation)
	assert.Equal(t, "ABCDEF0001234GHI", view.Identifier)
}

func TestPanelUpdatedDropsOlderGeneration(t *testing.T) {
	pub := &fakePublisher{}
	b := NewBroker(pub)

	b.PanelUpdated(models.PanelView{Generation: 5, Identifier: "ABCDEF0000099ONE"})
	b.PanelUpdated(models.PanelView{Generation: 4, Identifier: "ABCDEF0000007ONE"})
	b.PanelUpdated(models.PanelView{Generation: 5, Identifier: "ABCDEF0000099ONE"})

	require.Len(t, pub.msgs, 2)
	for _, m := range pub.msgs {
		var view models.PanelView
		require.NoError(t, json.Unmarshal(decodeMessage(t, m.payload).Data, &view))
		assert.Equal(t, uint64(5), view.Generation)
	}
}

func TestScanFailedPublishesEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	b := NewBroker(pub)

	b.ScanFailed(7, "ABCDEF0009999GHI", errors.New("no history"))

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, comm.TopicScanFailed, pub.msgs[0].topic)

	msg := decodeMessage(t, pub.msgs[0].payload)
	assert.Equal(t, "scan-failed", msg.Type)

	var failure comm.ScanFailure
	require.NoError(t, json.Unmarshal(msg.Data, &failure))
	assert.Equal(t, comm.ScanFailure{Generation: 7, Identifier: "ABCDEF0009999GHI", Error: "no history"}, failure)
}

func TestRequestView(t *testing.T) {
	pub := &fakePublisher{}
	b := NewBroker(pub)

	req := comm.ViewerRequest{
		LogRef:     `C:\logs\2-20240102-a.log`,
		Serial:     "ABCDEF0001234GHI",
		Station:    "ICT-01",
		InstanceId: "instance-1",
		Timestamp:  time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, b.RequestView(req))

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, comm.TopicViewerOpen, pub.msgs[0].topic)

	var got comm.ViewerRequest
	require.NoError(t, json.Unmarshal(pub.msgs[0].payload, &got))
	assert.Equal(t, req, got)
}

func TestRequestViewReportsPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	b := NewBroker(pub)

	err := b.RequestView(comm.ViewerRequest{LogRef: "1-x.log"})
	assert.EqualError(t, err, "nats: connection closed")
}
