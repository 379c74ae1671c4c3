package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/avvvet/ict-services/internal/comm"
	"github.com/avvvet/ict-services/internal/panelsvc/models"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

// client serializes writes, gorilla connections allow one writer at a time.
type client struct {
	mu         sync.Mutex
	conn       *websocket.Conn
	generation uint64 // of the last panel written
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.writeLocked(payload)
}

// writePanel never lets a display go back to an older scan's panel.
func (c *client) writePanel(gen uint64, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen < c.generation {
		return nil
	}
	c.generation = gen
	return c.writeLocked(payload)
}

func (c *client) writeLocked(payload []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Ws pushes panel updates to every connected station display.
type Ws struct {
	connMap sync.Map // socketId -> *client
}

func NewWs() *Ws {
	return &Ws{}
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, &client{conn: conn})
}

func (s *Ws) RemoveConnection(socketId string) {
	s.connMap.Delete(socketId)
}

func (s *Ws) Count() int {
	count := 0
	s.connMap.Range(func(key, value any) bool {
		count++
		return true
	})
	return count
}

func (s *Ws) PanelUpdated(view models.PanelView) {
	payload, err := encode("panel", "", view)
	if err != nil {
		log.Errorf("Error encoding panel message: %v", err)
		return
	}

	s.connMap.Range(func(key, value any) bool {
		s.send(key.(string), func(c *client) error {
			return c.writePanel(view.Generation, payload)
		})
		return true
	})
}

func (s *Ws) ScanFailed(generation uint64, identifier string, err error) {
	s.broadcast("scan-failed", comm.ScanFailure{
		Generation: generation,
		Identifier: identifier,
		Error:      err.Error(),
	})
}

// SendPanel sends view to a single socket, used right after it connects.
func (s *Ws) SendPanel(socketId string, view models.PanelView) {
	payload, err := encode("panel", socketId, view)
	if err != nil {
		log.Errorf("Error encoding panel for socket %s: %v", socketId, err)
		return
	}
	s.send(socketId, func(c *client) error {
		return c.writePanel(view.Generation, payload)
	})
}

func (s *Ws) broadcast(msgType string, v any) {
	payload, err := encode(msgType, "", v)
	if err != nil {
		log.Errorf("Error encoding %s message: %v", msgType, err)
		return
	}

	s.connMap.Range(func(key, value any) bool {
		s.send(key.(string), func(c *client) error {
			return c.write(payload)
		})
		return true
	})
}

func (s *Ws) send(socketId string, write func(c *client) error) {
	c, ok := s.connMap.Load(socketId)
	if !ok {
		return
	}
	if err := write(c.(*client)); err != nil {
		log.Warnf("dropping socket %s after write error: %v", socketId, err)
		s.connMap.Delete(socketId)
		c.(*client).conn.Close()
	}
}

func encode(msgType, socketId string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&comm.WSMessage{
		Type:     msgType,
		Data:     data,
		SocketId: socketId,
	})
}
