package comm

import (
	"encoding/json"
	"time"
)

const (
	TopicPanelUpdated = "panel.updated"
	TopicScanFailed   = "panel.scan-failed"
	TopicViewerOpen   = "viewer.open"
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "panel", "scan-failed"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid,omitempty"`
}

type ScanFailure struct {
	Generation uint64 `json:"generation"`
	Identifier string `json:"identifier"`
	Error      string `json:"error"`
}

// ViewerRequest asks a viewer service to open one board's test log.
type ViewerRequest struct {
	LogRef     string    `json:"log_ref"`
	Serial     string    `json:"serial"`
	Station    string    `json:"station"`
	InstanceId string    `json:"instance_id"`
	Timestamp  time.Time `json:"timestamp"`
}
