package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/avvvet/ict-services/internal/comm"
	"github.com/avvvet/ict-services/internal/panelsvc/models"
	"github.com/avvvet/ict-services/internal/panelsvc/service"
	"github.com/avvvet/ict-services/internal/panelsvc/ws"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type PanelService interface {
	Submit(identifier string) (uint64, error)
	Panel() (models.PanelView, bool)
	Products() []models.Product
}

type ViewerPublisher interface {
	RequestView(req comm.ViewerRequest) error
}

type Handler struct {
	tokenAuth  *jwtauth.JWTAuth
	upgrader   websocket.Upgrader
	svc        PanelService
	viewer     ViewerPublisher
	ws         *ws.Ws
	instanceId string
}

func NewHandler(svc PanelService, viewer ViewerPublisher, s *ws.Ws, instanceId string) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		svc:        svc,
		viewer:     viewer,
		ws:         s,
		instanceId: instanceId,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

type ScanRequest struct {
	DMC string `json:"dmc"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Message: "panel service is running, instance " + h.instanceId,
		Code:    http.StatusOK,
	})
}

// ScanHandler starts a lookup for a scanned DMC. The result is pushed over
// the websocket and can be polled from PanelHandler.
func (h *Handler) ScanHandler(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Message: "invalid request body", Code: http.StatusBadRequest, Error: err.Error()})
		return
	}

	gen, err := h.svc.Submit(req.DMC)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, service.ErrIdentifierTooShort) {
			code = http.StatusBadRequest
		}
		h.CreateResponse(w, Response{Message: "scan rejected", Code: code, Error: err.Error()})
		return
	}

	log.Infof("scan %d submitted for %s from %s", gen, req.DMC, r.RemoteAddr)
	h.CreateResponse(w, Response{
		Message: "scan started",
		Code:    http.StatusAccepted,
		Data:    map[string]uint64{"generation": gen},
	})
}

func (h *Handler) PanelHandler(w http.ResponseWriter, r *http.Request) {
	view, ok := h.svc.Panel()
	if !ok {
		h.CreateResponse(w, Response{Message: "no panel", Code: http.StatusNotFound, Error: "no panel has been reconciled yet"})
		return
	}
	h.CreateResponse(w, Response{Message: "panel", Code: http.StatusOK, Data: view})
}

func (h *Handler) ProductsHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{Message: "products", Code: http.StatusOK, Data: h.svc.Products()})
}

// ViewLogHandler asks a viewer service to open the log of one board cell.
func (h *Handler) ViewLogHandler(w http.ResponseWriter, r *http.Request) {
	attempt, err := strconv.Atoi(chi.URLParam(r, "attempt"))
	if err != nil {
		h.CreateResponse(w, Response{Message: "invalid attempt", Code: http.StatusBadRequest, Error: err.Error()})
		return
	}
	position, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil {
		h.CreateResponse(w, Response{Message: "invalid position", Code: http.StatusBadRequest, Error: err.Error()})
		return
	}

	view, ok := h.svc.Panel()
	if !ok {
		h.CreateResponse(w, Response{Message: "no panel", Code: http.StatusNotFound, Error: "no panel has been reconciled yet"})
		return
	}
	logRef, ok := view.LogRef(attempt, position)
	if !ok {
		h.CreateResponse(w, Response{Message: "no log", Code: http.StatusNotFound, Error: "no log recorded for this board"})
		return
	}

	if h.viewer == nil {
		h.CreateResponse(w, Response{Message: "viewer unavailable", Code: http.StatusServiceUnavailable, Error: "no viewer broker configured"})
		return
	}

	req := comm.ViewerRequest{
		LogRef:     logRef,
		Serial:     view.Serials[position],
		Station:    view.Attempts[attempt].Station,
		InstanceId: h.instanceId,
		Timestamp:  time.Now(),
	}
	if err := h.viewer.RequestView(req); err != nil {
		h.CreateResponse(w, Response{Message: "viewer request failed", Code: http.StatusBadGateway, Error: err.Error()})
		return
	}

	h.CreateResponse(w, Response{Message: "viewer requested", Code: http.StatusAccepted, Data: req})
}

// HandleWebSocket registers a display and sends it the current panel.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	socketId := uuid.New().String()
	h.ws.StoreConnection(socketId, conn)
	log.Infof("New WebSocket connection established: %s", socketId)

	if view, ok := h.svc.Panel(); ok {
		h.ws.SendPanel(socketId, view)
	}

	go h.handleConnection(conn, socketId)
}

// handleConnection only drains reads so close frames are processed.
func (h *Handler) handleConnection(conn *websocket.Conn, socketId string) {
	defer func() {
		log.Infof("Closing WebSocket connection: %s", socketId)
		h.ws.RemoveConnection(socketId)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("WebSocket unexpected close error for socket %s: %v", socketId, err)
			}
			return
		}
	}
}
