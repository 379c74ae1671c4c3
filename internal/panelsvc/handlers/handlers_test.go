package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avvvet/ict-services/internal/comm"
	"github.com/avvvet/ict-services/internal/panelsvc/models"
	"github.com/avvvet/ict-services/internal/panelsvc/service"
	"github.com/avvvet/ict-services/internal/panelsvc/ws"
	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	mu        sync.Mutex
	view      models.PanelView
	hasPanel  bool
	submitted []string
}

func (f *fakeService) Submit(identifier string) (uint64, error) {
	if len(identifier) < service.MinIdentifierLen {
		return 0, fmt.Errorf("%w: %s", service.ErrIdentifierTooShort, identifier)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, identifier)
	return uint64(len(f.submitted)), nil
}

func (f *fakeService) Panel() (models.PanelView, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view, f.hasPanel
}

func (f *fakeService) Products() []models.Product {
	return []models.Product{{Name: "Controller", ProductCode: "GHI", PanelSize: 3}}
}

type fakeViewer struct {
	requests []comm.ViewerRequest
	err      error
}

func (f *fakeViewer) RequestView(req comm.ViewerRequest) error {
	f.requests = append(f.requests, req)
	return f.err
}

func samplePanel() models.PanelView {
	return models.PanelView{
		Generation:       3,
		Identifier:       "ABCDEF0001234GHI",
		ProductName:      "Controller",
		PanelSize:        3,
		Serials:          []string{"ABCDEF0001233GHI", "ABCDEF0001234GHI", "ABCDEF0001235GHI"},
		SelectedPosition: 1,
		Attempts: []models.Attempt{{
			Time:    time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC),
			Station: "ICT-01",
			Results: []models.BoardResult{models.Unknown, models.Passed, models.Failed},
			LogRefs: []string{"", `C:\logs\2-20240102-a.log`, `C:\logs\3-20240102-b.log`},
		}},
	}
}

type testEnv struct {
	h      *Handler
	router *chi.Mux
	svc    *fakeService
	viewer *fakeViewer
	hub    *ws.Ws
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	svc := &fakeService{}
	viewer := &fakeViewer{}
	hub := ws.NewWs()

	h := NewHandler(svc, viewer, hub, "test-instance")
	h.InitAuth("secret")
	r := chi.NewRouter()
	h.SetRoutes(r)

	_, token, err := h.TokenAuth().Encode(map[string]interface{}{"service_id": "test"})
	require.NoError(t, err)

	return &testEnv{h: h, router: r, svc: svc, viewer: viewer, hub: hub, token: token}
}

func (e *testEnv) do(method, path, body string, auth bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	var rsp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rsp))
	return rsp
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/v1/health", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["message"], "test-instance")
}

func TestSecureRoutesNeedToken(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/v1/panel", "/v1/products"} {
		rec := env.do(http.MethodGet, path, "", false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := env.do(http.MethodPost, "/v1/scans", `{"dmc":"ABCDEF0001234GHI"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, env.svc.submitted)
}

func TestScanHandler(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/scans", `{"dmc":"ABCDEF0001234GHI"}`, true)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"ABCDEF0001234GHI"}, env.svc.submitted)

	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(1), data["generation"])
}

func TestScanHandlerRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/scans", `{"dmc":"SHORT"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/v1/scans", `not json`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, env.svc.submitted)
}

func TestPanelHandler(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/panel", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.svc.view, env.svc.hasPanel = samplePanel(), true
	rec = env.do(http.MethodGet, "/v1/panel", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var rsp struct {
		Data models.PanelView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rsp))
	assert.Equal(t, samplePanel(), rsp.Data)
}

func TestProductsHandler(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/v1/products", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"product_code":"GHI"`)
}

func TestViewLogHandler(t *testing.T) {
	env := newTestEnv(t)
	env.svc.view, env.svc.hasPanel = samplePanel(), true

	rec := env.do(http.MethodPost, "/v1/panel/attempts/0/boards/2/view", "", true)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, env.viewer.requests, 1)
	assert.Equal(t, `C:\logs\3-20240102-b.log`, env.viewer.requests[0].LogRef)
	assert.Equal(t, "ABCDEF0001235GHI", env.viewer.requests[0].Serial)
	assert.Equal(t, "ICT-01", env.viewer.requests[0].Station)

	rec = env.do(http.MethodPost, "/v1/panel/attempts/0/boards/0/view", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPost, "/v1/panel/attempts/x/boards/0/view", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.viewer.err = errors.New("nats down")
	rec = env.do(http.MethodPost, "/v1/panel/attempts/0/boards/1/view", "", true)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestWebSocketReceivesPanel(t *testing.T) {
	env := newTestEnv(t)
	env.svc.view, env.svc.hasPanel = samplePanel(), true

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg comm.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "panel", msg.Type)

	require.Eventually(t, func() bool { return env.hub.Count() == 1 }, 5*time.Second, 10*time.Millisecond)

	env.hub.ScanFailed(4, "ABCDEF0009999GHI", service.ErrNoHistory)
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "scan-failed", msg.Type)

	var failure comm.ScanFailure
	require.NoError(t, json.Unmarshal(msg.Data, &failure))
	assert.Equal(t, uint64(4), failure.Generation)
	assert.Equal(t, "ABCDEF0009999GHI", failure.Identifier)
}
