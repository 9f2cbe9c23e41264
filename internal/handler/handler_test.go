package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"objectsguesser/internal/config"
	"objectsguesser/internal/dto"
	"objectsguesser/internal/logger"
	"objectsguesser/internal/model"
	"objectsguesser/internal/repository/sqlite"
	"objectsguesser/internal/service"
	"objectsguesser/internal/service/ai"
	"objectsguesser/internal/service/proxy"
	hub "objectsguesser/internal/service/websocket"
)

// ========================================
// Test Setup Helpers
// ========================================

type stubModel struct {
	detections []model.Detection
}

func (m *stubModel) Predict(ctx context.Context, img *image.NRGBA, threshold float64) ([]model.Detection, error) {
	return m.detections, nil
}

func (m *stubModel) Labels() ai.Labels { return ai.Labels{"N/A", "cat", "dog"} }

func (m *stubModel) Close() error { return nil }

type testEnv struct {
	cfg     *config.Config
	logger  *logger.Logger
	manager *service.Manager
	hub     *hub.HubService
}

func newTestEnv(t *testing.T, m ai.Model, inferenceURL string) *testEnv {
	t.Helper()

	cfg := &config.Config{
		DefaultThreshold: 0.9,
		InferenceURL:     inferenceURL,
		ProxyTimeout:     2 * time.Second,
		MaxUploadSize:    5 << 20,
		LogDirectory:     t.TempDir(),
	}

	l, err := logger.NewLogger(cfg)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(l.Close)

	annotator, err := ai.NewAnnotator(ai.DefaultFace(), ai.DefaultBoxColor)
	if err != nil {
		t.Fatalf("Failed to create annotator: %v", err)
	}

	h := hub.NewHubService(l)
	go h.Run()
	t.Cleanup(h.Stop)

	detector := ai.NewDetectorService(m, annotator, l)
	return &testEnv{
		cfg:     cfg,
		logger:  l,
		manager: service.NewManager(detector, h, proxy.NewClient(cfg, l), l),
		hub:     h,
	}
}

func defaultModel() *stubModel {
	return &stubModel{detections: []model.Detection{
		{Label: "cat", Score: 0.97654, Box: model.Box{X1: 2.111, Y1: 3.222, X2: 20.333, Y2: 15.444}},
		{Label: "dog", Score: 0.5, Box: model.Box{X1: 1, Y1: 1, X2: 5, Y2: 5}},
	}}
}

func pngData(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{100, 150, 200, 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func multipartRequest(t *testing.T, fields map[string]string, image []byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	if image != nil {
		part, err := writer.CreateFormFile("image", "image.png")
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		part.Write(image)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/detect", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeDetectResponse(t *testing.T, w *httptest.ResponseRecorder) dto.DetectResponse {
	t.Helper()

	var resp dto.DetectResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON %q: %v", w.Body.String(), err)
	}
	return resp
}

func decodeError(t *testing.T, body []byte) string {
	t.Helper()

	var resp dto.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("Invalid error JSON %q: %v", body, err)
	}
	return resp.Error
}

// ========================================
// Health and Labels
// ========================================

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	HealthHandler(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != `{"ok":true}` {
		t.Errorf("Unexpected body %s", w.Body.String())
	}
}

func TestLabelsHandler(t *testing.T) {
	env := newTestEnv(t, defaultModel(), "")
	w := httptest.NewRecorder()
	LabelsHandler(env.manager)(w, httptest.NewRequest(http.MethodGet, "/api/labels", nil))

	var resp dto.LabelsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Available || len(resp.Labels) != 3 || resp.Labels[1] != "cat" {
		t.Errorf("Unexpected labels response %+v", resp)
	}

	env = newTestEnv(t, nil, "")
	w = httptest.NewRecorder()
	LabelsHandler(env.manager)(w, httptest.NewRequest(http.MethodGet, "/api/labels", nil))
	if strings.TrimSpace(w.Body.String()) != `{"available":false,"labels":[]}` {
		t.Errorf("Unexpected body without model: %s", w.Body.String())
	}
}

// ========================================
// Detect
// ========================================

func TestDetectHandler_NoImage(t *testing.T) {
	env := newTestEnv(t, defaultModel(), "")
	w := httptest.NewRecorder()
	DetectHandler(env.manager, env.cfg, env.logger)(w, multipartRequest(t, map[string]string{"threshold": "0.5"}, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if strings.TrimSpace(w.Body.String()) != `{"image":null,"rows":[]}` {
		t.Errorf("Unexpected body %s", w.Body.String())
	}
}

func TestDetectHandler_Upload(t *testing.T) {
	env := newTestEnv(t, defaultModel(), "")
	w := httptest.NewRecorder()
	DetectHandler(env.manager, env.cfg, env.logger)(w, multipartRequest(t, nil, pngData(t, 32, 24)))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decodeDetectResponse(t, w)
	if resp.Image == nil || !strings.HasPrefix(*resp.Image, "data:image/png;base64,") {
		t.Fatal("Expected annotated image data URL")
	}

	// Default threshold 0.9 drops the dog.
	expected := []model.Row{{Label: "cat", Score: 0.9765, X1: 2.11, Y1: 3.22, X2: 20.33, Y2: 15.44}}
	if len(resp.Rows) != 1 || resp.Rows[0] != expected[0] {
		t.Errorf("Rows = %+v, expected %+v", resp.Rows, expected)
	}
}

func TestDetectHandler_Threshold(t *testing.T) {
	env := newTestEnv(t, defaultModel(), "")

	tests := []struct {
		threshold string
		status    int
		rows      int
	}{
		{"0.5", http.StatusOK, 2},
		{"0.99", http.StatusOK, 0},
		{"-3", http.StatusOK, 2},
		{"abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		req := multipartRequest(t, map[string]string{"threshold": tt.threshold}, pngData(t, 32, 24))
		DetectHandler(env.manager, env.cfg, env.logger)(w, req)

		if w.Code != tt.status {
			t.Errorf("threshold %s: expected %d, got %d", tt.threshold, tt.status, w.Code)
			continue
		}
		if tt.status == http.StatusOK {
			if rows := decodeDetectResponse(t, w).Rows; len(rows) != tt.rows {
				t.Errorf("threshold %s: expected %d rows, got %d", tt.threshold, tt.rows, len(rows))
			}
		}
	}
}

func TestDetectHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		model  ai.Model
		image  []byte
		status int
	}{
		{"model unavailable", nil, nil, http.StatusServiceUnavailable},
		{"not an image", defaultModel(), []byte("GIF? no"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.model, "")
			img := tt.image
			if img == nil {
				img = pngData(t, 8, 8)
			}

			w := httptest.NewRecorder()
			DetectHandler(env.manager, env.cfg, env.logger)(w, multipartRequest(t, nil, img))

			if w.Code != tt.status {
				t.Errorf("Expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if decodeError(t, w.Body.Bytes()) == "" {
				t.Error("Expected error message")
			}
		})
	}
}

func TestDetectHandler_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, defaultModel(), "")
	w := httptest.NewRecorder()
	DetectHandler(env.manager, env.cfg, env.logger)(w, httptest.NewRequest(http.MethodGet, "/api/detect", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
}

func TestDetectHandler_ImageURL(t *testing.T) {
	data := pngData(t, 40, 30)
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cat.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer images.Close()

	env := newTestEnv(t, defaultModel(), "")

	tests := []struct {
		url    string
		status int
	}{
		{images.URL + "/cat.png", http.StatusOK},
		{images.URL + "/missing.png", http.StatusBadGateway},
		{"file:///etc/passwd", http.StatusBadRequest},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		req := multipartRequest(t, map[string]string{"image_url": tt.url, "threshold": "0.1"}, nil)
		DetectHandler(env.manager, env.cfg, env.logger)(w, req)

		if w.Code != tt.status {
			t.Errorf("%s: expected %d, got %d: %s", tt.url, tt.status, w.Code, w.Body.String())
		}
	}
}

func TestDetectHandler_UploadTooLarge(t *testing.T) {
	env := newTestEnv(t, defaultModel(), "")
	env.cfg.MaxUploadSize = 1024

	w := httptest.NewRecorder()
	DetectHandler(env.manager, env.cfg, env.logger)(w, multipartRequest(t, nil, make([]byte, 4096)))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", w.Code)
	}
}

// ========================================
// Predict proxy
// ========================================

func TestPredictHandler_NotConfigured(t *testing.T) {
	env := newTestEnv(t, defaultModel(), "")

	for _, body := range []string{`{"image_url":"http://x/a.jpg"}`, `not json`, ``} {
		w := httptest.NewRecorder()
		PredictHandler(env.manager, env.logger)(w, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body)))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("body %q: expected 500, got %d", body, w.Code)
		}
		if msg := decodeError(t, w.Body.Bytes()); msg != "INFERENCE_URL is not configured" {
			t.Errorf("body %q: unexpected message %q", body, msg)
		}
	}
}

func TestPredictHandler_Forwards(t *testing.T) {
	var forwarded map[string]interface{}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&forwarded)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rows": [["cat", 0.99, 1, 2, 3, 4]]}`))
	}))
	defer upstream.Close()

	env := newTestEnv(t, defaultModel(), upstream.URL)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"image_url":"http://img/cat.jpg"}`))
	PredictHandler(env.manager, env.logger)(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != `{"rows": [["cat", 0.99, 1, 2, 3, 4]]}` {
		t.Errorf("Response not verbatim: %s", w.Body.String())
	}
	if forwarded["image_url"] != "http://img/cat.jpg" || forwarded["threshold"] != 0.9 {
		t.Errorf("Unexpected forwarded body %v", forwarded)
	}
}

func TestPredictHandler_Errors(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer upstream.Close()

	env := newTestEnv(t, defaultModel(), upstream.URL)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"bad json", `{"image_url":`, http.StatusBadRequest},
		{"upstream non-2xx", `{"image_url":"http://img/a.jpg","threshold":0.3}`, http.StatusBadGateway},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		PredictHandler(env.manager, env.logger)(w, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(tt.body)))
		if w.Code != tt.status {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.status, w.Code)
		}
	}
}

// ========================================
// Request log
// ========================================

func TestRequestsHandlers_Disabled(t *testing.T) {
	env := newTestEnv(t, defaultModel(), "")

	handlers := map[string]http.HandlerFunc{
		"list":  GetRequestsHandler(nil, env.logger),
		"stats": RequestStatsHandler(nil, env.logger),
		"clear": ClearRequestsHandler(nil, env.logger),
	}
	for name, h := range handlers {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/api/requests", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", name, w.Code)
		}
	}
}

func TestRequestsHandlers(t *testing.T) {
	env := newTestEnv(t, defaultModel(), "")

	db, err := sqlite.New(filepath.Join(t.TempDir(), "requests.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	repo := sqlite.NewRequestRepository(db)
	now := time.Now()
	repo.InsertBatch([]model.RequestRecord{
		{Method: "POST", Path: "/api/detect", Status: 200, DurationMs: 10, Timestamp: now},
		{Method: "POST", Path: "/api/detect", Status: 400, DurationMs: 2, Timestamp: now},
		{Method: "GET", Path: "/api/health", Status: 200, DurationMs: 1, Timestamp: now},
	})

	w := httptest.NewRecorder()
	GetRequestsHandler(repo, env.logger)(w, httptest.NewRequest(http.MethodGet, "/api/requests?path=/api/detect&limit=1", nil))

	var data dto.RequestsData
	if err := json.Unmarshal(w.Body.Bytes(), &data); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if data.Length != 2 || data.TotalPages != 2 || len(data.Requests) != 1 {
		t.Errorf("Unexpected page %+v", data)
	}

	w = httptest.NewRecorder()
	RequestStatsHandler(repo, env.logger)(w, httptest.NewRequest(http.MethodGet, "/api/requests/stats", nil))
	var stats model.RequestStats
	json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.TotalRequests != 3 || stats.Errors != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}

	w = httptest.NewRecorder()
	ClearRequestsHandler(repo, env.logger)(w, httptest.NewRequest(http.MethodGet, "/api/requests/clear", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET clear, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	ClearRequestsHandler(repo, env.logger)(w, httptest.NewRequest(http.MethodPost, "/api/requests/clear", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", w.Code)
	}
	if count, _ := repo.GetTotalCount(nil); count != 0 {
		t.Errorf("Expected empty log, got %d", count)
	}
}

// ========================================
// Logs
// ========================================

func TestLogsHandlers(t *testing.T) {
	env := newTestEnv(t, defaultModel(), "")
	env.logger.Warning("disk almost full")

	w := httptest.NewRecorder()
	ShowLogsHandler(env.logger, logger.WarningFile)(w, httptest.NewRequest(http.MethodGet, "/logs/warning", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "disk almost full") {
		t.Errorf("Expected warning log content, got %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	ClearLogsHandler(env.logger, logger.WarningFile)(w, httptest.NewRequest(http.MethodPost, "/logs/warning/clear", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", w.Code)
	}

	info, err := os.Stat(filepath.Join(env.cfg.LogDirectory, logger.WarningFile))
	if err != nil || info.Size() != 0 {
		t.Errorf("Expected truncated warning log, got %v, %v", info, err)
	}

	w = httptest.NewRecorder()
	ShowLogsHandler(env.logger, "missing.log")(w, httptest.NewRequest(http.MethodGet, "/logs/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing log, got %d", w.Code)
	}
}

// ========================================
// WebSocket endpoints
// ========================================

func dialWS(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial %s failed: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestDetectStreamHandler(t *testing.T) {
	env := newTestEnv(t, defaultModel(), "")
	server := httptest.NewServer(DetectStreamHandler(env.manager, env.cfg, env.logger))
	defer server.Close()

	conn := dialWS(t, server, "/?threshold=0.4")
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteMessage(websocket.BinaryMessage, pngData(t, 32, 24)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	var resp dto.DetectResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if resp.Image == nil || len(resp.Rows) != 2 {
		t.Errorf("Expected image and 2 rows, got %v rows", len(resp.Rows))
	}

	conn.WriteMessage(websocket.BinaryMessage, []byte("garbage"))
	var errResp dto.ErrorResponse
	if err := conn.ReadJSON(&errResp); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if errResp.Error == "" {
		t.Error("Expected error reply for undecodable frame")
	}

	conn.WriteMessage(websocket.TextMessage, []byte("hello"))
	errResp = dto.ErrorResponse{}
	if err := conn.ReadJSON(&errResp); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !strings.Contains(errResp.Error, "binary") {
		t.Errorf("Unexpected reply to text message: %q", errResp.Error)
	}
}

func TestViewEventsHandler(t *testing.T) {
	env := newTestEnv(t, defaultModel(), "")
	server := httptest.NewServer(ViewEventsHandler(env.manager, env.logger))
	defer server.Close()

	conn := dialWS(t, server, "/")

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.GetClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if env.hub.GetClientCount() != 1 {
		t.Fatal("Viewer was not registered")
	}

	w := httptest.NewRecorder()
	DetectHandler(env.manager, env.cfg, env.logger)(w, multipartRequest(t, nil, pngData(t, 16, 16)))
	if w.Code != http.StatusOK {
		t.Fatalf("Detect failed: %d", w.Code)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	var event map[string]interface{}
	if err := json.Unmarshal(message, &event); err != nil {
		t.Fatalf("Invalid event JSON: %v", err)
	}
	if event["source"] != service.SourceUpload || event["count"] != float64(1) {
		t.Errorf("Unexpected event %s", message)
	}
}

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		wantErr  bool
	}{
		{"", 0.9, false},
		{"0.25", 0.25, false},
		{"1.5", 1.5, false},
		{"-0.1", -0.1, false},
		{"x", 0, true},
	}

	for _, tt := range tests {
		got, err := parseThreshold(tt.input, 0.9)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseThreshold(%q) error = %v", tt.input, err)
			continue
		}
		if !tt.wantErr && got != tt.expected {
			t.Errorf("parseThreshold(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"", 5, 5},
		{"abc", 10, 10},
		{"-1", 5, 5},
		{"0", 5, 5},
	}

	for _, tt := range tests {
		if got := atoiDefault(tt.input, tt.def); got != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, got, tt.expected)
		}
	}
}
