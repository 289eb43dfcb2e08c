package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchboard/internal/driver"
	"github.com/zulandar/switchboard/internal/ledger"
	"github.com/zulandar/switchboard/internal/mailbox"
	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/registry"
	"github.com/zulandar/switchboard/internal/router"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testCoordsJSON = `{
	"Agent-1": {"chat_input": [100, 200], "onboarding": [100, 300]},
	"Agent-2": {"chat_input": [500, 200], "onboarding": [500, 300]}
}`

func newTestEngine(t *testing.T) (*gin.Engine, *driver.Mock) {
	t.Helper()

	reg, err := registry.Parse("test", []byte(testCoordsJSON))
	if err != nil {
		t.Fatalf("parse registry: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Agent{}, &models.LedgerEntry{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	for _, id := range reg.AgentIDs() {
		db.Create(&models.Agent{ID: id, Status: models.AgentUnknown, RegisteredAt: time.Now().UTC()})
	}

	led := ledger.New(db)
	mock := driver.NewMock()
	store := mailbox.NewStore(t.TempDir())
	rtr := router.New(reg, store, mock, led, router.Options{})
	t.Cleanup(rtr.Close)

	engine, err := buildEngine(StartOpts{Registry: reg, Router: rtr, Ledger: led})
	if err != nil {
		t.Fatalf("buildEngine: %v", err)
	}
	return engine, mock
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestBuildEngine_RequiresDeps(t *testing.T) {
	if _, err := buildEngine(StartOpts{}); err == nil {
		t.Error("expected error for empty opts")
	}
}

func TestHealthz(t *testing.T) {
	engine, _ := newTestEngine(t)
	w := doJSON(t, engine, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSend_Delivered(t *testing.T) {
	engine, mock := newTestEngine(t)

	w := doJSON(t, engine, http.MethodPost, "/api/send", map[string]interface{}{
		"sender":    "Agent-1",
		"recipient": "Agent-2",
		"body":      "run the tests",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var result router.SendResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Status != models.StateDelivered {
		t.Errorf("status = %s, want delivered", result.Status)
	}
	if mock.CallCount() != 1 {
		t.Errorf("driver calls = %d", mock.CallCount())
	}
}

func TestSend_UnknownRecipient(t *testing.T) {
	engine, _ := newTestEngine(t)

	w := doJSON(t, engine, http.MethodPost, "/api/send", map[string]interface{}{
		"sender":    "Agent-1",
		"recipient": "Agent-99",
		"body":      "hello",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestSend_MissingFields(t *testing.T) {
	engine, _ := newTestEngine(t)

	w := doJSON(t, engine, http.MethodPost, "/api/send", map[string]interface{}{
		"sender": "Agent-1",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAgents_ListsAll(t *testing.T) {
	engine, _ := newTestEngine(t)

	w := doJSON(t, engine, http.MethodGet, "/api/agents", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Agents []models.Agent `json:"agents"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Agents) != 2 {
		t.Errorf("agents = %d, want 2", len(resp.Agents))
	}
}

func TestAgentHealth_AfterDelivery(t *testing.T) {
	engine, _ := newTestEngine(t)

	w := doJSON(t, engine, http.MethodPost, "/api/send", map[string]interface{}{
		"sender":    "Agent-1",
		"recipient": "Agent-2",
		"body":      "ping",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("send status = %d", w.Code)
	}

	w = doJSON(t, engine, http.MethodGet, "/api/health/Agent-2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}

	var summary ledger.HealthSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.DeliveredCount != 1 {
		t.Errorf("delivered = %d, want 1", summary.DeliveredCount)
	}
	if summary.Status != models.AgentActive {
		t.Errorf("status = %s, want active", summary.Status)
	}
}

func TestAgentHealth_UnknownAgent(t *testing.T) {
	engine, _ := newTestEngine(t)

	w := doJSON(t, engine, http.MethodGet, "/api/health/Agent-99", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestEnvelopeHistory_TracksStates(t *testing.T) {
	engine, _ := newTestEngine(t)

	w := doJSON(t, engine, http.MethodPost, "/api/send", map[string]interface{}{
		"sender":    "Agent-1",
		"recipient": "Agent-2",
		"body":      "status report",
	})
	var result router.SendResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode send: %v", err)
	}

	w = doJSON(t, engine, http.MethodGet, "/api/envelopes/"+result.EnvelopeID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d", w.Code)
	}

	var resp struct {
		History []models.LedgerEntry `json:"history"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	// pending, in_flight, delivered
	if len(resp.History) != 3 {
		t.Errorf("history entries = %d, want 3", len(resp.History))
	}
	last := resp.History[len(resp.History)-1]
	if last.State != models.StateDelivered {
		t.Errorf("final state = %s", last.State)
	}
}

func TestEnvelopeHistory_Unknown(t *testing.T) {
	engine, _ := newTestEngine(t)

	w := doJSON(t, engine, http.MethodGet, "/api/envelopes/no-such-id", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestCancel_UnknownEnvelope(t *testing.T) {
	engine, _ := newTestEngine(t)

	w := doJSON(t, engine, http.MethodPost, "/api/envelopes/no-such-id/cancel", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	reg, err := registry.Parse("test", []byte(testCoordsJSON))
	if err != nil {
		t.Fatalf("parse registry: %v", err)
	}
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Agent{}, &models.LedgerEntry{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	led := ledger.New(db)
	store := mailbox.NewStore(t.TempDir())
	rtr := router.New(reg, store, driver.NewMock(), led, router.Options{})
	t.Cleanup(rtr.Close)

	port := 18080 + int(time.Now().UnixNano()%1000)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Start(ctx, StartOpts{
			Registry: reg,
			Router:   rtr,
			Ledger:   led,
			Port:     port,
			Out:      &bytes.Buffer{},
		})
	}()

	// Wait for the server to come up, then shut it down.
	up := false
	for i := 0; i < 50; i++ {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz", port))
		if err == nil {
			resp.Body.Close()
			up = true
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !up {
		t.Fatal("server never became reachable")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after cancel")
	}
}
