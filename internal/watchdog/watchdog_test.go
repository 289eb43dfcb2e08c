package watchdog

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/zulandar/switchboard/internal/driver"
	"github.com/zulandar/switchboard/internal/ledger"
	"github.com/zulandar/switchboard/internal/mailbox"
	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/registry"
	"github.com/zulandar/switchboard/internal/relay"
	"github.com/zulandar/switchboard/internal/router"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testCoordsJSON = `{
	"Agent-1": {"chat_input": [100, 200], "onboarding": [100, 300]},
	"Agent-2": {"chat_input": [500, 200], "onboarding": [500, 300]}
}`

type fixture struct {
	reg   *registry.Registry
	led   *ledger.Ledger
	rtr   *router.Router
	mock  *driver.Mock
	store *mailbox.Store
	db    *gorm.DB
}

func newFixture(t *testing.T) *fixture {
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

	led := ledger.New(db)
	mock := driver.NewMock()
	store := mailbox.NewStore(t.TempDir())
	rtr := router.New(reg, store, mock, led, router.Options{})
	t.Cleanup(rtr.Close)

	return &fixture{reg: reg, led: led, rtr: rtr, mock: mock, store: store, db: db}
}

func seedAgent(t *testing.T, db *gorm.DB, id string, status models.AgentStatus, lastActivity time.Time) {
	t.Helper()
	if err := db.Create(&models.Agent{
		ID:           id,
		Status:       status,
		LastActivity: lastActivity,
		RegisteredAt: time.Now().UTC(),
	}).Error; err != nil {
		t.Fatalf("seed agent %s: %v", id, err)
	}
}

func connectedMock(t *testing.T) *relay.MockAdapter {
	t.Helper()
	adapter := relay.NewMockAdapter()
	if err := adapter.Connect(context.Background()); err != nil {
		t.Fatalf("connect mock adapter: %v", err)
	}
	return adapter
}

func TestSweepStaleAgents_MarksAndAlerts(t *testing.T) {
	f := newFixture(t)
	seedAgent(t, f.db, "Agent-1", models.AgentActive, time.Now().UTC().Add(-time.Hour))
	seedAgent(t, f.db, "Agent-2", models.AgentActive, time.Now().UTC())
	adapter := connectedMock(t)

	opts := Opts{
		Registry:       f.reg,
		Router:         f.rtr,
		Ledger:         f.led,
		Relay:          adapter,
		StaleThreshold: 5 * time.Minute,
		Out:            &bytes.Buffer{},
	}
	if err := sweepStaleAgents(context.Background(), opts); err != nil {
		t.Fatalf("sweepStaleAgents: %v", err)
	}

	agents, err := f.led.Agents()
	if err != nil {
		t.Fatalf("Agents: %v", err)
	}
	byID := map[string]models.AgentStatus{}
	for _, a := range agents {
		byID[a.ID] = a.Status
	}
	if byID["Agent-1"] != models.AgentStalled {
		t.Errorf("Agent-1 status = %s, want stalled", byID["Agent-1"])
	}
	if byID["Agent-2"] != models.AgentActive {
		t.Errorf("Agent-2 status = %s, want active", byID["Agent-2"])
	}

	posted := adapter.Posted()
	if len(posted) != 1 {
		t.Fatalf("posted = %d events, want 1", len(posted))
	}
	if posted[0].Severity != relay.SeverityWarning {
		t.Errorf("severity = %s", posted[0].Severity)
	}
}

func TestSweepStaleAgents_AlertsOnce(t *testing.T) {
	f := newFixture(t)
	seedAgent(t, f.db, "Agent-1", models.AgentActive, time.Now().UTC().Add(-time.Hour))
	adapter := connectedMock(t)

	opts := Opts{
		Registry:       f.reg,
		Router:         f.rtr,
		Ledger:         f.led,
		Relay:          adapter,
		StaleThreshold: 5 * time.Minute,
		Out:            &bytes.Buffer{},
	}
	for i := 0; i < 3; i++ {
		if err := sweepStaleAgents(context.Background(), opts); err != nil {
			t.Fatalf("sweep %d: %v", i, err)
		}
	}

	if n := len(adapter.Posted()); n != 1 {
		t.Errorf("posted = %d events, want 1 (stalled agents are not re-flagged)", n)
	}
}

func TestPostDigest_SummarizesAllAgents(t *testing.T) {
	f := newFixture(t)
	seedAgent(t, f.db, "Agent-1", models.AgentActive, time.Now().UTC())
	seedAgent(t, f.db, "Agent-2", models.AgentUnknown, time.Now().UTC())
	adapter := connectedMock(t)

	opts := Opts{
		Registry: f.reg,
		Router:   f.rtr,
		Ledger:   f.led,
		Relay:    adapter,
		Out:      &bytes.Buffer{},
	}
	if err := postDigest(context.Background(), opts); err != nil {
		t.Fatalf("postDigest: %v", err)
	}

	posted := adapter.Posted()
	if len(posted) != 1 {
		t.Fatalf("posted = %d events", len(posted))
	}
	if len(posted[0].Fields) != 2 {
		t.Errorf("digest fields = %d, want one per agent", len(posted[0].Fields))
	}
}

func TestPostDigest_NilRelay(t *testing.T) {
	f := newFixture(t)
	seedAgent(t, f.db, "Agent-1", models.AgentActive, time.Now().UTC())

	opts := Opts{Registry: f.reg, Router: f.rtr, Ledger: f.led, Out: &bytes.Buffer{}}
	if err := postDigest(context.Background(), opts); err != nil {
		t.Fatalf("postDigest without relay: %v", err)
	}
}

func TestRedriveInboxes_NoStranded(t *testing.T) {
	f := newFixture(t)
	var out bytes.Buffer

	opts := Opts{Registry: f.reg, Router: f.rtr, Ledger: f.led, Out: &out}
	if err := redriveInboxes(context.Background(), opts); err != nil {
		t.Fatalf("redriveInboxes: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output for empty inboxes, got %q", out.String())
	}
}

// Scenario: a crash left a pending envelope in an inbox. The watchdog sweep
// re-dispatches it, the driver delivers it, and the sweep reports the count.
func TestRedriveInboxes_DeliversStranded(t *testing.T) {
	f := newFixture(t)
	var out bytes.Buffer

	env := models.NewEnvelope("Agent-2", "Agent-1", "left behind", models.PriorityNormal, nil)
	env.Fingerprint = env.ComputeFingerprint(time.Minute)
	if err := f.store.Enqueue(env); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := f.led.Record(env, models.StatePending, 0, "accepted"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	opts := Opts{Registry: f.reg, Router: f.rtr, Ledger: f.led, Out: &out}
	if err := redriveInboxes(context.Background(), opts); err != nil {
		t.Fatalf("redriveInboxes: %v", err)
	}

	if got := f.mock.CallCount(); got != 1 {
		t.Fatalf("driver calls = %d, want 1", got)
	}
	state, err := f.led.CurrentState(env.ID)
	if err != nil {
		t.Fatalf("CurrentState: %v", err)
	}
	if state != models.StateDelivered {
		t.Errorf("state = %s, want delivered", state)
	}
	if !bytes.Contains(out.Bytes(), []byte("Redrove 1 envelope(s) for Agent-1")) {
		t.Errorf("output = %q, want redrive report", out.String())
	}
}

func TestEscalateHook_PostsFailureEvent(t *testing.T) {
	adapter := connectedMock(t)
	hook := EscalateHook(adapter)

	env := models.NewEnvelope("Agent-1", "Agent-2", "hello", models.PriorityHigh, nil)
	hook(env, "retry budget exhausted after 3 attempts")

	posted := adapter.Posted()
	if len(posted) != 1 {
		t.Fatalf("posted = %d events", len(posted))
	}
	if posted[0].Severity != relay.SeverityError {
		t.Errorf("severity = %s", posted[0].Severity)
	}
	if posted[0].Body != "retry budget exhausted after 3 attempts" {
		t.Errorf("body = %q", posted[0].Body)
	}
}

func TestEscalateHook_NilAdapter(t *testing.T) {
	hook := EscalateHook(nil)
	env := models.NewEnvelope("Agent-1", "Agent-2", "hello", models.PriorityNormal, nil)
	hook(env, "detail") // must not panic
}

func TestRunDaemon_RequiresDeps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := RunDaemon(ctx, Opts{Router: f.rtr, Ledger: f.led}); err == nil {
		t.Error("expected error without registry")
	}
	if err := RunDaemon(ctx, Opts{Registry: f.reg, Ledger: f.led}); err == nil {
		t.Error("expected error without router")
	}
	if err := RunDaemon(ctx, Opts{Registry: f.reg, Router: f.rtr}); err == nil {
		t.Error("expected error without ledger")
	}
}

func TestRunDaemon_InvalidDigestCron(t *testing.T) {
	f := newFixture(t)
	err := RunDaemon(context.Background(), Opts{
		Registry:   f.reg,
		Router:     f.rtr,
		Ledger:     f.led,
		DigestCron: "not a cron expr",
	})
	if err == nil {
		t.Error("expected error for invalid digest cron")
	}
}

func TestRunDaemon_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- RunDaemon(ctx, Opts{
			Registry:     f.reg,
			Router:       f.rtr,
			Ledger:       f.led,
			PollInterval: 10 * time.Millisecond,
			Out:          &bytes.Buffer{},
		})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunDaemon: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop after cancel")
	}
}

func TestNextCronDuration(t *testing.T) {
	if d := nextCronDuration("* * * * *"); d <= 0 || d > 61*time.Second {
		t.Errorf("every-minute duration = %v", d)
	}
	if d := nextCronDuration("0 9 * * *"); d <= 0 || d > 24*time.Hour {
		t.Errorf("daily duration = %v", d)
	}
	if d := nextCronDuration("bad"); d != 0 {
		t.Errorf("invalid expression duration = %v, want 0", d)
	}
}
