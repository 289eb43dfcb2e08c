// Package watchdog runs the Switchboard health daemon. It loops through
// stale agent detection, stranded mailbox redrive, and a cron-scheduled
// health digest, pushing alerts through the configured relay adapter.
package watchdog

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/zulandar/switchboard/internal/ledger"
	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/registry"
	"github.com/zulandar/switchboard/internal/relay"
	"github.com/zulandar/switchboard/internal/router"
)

const defaultPollInterval = 30 * time.Second

// Opts holds parameters for the watchdog daemon loop.
type Opts struct {
	Registry       *registry.Registry
	Router         *router.Router
	Ledger         *ledger.Ledger
	Relay          relay.Adapter // nil disables alerting
	PollInterval   time.Duration
	StaleThreshold time.Duration
	DigestCron     string // 5-field cron expression, empty disables the digest
	Out            io.Writer
}

// RunDaemon runs the watchdog loop until ctx is cancelled. Each pass it
// detects stale agents, redrives stranded inboxes, and posts the health
// digest when its cron schedule fires.
func RunDaemon(ctx context.Context, opts Opts) error {
	if opts.Registry == nil {
		return fmt.Errorf("watchdog: registry is required")
	}
	if opts.Router == nil {
		return fmt.Errorf("watchdog: router is required")
	}
	if opts.Ledger == nil {
		return fmt.Errorf("watchdog: ledger is required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.StaleThreshold <= 0 {
		opts.StaleThreshold = ledger.DefaultStaleThreshold
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	fmt.Fprintf(opts.Out, "Watchdog starting (poll every %s, stale after %s)\n",
		opts.PollInterval, opts.StaleThreshold)

	var nextDigest time.Time
	if opts.DigestCron != "" {
		d := nextCronDuration(opts.DigestCron)
		if d == 0 {
			return fmt.Errorf("watchdog: invalid digest cron %q", opts.DigestCron)
		}
		nextDigest = time.Now().Add(d)
		fmt.Fprintf(opts.Out, "Health digest scheduled, first at %s\n",
			nextDigest.Format(time.RFC3339))
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(opts.Out, "Watchdog stopped.\n")
			return nil
		default:
		}

		// Phase 1: Flag agents with no confirmed delivery activity.
		if err := sweepStaleAgents(ctx, opts); err != nil {
			log.Printf("watchdog stale sweep error: %v", err)
		}

		// Phase 2: Redrive envelopes stranded in inboxes.
		if err := redriveInboxes(ctx, opts); err != nil {
			log.Printf("watchdog redrive error: %v", err)
		}

		// Phase 3: Post the health digest when due.
		if !nextDigest.IsZero() && time.Now().After(nextDigest) {
			if err := postDigest(ctx, opts); err != nil {
				log.Printf("watchdog digest error: %v", err)
			}
			nextDigest = time.Now().Add(nextCronDuration(opts.DigestCron))
		}

		sleepWithContext(ctx, opts.PollInterval)
	}
}

// sweepStaleAgents marks agents past the stale threshold and alerts the relay.
// Already-stalled agents are not re-flagged, so each stall alerts once.
func sweepStaleAgents(ctx context.Context, opts Opts) error {
	stale, err := opts.Ledger.StaleAgents(opts.StaleThreshold)
	if err != nil {
		return err
	}

	for _, agent := range stale {
		fmt.Fprintf(opts.Out, "Agent %s stale (last activity %s), marking stalled\n",
			agent.ID, formatLastActivity(agent))
		if err := opts.Ledger.SetAgentStatus(agent.ID, models.AgentStalled); err != nil {
			log.Printf("watchdog: mark %s stalled: %v", agent.ID, err)
			continue
		}
		if opts.Relay != nil {
			evt := relay.StaleAgentEvent(agent, opts.StaleThreshold)
			if err := opts.Relay.Post(ctx, evt); err != nil {
				log.Printf("watchdog: post stale alert for %s: %v", agent.ID, err)
			}
		}
	}
	return nil
}

// redriveInboxes re-dispatches pending envelopes left in any agent's inbox,
// typically after a crash between mailbox write and delivery.
func redriveInboxes(ctx context.Context, opts Opts) error {
	for _, agentID := range opts.Registry.AgentIDs() {
		n, err := opts.Router.Redrive(ctx, agentID)
		if err != nil {
			log.Printf("watchdog: redrive %s: %v", agentID, err)
			continue
		}
		if n > 0 {
			fmt.Fprintf(opts.Out, "Redrove %d envelope(s) for %s\n", n, agentID)
		}
	}
	return nil
}

// postDigest gathers per-agent health summaries and posts them to the relay.
func postDigest(ctx context.Context, opts Opts) error {
	agents, err := opts.Ledger.Agents()
	if err != nil {
		return err
	}

	summaries := make([]*ledger.HealthSummary, 0, len(agents))
	for _, agent := range agents {
		s, err := opts.Ledger.Health(agent.ID)
		if err != nil {
			log.Printf("watchdog: health for %s: %v", agent.ID, err)
			continue
		}
		summaries = append(summaries, s)
	}

	fmt.Fprintf(opts.Out, "Posting health digest (%d agents)\n", len(summaries))
	if opts.Relay == nil {
		return nil
	}
	return opts.Relay.Post(ctx, relay.DigestEvent(summaries))
}

// EscalateHook returns a router escalation callback that posts delivery
// failures to the relay. Posts run synchronously on the lane goroutine; the
// relay adapters already bound their own retry time.
func EscalateHook(adapter relay.Adapter) func(env *models.Envelope, detail string) {
	return func(env *models.Envelope, detail string) {
		if adapter == nil {
			return
		}
		evt := relay.DeliveryFailureEvent(env, detail)
		if err := adapter.Post(context.Background(), evt); err != nil {
			log.Printf("watchdog: post delivery failure for %s: %v", env.ID, err)
		}
	}
}

func formatLastActivity(agent models.Agent) string {
	if agent.LastActivity.IsZero() {
		return "never"
	}
	return agent.LastActivity.Format(time.RFC3339)
}

// sleepWithContext sleeps for duration d, returning early if ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
