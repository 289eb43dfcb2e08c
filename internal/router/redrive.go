package router

import (
	"context"
	"log"

	"github.com/zulandar/switchboard/internal/models"
)

// Redrive re-dispatches envelopes stranded in an agent's inbox: messages
// persisted by the write-ahead step but never delivered, typically after a
// crash or a storage outage. Only envelopes whose ledger state is still
// pending (or unknown to the ledger entirely) are re-driven; anything that
// reached in-flight may already have touched the recipient's UI, and
// re-sending it is how duplicates happen. Delivered leftovers are moved to
// processed to repair drift.
//
// A pending envelope may also sit queued on a live router sharing the same
// mailbox root and ledger. Each lane claims its envelope in the ledger before
// touching the driver, so when a redrive races a live lane exactly one of
// them delivers and the other yields.
//
// Returns the number of envelopes re-dispatched. Blocks until all of them
// reach a terminal state.
func (r *Router) Redrive(ctx context.Context, agentID string) (int, error) {
	entries, err := r.store.ListPending(agentID)
	if err != nil {
		return 0, err
	}

	var jobs []*job
	for _, entry := range entries {
		env, err := r.store.Read(entry.Path)
		if err != nil {
			log.Printf("router: redrive read %s: %v", entry.Path, err)
			continue
		}

		state, err := r.led.CurrentState(env.ID)
		if err != nil {
			return len(jobs), err
		}
		switch state {
		case models.StateDelivered:
			// The file outlived its delivery record; repair the drift.
			if err := r.store.MarkProcessed(agentID, env.ID); err != nil {
				log.Printf("router: redrive repair %s: %v", env.ID, err)
			}
			continue
		case models.StatePending, "":
			r.mu.Lock()
			_, queued := r.pending[env.ID]
			r.mu.Unlock()
			if queued {
				// Already on one of our own lanes; let it deliver there.
				continue
			}
			env.State = models.StatePending
			j, err := r.dispatch(env)
			if err != nil {
				return len(jobs), err
			}
			jobs = append(jobs, j)
		default:
			// in_flight, failed, duplicate: never re-driven automatically.
			continue
		}
	}

	for _, j := range jobs {
		select {
		case <-j.done:
		case <-ctx.Done():
			return len(jobs), ctx.Err()
		}
	}
	return len(jobs), nil
}
