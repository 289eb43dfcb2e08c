// Package mailbox implements the durable per-agent file store for envelopes.
//
// Each agent owns three directories under the store root: inbox (pending
// envelopes), outbox (sender-side audit copies), and processed (consumed
// envelopes, kept for the audit trail). One file per envelope, named so a
// plain directory listing yields creation order.
package mailbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/zulandar/switchboard/internal/models"
)

const (
	inboxDir     = "inbox"
	outboxDir    = "outbox"
	processedDir = "processed"
	tmpPrefix    = ".tmp-"
)

// Store is a file-backed mailbox rooted at a single directory. Safe for
// concurrent use; locking is per-agent so traffic to one agent never blocks
// another.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a Store rooted at root. Directories are created lazily on
// first write per agent.
func NewStore(root string) *Store {
	return &Store{
		root:  root,
		locks: make(map[string]*sync.Mutex),
	}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// agentLock returns the mutex guarding one agent's mailbox directories.
func (s *Store) agentLock(agentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[agentID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[agentID] = lock
	}
	return lock
}

// Entry references one pending envelope file in an agent's inbox.
type Entry struct {
	EnvelopeID string
	Path       string
}

// fileName builds the sortable on-disk name for an envelope: a zero-padded
// creation timestamp prefix keeps lexical order equal to creation order.
func fileName(env *models.Envelope) string {
	return fmt.Sprintf("%020d-%s.json", env.CreatedAt.UnixNano(), env.ID)
}

// envelopeIDFromName extracts the envelope ID from an on-disk file name.
func envelopeIDFromName(name string) string {
	name = strings.TrimSuffix(name, ".json")
	if i := strings.Index(name, "-"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Enqueue persists an envelope into the recipient's inbox and drops an audit
// copy in the sender's outbox. The inbox write is atomic (temp file + rename)
// so a concurrent reader never observes a partial message.
func (s *Store) Enqueue(env *models.Envelope) error {
	lock := s.agentLock(env.Recipient)
	lock.Lock()
	err := s.writeAtomic(filepath.Join(s.root, env.Recipient, inboxDir), env)
	lock.Unlock()
	if err != nil {
		return err
	}

	// Outbox copy is audit-only; its loss must not fail the send.
	senderLock := s.agentLock(env.Sender)
	senderLock.Lock()
	defer senderLock.Unlock()
	return s.writeAtomic(filepath.Join(s.root, env.Sender, outboxDir), env)
}

// writeAtomic serializes env into dir via temp-file-then-rename.
func (s *Store) writeAtomic(dir string, env *models.Envelope) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &StorageError{Op: "mkdir", Path: dir, Err: err}
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return &StorageError{Op: "marshal", Path: dir, Err: err}
	}

	tmp := filepath.Join(dir, tmpPrefix+env.ID)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &StorageError{Op: "write", Path: tmp, Err: err}
	}

	final := filepath.Join(dir, fileName(env))
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return &StorageError{Op: "rename", Path: final, Err: err}
	}
	return nil
}

// ListPending returns the agent's inbox entries in creation (FIFO) order.
// Temp files from in-progress writes are skipped. A missing inbox directory
// is an empty inbox, not an error.
func (s *Store) ListPending(agentID string) ([]Entry, error) {
	lock := s.agentLock(agentID)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Join(s.root, agentID, inboxDir)
	names, err := listDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{
			EnvelopeID: envelopeIDFromName(name),
			Path:       filepath.Join(dir, name),
		})
	}
	return entries, nil
}

// listDir returns the non-temp file names in dir, sorted lexically.
func listDir(dir string) ([]string, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &StorageError{Op: "list", Path: dir, Err: err}
	}

	var names []string
	for _, d := range dirents {
		if d.IsDir() || strings.HasPrefix(d.Name(), tmpPrefix) {
			continue
		}
		names = append(names, d.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Read loads and parses an envelope file.
func (s *Store) Read(path string) (*models.Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &StorageError{Op: "parse", Path: path, Err: err}
	}
	return &env, nil
}

// MarkProcessed moves an envelope file from the agent's inbox to processed.
// Idempotent: if the envelope is already in processed the call is a no-op.
// An envelope found in neither directory is a StorageError.
func (s *Store) MarkProcessed(agentID, envelopeID string) error {
	lock := s.agentLock(agentID)
	lock.Lock()
	defer lock.Unlock()

	inbox := filepath.Join(s.root, agentID, inboxDir)
	processed := filepath.Join(s.root, agentID, processedDir)

	name, err := findByEnvelopeID(inbox, envelopeID)
	if err != nil {
		return err
	}
	if name == "" {
		// Not pending. Already processed is fine; never seen is not.
		done, err := findByEnvelopeID(processed, envelopeID)
		if err != nil {
			return err
		}
		if done != "" {
			return nil
		}
		return &StorageError{Op: "mark-processed", Path: inbox,
			Err: fmt.Errorf("envelope %s not found", envelopeID)}
	}

	if err := os.MkdirAll(processed, 0o755); err != nil {
		return &StorageError{Op: "mkdir", Path: processed, Err: err}
	}
	src := filepath.Join(inbox, name)
	dst := filepath.Join(processed, name)
	if err := os.Rename(src, dst); err != nil {
		return &StorageError{Op: "rename", Path: dst, Err: err}
	}
	return nil
}

// ListProcessed returns the agent's processed entries in creation order.
func (s *Store) ListProcessed(agentID string) ([]Entry, error) {
	lock := s.agentLock(agentID)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Join(s.root, agentID, processedDir)
	names, err := listDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{
			EnvelopeID: envelopeIDFromName(name),
			Path:       filepath.Join(dir, name),
		})
	}
	return entries, nil
}

// findByEnvelopeID locates the file for an envelope ID in dir. Returns the
// bare file name, or empty string if absent.
func findByEnvelopeID(dir, envelopeID string) (string, error) {
	names, err := listDir(dir)
	if err != nil {
		return "", err
	}
	suffix := "-" + envelopeID + ".json"
	for _, name := range names {
		if strings.HasSuffix(name, suffix) {
			return name, nil
		}
	}
	return "", nil
}
