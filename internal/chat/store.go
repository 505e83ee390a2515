package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Store owns the append-only message log. The in-memory slice is the
// source of truth; the backing file is a best-effort snapshot rewritten
// by a background writer after each mutation. A crash can lose the tail.
type Store struct {
	mu       sync.Mutex
	log      *slog.Logger
	path     string
	messages []ChatMessage

	// dirty has capacity 1 so bursts of mutations coalesce into one write.
	dirty chan struct{}
}

// NewStore loads the backing file if present. A missing, unreadable or
// unparseable file yields an empty log; startup never fails here.
func NewStore(log *slog.Logger, path string) *Store {
	s := &Store{
		log:   log,
		path:  path,
		dirty: make(chan struct{}, 1),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Debug("no history file yet", "path", path)
	case err != nil:
		log.Error("reading history failed, starting empty", "path", path, "error", err)
	default:
		if err := json.Unmarshal(data, &s.messages); err != nil {
			log.Error("parsing history failed, starting empty", "path", path, "error", err)
			s.messages = nil
		}
	}
	log.Info("message store ready", "messages", len(s.messages))
	return s
}

// Append fills in whichever of id, timestamp and display time the message
// does not carry yet, appends it to the log and queues a persistence pass.
// The in-memory append itself cannot fail.
func (s *Store) Append(msg ChatMessage) string {
	now := time.Now()
	if msg.ID == "" {
		msg.ID = newMessageID(now)
	}
	if msg.Timestamp == "" {
		msg.Timestamp = now.UTC().Format(time.RFC3339)
	}
	if msg.DisplayTime == "" {
		msg.DisplayTime = now.Format("15:04")
	}
	if msg.ReadBy == nil {
		msg.ReadBy = []string{}
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.markDirty()
	return msg.ID
}

// MarkRead adds user to the readBy set of the message with the given id.
// It reports the resulting set, whether anything changed, and whether the
// message exists at all. Repeating the same call changes nothing.
func (s *Store) MarkRead(messageID, user string) (readBy []string, changed, found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].ID != messageID {
			continue
		}
		if !lo.Contains(s.messages[i].ReadBy, user) {
			s.messages[i].ReadBy = append(s.messages[i].ReadBy, user)
			changed = true
		}
		readBy = append([]string{}, s.messages[i].ReadBy...)
		found = true
		break
	}

	if changed {
		s.markDirty()
	}
	return readBy, changed, found
}

// Snapshot returns a copy of the full log in append order.
func (s *Store) Snapshot() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ChatMessage, len(s.messages))
	copy(out, s.messages)
	for i := range out {
		out[i].ReadBy = append([]string{}, out[i].ReadBy...)
	}
	return out
}

// Run drains the dirty flag and rewrites the backing file. It returns
// after a final flush once ctx is cancelled. Write failures are logged
// and never surfaced to the mutation path.
func (s *Store) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.persist()
			return
		case <-s.dirty:
			s.persist()
		}
	}
}

func (s *Store) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *Store) persist() {
	data, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		s.log.Error("serializing history failed", "error", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.log.Error("writing history failed", "path", s.path, "error", err)
	}
}
