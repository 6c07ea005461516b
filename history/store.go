// Package history stores conversations and their messages in a local pebble
// database.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/msgpilot/msgpilot/logger"
	"github.com/msgpilot/msgpilot/provider"
)

// ErrNotFound is returned for unknown conversation ids.
var ErrNotFound = errors.New("conversation not found")

const (
	convPrefix = "conv:"
	msgPrefix  = "msg:"
)

// Conversation is the stored metadata for one conversation.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Seq is the next message sequence number. Internal.
	Seq int `json:"seq"`
	// Preview is the most recent user message, cut to 80 characters.
	Preview string `json:"preview"`
	// UserMessages counts user-role messages appended so far.
	UserMessages int `json:"user_messages"`
}

type storedMessage struct {
	provider.Message
	CreatedAt time.Time `json:"created_at"`
}

// Store is a pebble-backed conversation store. All operations go through one
// coarse mutex; write volume is human-scale.
type Store struct {
	mu    sync.Mutex
	db    *pebble.DB
	clock clockwork.Clock
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock injects the clock used for timestamps.
func WithClock(clock clockwork.Clock) StoreOption {
	return func(s *Store) { s.clock = clock }
}

// Open opens or creates the conversation database at path.
func Open(path string, opts ...StoreOption) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open conversation store: %w", err)
	}
	s := &Store{db: db, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Create starts a new conversation. An empty title defaults to "New Chat".
func (s *Store) Create(title string) (Conversation, error) {
	if strings.TrimSpace(title) == "" {
		title = "New Chat"
	}
	now := s.clock.Now().UTC()
	conv := Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putConvLocked(conv); err != nil {
		return Conversation{}, err
	}
	logger.Debug("conversation created", "id", conv.ID, "title", conv.Title)
	return conv, nil
}

// Get returns a conversation's metadata.
func (s *Store) Get(id string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getConvLocked(id)
}

// Exists reports whether a conversation id is known.
func (s *Store) Exists(id string) bool {
	_, err := s.Get(id)
	return err == nil
}

// List returns all conversations, most recently updated first.
func (s *Store) List() ([]Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer iter.Close()

	var convs []Conversation
	for iter.SeekGE([]byte(convPrefix)); iter.Valid(); iter.Next() {
		key := string(iter.Key())
		if !strings.HasPrefix(key, convPrefix) {
			break
		}
		var conv Conversation
		if err := json.Unmarshal(iter.Value(), &conv); err != nil {
			logger.Warn("skipping unreadable conversation record", "key", key, "error", err)
			continue
		}
		convs = append(convs, conv)
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

// Append stores a message at the end of a conversation and bumps its
// metadata.
func (s *Store) Append(id string, msg provider.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.getConvLocked(id)
	if err != nil {
		return err
	}
	now := s.clock.Now().UTC()

	rec := storedMessage{Message: msg, CreatedAt: now}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := s.db.Set([]byte(msgKey(id, conv.Seq)), data, pebble.Sync); err != nil {
		return fmt.Errorf("store message: %w", err)
	}

	conv.Seq++
	conv.UpdatedAt = now
	if msg.Role == "user" {
		conv.UserMessages++
		conv.Preview = preview(msg.Content)
	}
	return s.putConvLocked(conv)
}

// Messages returns a conversation's history in order. Trailing messages from
// an interrupted tool round are pruned so the history is never replayed with
// a dangling tool call: first any trailing tool messages, then any trailing
// assistant messages that still carry tool calls.
func (s *Store) Messages(id string) ([]provider.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getConvLocked(id); err != nil {
		return nil, err
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	defer iter.Close()

	prefix := msgPrefix + id + ":"
	var messages []provider.Message
	for iter.SeekGE([]byte(prefix)); iter.Valid(); iter.Next() {
		key := string(iter.Key())
		if !strings.HasPrefix(key, prefix) {
			break
		}
		var rec storedMessage
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			logger.Warn("skipping unreadable message record", "key", key, "error", err)
			continue
		}
		messages = append(messages, rec.Message)
	}

	return pruneIncomplete(messages), nil
}

// Rename updates a conversation's title.
func (s *Store) Rename(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.getConvLocked(id)
	if err != nil {
		return err
	}
	conv.Title = title
	conv.UpdatedAt = s.clock.Now().UTC()
	return s.putConvLocked(conv)
}

// Delete removes a conversation and all its messages.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getConvLocked(id); err != nil {
		return err
	}

	prefix := msgPrefix + id + ":"
	// The upper bound covers every sequence number under the prefix.
	if err := s.db.DeleteRange([]byte(prefix), []byte(prefix+"\xff"), pebble.Sync); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if err := s.db.Delete([]byte(convPrefix+id), pebble.Sync); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	logger.Debug("conversation deleted", "id", id)
	return nil
}

func pruneIncomplete(messages []provider.Message) []provider.Message {
	for len(messages) > 0 && messages[len(messages)-1].Role == "tool" {
		messages = messages[:len(messages)-1]
	}
	for len(messages) > 0 {
		last := messages[len(messages)-1]
		if last.Role != "assistant" || len(last.ToolCalls) == 0 {
			break
		}
		messages = messages[:len(messages)-1]
	}
	return messages
}

func (s *Store) getConvLocked(id string) (Conversation, error) {
	val, closer, err := s.db.Get([]byte(convPrefix + id))
	if errors.Is(err, pebble.ErrNotFound) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("read conversation %s: %w", id, err)
	}
	defer closer.Close()

	var conv Conversation
	if err := json.Unmarshal(val, &conv); err != nil {
		return Conversation{}, fmt.Errorf("decode conversation %s: %w", id, err)
	}
	return conv, nil
}

func (s *Store) putConvLocked(conv Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	if err := s.db.Set([]byte(convPrefix+conv.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("store conversation: %w", err)
	}
	return nil
}

func msgKey(convID string, seq int) string {
	return fmt.Sprintf("%s%s:%012d", msgPrefix, convID, seq)
}

func preview(content string) string {
	if len(content) > 80 {
		return content[:80]
	}
	return content
}
