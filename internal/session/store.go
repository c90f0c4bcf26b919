package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no session exists for the requested key.
var ErrNotFound = errors.New("session: not found")

// Store persists sessions as JSON files. Each session is written under two
// filenames, `<id>.json` and `<sanitized chatID>.json`, so it can be looked
// up by either key. The dual write is not transactional: a crash between the
// two writes can leave the copies diverged. Callers treat that, and concurrent
// writes to the same session, as known hazards.
type Store struct {
	dir string
	now func() time.Time
}

// StoreOpts holds parameters for creating a Store.
type StoreOpts struct {
	Dir string            // storage directory; defaults to DefaultDir()
	Now func() time.Time  // clock override for tests; defaults to time.Now
}

// NewStore creates a Store rooted at opts.Dir.
func NewStore(opts StoreOpts) (*Store, error) {
	dir := opts.Dir
	if dir == "" {
		var err error
		dir, err = DefaultDir()
		if err != nil {
			return nil, err
		}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{dir: dir, now: now}, nil
}

// DefaultDir returns the per-user session directory (~/.ccbridge/sessions).
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("session: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".ccbridge", "sessions"), nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) ensureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("session: create dir %s: %w", s.dir, err)
	}
	return nil
}

func (s *Store) idPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// unsafeChars matches everything that is not filesystem-safe in a chat ID.
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func (s *Store) chatPath(chatID string) string {
	return filepath.Join(s.dir, unsafeChars.ReplaceAllString(chatID, "_")+".json")
}

// GetOrCreate looks up the session for chatID, creating and persisting a new
// one on miss. New sessions start with workDir = defaultWorkDir, falling back
// to the user's home directory when empty.
func (s *Store) GetOrCreate(chatID, defaultWorkDir string) (*Session, error) {
	if existing, err := s.GetByChatID(chatID); err == nil {
		return existing, nil
	}

	workDir := defaultWorkDir
	if workDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("session: resolve home dir: %w", err)
		}
		workDir = home
	}

	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		WorkDir:   workDir,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads a session by its ID. Returns ErrNotFound for missing or
// unreadable files; a corrupt session file reads as absent so a fresh
// session can take its place.
func (s *Store) Get(id string) (*Session, error) {
	return s.read(s.idPath(id))
}

// GetByChatID loads a session via its chat-ID filename.
func (s *Store) GetByChatID(chatID string) (*Session, error) {
	return s.read(s.chatPath(chatID))
}

func (s *Store) read(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrNotFound
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, ErrNotFound
	}
	return &sess, nil
}

// Save refreshes UpdatedAt and writes both persisted copies of the session.
// The two writes are one logical update; partial completion is tolerated on
// read (each copy is a complete record).
func (s *Store) Save(sess *Session) error {
	if err := s.ensureDir(); err != nil {
		return err
	}

	sess.UpdatedAt = s.now()

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal %s: %w", sess.ID, err)
	}

	if err := os.WriteFile(s.idPath(sess.ID), data, 0o644); err != nil {
		return fmt.Errorf("session: write %s: %w", sess.ID, err)
	}
	if err := os.WriteFile(s.chatPath(sess.ChatID), data, 0o644); err != nil {
		return fmt.Errorf("session: write chat index for %s: %w", sess.ID, err)
	}
	return nil
}

// AddMessage appends a timestamped message and persists the session.
func (s *Store) AddMessage(sess *Session, role Role, content string) error {
	sess.Messages = append(sess.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	})
	return s.Save(sess)
}

// SetWorkDir changes the session's working directory and persists it. The
// path is not validated; the claude CLI fails visibly if it is bad.
func (s *Store) SetWorkDir(sess *Session, workDir string) error {
	sess.WorkDir = workDir
	return s.Save(sess)
}

// Clear removes both persisted copies of a session. Clearing a nonexistent
// session is a no-op.
func (s *Store) Clear(id string) error {
	sess, err := s.Get(id)
	if err != nil {
		return nil
	}
	if err := os.Remove(s.idPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("session: remove %s: %w", id, err)
	}
	if err := os.Remove(s.chatPath(sess.ChatID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("session: remove chat index for %s: %w", id, err)
	}
	return nil
}

// ClearAll removes every persisted session file.
func (s *Store) ClearAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("session: read dir %s: %w", s.dir, err)
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return fmt.Errorf("session: remove %s: %w", e.Name(), err)
		}
	}
	return nil
}

// List returns all sessions, most-recently-updated first. Each session is
// stored under two filenames, so results are deduplicated by ID. Unreadable
// files are skipped.
func (s *Store) List() ([]*Session, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: read dir %s: %w", s.dir, err)
	}

	seen := make(map[string]bool)
	var sessions []*Session
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		sess, err := s.read(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		if seen[sess.ID] {
			continue
		}
		seen[sess.ID] = true
		sessions = append(sessions, sess)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}
