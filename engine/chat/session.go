package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/FixwellAI/fixwell-mvp/engine/domain"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSessionID = errors.New("invalid session id")
)

// Session is a stored conversation. The server never holds one; sessions
// belong to the client side, and the REPL persists them between runs.
type Session struct {
	ID      string                    `json:"id"`
	Turns   []domain.ConversationTurn `json:"turns"`
	Created time.Time                 `json:"created"`
	Updated time.Time                 `json:"updated"`
}

// Repository stores sessions. Save stamps Updated, and Created on first
// save; List returns most recently updated first.
type Repository interface {
	Load(id string) (Session, error)
	Save(s Session) error
	List() ([]Session, error)
	Delete(id string) error
}

// MemoryRepository keeps sessions in process.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]Session)}
}

func (m *MemoryRepository) Load(id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return copySession(s), nil
}

func (m *MemoryRepository) Save(s Session) error {
	if err := validSessionID(s.ID); err != nil {
		return err
	}
	stamp(&s)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = copySession(s)
	return nil
}

func (m *MemoryRepository) List() ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, copySession(s))
	}
	sortSessions(out)
	return out, nil
}

func (m *MemoryRepository) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	delete(m.sessions, id)
	return nil
}

// FileRepository stores each session as <id>.json under dir.
type FileRepository struct {
	dir string
}

func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("chat: session dir: %w", err)
	}
	return &FileRepository{dir: dir}, nil
}

func (f *FileRepository) Load(id string) (Session, error) {
	if err := validSessionID(id); err != nil {
		return Session{}, err
	}
	data, err := os.ReadFile(f.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("chat: read session %s: %w", id, err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("chat: decode session %s: %w", id, err)
	}
	return s, nil
}

func (f *FileRepository) Save(s Session) error {
	if err := validSessionID(s.ID); err != nil {
		return err
	}
	stamp(&s)
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("chat: encode session %s: %w", s.ID, err)
	}
	if err := os.WriteFile(f.path(s.ID), data, 0o644); err != nil {
		return fmt.Errorf("chat: write session %s: %w", s.ID, err)
	}
	return nil
}

// List skips files that are not readable sessions rather than failing the
// whole listing.
func (f *FileRepository) List() ([]Session, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("chat: list sessions: %w", err)
	}
	var out []Session
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		s, err := f.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	sortSessions(out)
	return out, nil
}

func (f *FileRepository) Delete(id string) error {
	if err := validSessionID(id); err != nil {
		return err
	}
	err := os.Remove(f.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return fmt.Errorf("chat: delete session %s: %w", id, err)
	}
	return nil
}

func (f *FileRepository) path(id string) string {
	return filepath.Join(f.dir, id+".json")
}

// Session ids double as file names, so the charset stays clear of path
// separators.
var sessionIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

func validSessionID(id string) error {
	if !sessionIDRe.MatchString(id) {
		return fmt.Errorf("session id %q: %w", id, ErrInvalidSessionID)
	}
	return nil
}

func stamp(s *Session) {
	now := time.Now().UTC()
	if s.Created.IsZero() {
		s.Created = now
	}
	s.Updated = now
}

func copySession(s Session) Session {
	out := s
	out.Turns = make([]domain.ConversationTurn, len(s.Turns))
	copy(out.Turns, s.Turns)
	return out
}

func sortSessions(s []Session) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].Updated.Equal(s[j].Updated) {
			return s[i].Updated.After(s[j].Updated)
		}
		return s[i].ID < s[j].ID
	})
}
