// Package registry keeps the set of active users, the people every
// notification is broadcast to, together with its line-per-user file.
package registry

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rszczygielski/notification-manager/internal/errors"
	"github.com/rszczygielski/notification-manager/internal/logging"
	"github.com/rszczygielski/notification-manager/internal/metrics"
)

// Outcome is the result of an add attempt. NotAdded is returned together
// with an error when the attempt could not be decided or completed.
type Outcome int

const (
	NotAdded Outcome = iota
	Added
	AlreadyActive
	NoSuchContact
)

func (o Outcome) String() string {
	switch o {
	case NotAdded:
		return "not_added"
	case Added:
		return "added"
	case AlreadyActive:
		return "already_active"
	case NoSuchContact:
		return "no_such_contact"
	}
	return "unknown"
}

// ContactChecker is the part of the contact directory the store needs.
// Membership is checked on every add and never cached.
type ContactChecker interface {
	Contains(firstName, lastName string) bool
}

// Store owns the active user set. Every successful add persists the whole set
// before returning, so the file mirrors memory after each mutation.
type Store struct {
	mu    sync.Mutex
	path  string
	users []User
}

// New returns an empty store bound to path. Nothing is read until Load.
func New(path string) *Store {
	return &Store{path: path}
}

// Open creates a store and loads path.
func Open(path string) (*Store, error) {
	s := New(path)
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Load replaces the in-memory set with the contents of the backing file.
// Blank lines are skipped. The first malformed line aborts the load with a
// *MalformedRecordError and leaves the current set untouched. A missing file
// loads as an empty set.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Get().Info().Str("file", s.path).Msg("active users file not found, starting with an empty set")
			s.mu.Lock()
			s.users = nil
			s.mu.Unlock()
			return nil
		}
		return errors.Storage(err, "read active users %s", s.path)
	}

	var users []User
	seen := make(map[User]struct{})
	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		u, err := ParseUser(line)
		if err != nil {
			return &MalformedRecordError{Path: s.path, Line: lineNo, Text: line}
		}
		if _, dup := seen[u]; dup {
			// a hand-edited file may repeat a name; the set stays unique
			logging.Get().Warn().Str("file", s.path).Int("line", lineNo).Str("user", u.String()).Msg("duplicate active user ignored")
			continue
		}
		seen[u] = struct{}{}
		users = append(users, u)
	}
	if err := sc.Err(); err != nil {
		return errors.Storage(err, "scan active users %s", s.path)
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
	logging.Get().Debug().Str("file", s.path).Int("count", len(users)).Msg("active users loaded")
	return nil
}

func (s *Store) indexLocked(u User) int {
	for i, existing := range s.users {
		if existing == u {
			return i
		}
	}
	return -1
}

// AddUser makes (firstName, lastName) active if it is a known contact and not
// already active. Only the Added outcome mutates and persists the set. If the
// persist fails the user is not kept in memory either. Every error comes with
// NotAdded.
func (s *Store) AddUser(firstName, lastName string, dir ContactChecker) (Outcome, error) {
	u := User{FirstName: firstName, LastName: lastName}
	if err := u.validate(); err != nil {
		return NotAdded, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	log := logging.Get().With().Str("user", u.String()).Logger()

	if s.indexLocked(u) >= 0 {
		log.Info().Msg("user is already active")
		return AlreadyActive, nil
	}
	if !dir.Contains(firstName, lastName) {
		log.Info().Msg("no such contact, add the contact before activating it")
		return NoSuchContact, nil
	}

	s.users = append(s.users, u)
	if err := s.persistLocked(); err != nil {
		s.users = s.users[:len(s.users)-1]
		return NotAdded, err
	}
	metrics.IncUserAdded()
	log.Info().Msg("user added to active users")
	return Added, nil
}

// AddUsers applies AddUser to each user in order. Each successful add is
// persisted on its own. The first storage error stops the batch; outcomes for
// the users processed so far are returned with it.
func (s *Store) AddUsers(users []User, dir ContactChecker) ([]Outcome, error) {
	out := make([]Outcome, 0, len(users))
	for _, u := range users {
		o, err := s.AddUser(u.FirstName, u.LastName, dir)
		if err != nil {
			if errors.Is(err, ErrInvalidUser) {
				out = append(out, o)
				continue
			}
			return out, err
		}
		out = append(out, o)
	}
	return out, nil
}

// Persist rewrites the backing file with the current set.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

// persistLocked writes one line per user to a temporary file next to the
// target and renames it into place. Caller must hold s.mu.
func (s *Store) persistLocked() error {
	var buf bytes.Buffer
	for _, u := range s.users {
		buf.WriteString(u.String())
		buf.WriteByte('\n')
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Storage(err, "mkdir active users dir")
	}
	tmp, err := os.CreateTemp(dir, ".active_users-*.tmp")
	if err != nil {
		return errors.Storage(err, "create temp file for %s", s.path)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Storage(err, "write active users %s", s.path)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Storage(err, "close active users %s", s.path)
	}
	if err := os.Chmod(tmpName, 0o640); err != nil {
		_ = os.Remove(tmpName)
		return errors.Storage(err, "chmod active users %s", s.path)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Storage(err, "replace active users %s", s.path)
	}
	return nil
}

// List returns a snapshot of the active users in insertion order.
func (s *Store) List() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]User, len(s.users))
	copy(out, s.users)
	return out
}

// Len returns the number of active users.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// Contains reports whether u is active.
func (s *Store) Contains(u User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(u) >= 0
}
