// Package contacts is the address book notification-manager resolves
// recipients from. It is stored as a YAML document and rewritten in full on
// every change.
package contacts

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rszczygielski/notification-manager/internal/errors"
)

var (
	// ErrNotFound is returned when no contact matches the requested name.
	ErrNotFound = errors.New("contact not found")
	// ErrNoDefaultEmail is returned when a contact exists but has no address to mail.
	ErrNoDefaultEmail = errors.New("contact has no default email")
	// ErrDuplicate is returned by Add when the name is already in the book.
	ErrDuplicate = errors.New("contact already exists")
	// ErrInvalid is returned by Add for contacts without a first or last name.
	ErrInvalid = errors.New("contact needs a first and last name")
)

// Contact is one person in the book.
type Contact struct {
	FirstName    string   `yaml:"first_name"`
	LastName     string   `yaml:"last_name"`
	Numbers      []string `yaml:"numbers,omitempty"`
	Emails       []string `yaml:"emails,omitempty"`
	DefaultEmail string   `yaml:"default_email,omitempty"`
}

// defaultEmail returns the explicit default, or the first listed address.
func (c Contact) defaultEmail() string {
	if c.DefaultEmail != "" {
		return c.DefaultEmail
	}
	for _, e := range c.Emails {
		if e = strings.TrimSpace(e); e != "" {
			return e
		}
	}
	return ""
}

type document struct {
	Contacts []Contact `yaml:"contacts"`
}

// Book is a file-backed contact directory.
type Book struct {
	mu       sync.RWMutex
	path     string
	contacts []Contact
}

// Open loads the book at path. A missing file yields an empty book that will
// be created on the first Add.
func Open(path string) (*Book, error) {
	b := &Book{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return b, nil
		}
		return nil, errors.Storage(err, "read contacts %s", path)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse contacts %s", path)
	}
	b.contacts = doc.Contacts
	return b, nil
}

func (b *Book) find(firstName, lastName string) (Contact, bool) {
	for _, c := range b.contacts {
		if c.FirstName == firstName && c.LastName == lastName {
			return c, true
		}
	}
	return Contact{}, false
}

// Contains reports whether a contact with exactly this first and last name exists.
func (b *Book) Contains(firstName, lastName string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.find(firstName, lastName)
	return ok
}

// LookupDefaultEmail returns the address notifications for this person go to.
func (b *Book) LookupDefaultEmail(firstName, lastName string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.find(firstName, lastName)
	if !ok {
		return "", errors.Wrapf(ErrNotFound, "%s %s", firstName, lastName)
	}
	addr := c.defaultEmail()
	if addr == "" {
		return "", errors.Wrapf(ErrNoDefaultEmail, "%s %s", firstName, lastName)
	}
	return addr, nil
}

// Add appends c and rewrites the book file.
func (b *Book) Add(c Contact) error {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	if c.FirstName == "" || c.LastName == "" {
		return ErrInvalid
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.find(c.FirstName, c.LastName); ok {
		return errors.Wrapf(ErrDuplicate, "%s %s", c.FirstName, c.LastName)
	}
	b.contacts = append(b.contacts, c)
	if err := b.saveLocked(); err != nil {
		b.contacts = b.contacts[:len(b.contacts)-1]
		return err
	}
	return nil
}

// List returns a copy of all contacts in file order.
func (b *Book) List() []Contact {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Contact, len(b.contacts))
	copy(out, b.contacts)
	return out
}

func (b *Book) saveLocked() error {
	data, err := yaml.Marshal(document{Contacts: b.contacts})
	if err != nil {
		return errors.Wrap(err, "marshal contacts")
	}
	if dir := filepath.Dir(b.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Storage(err, "mkdir contacts dir")
		}
	}
	if err := os.WriteFile(b.path, data, 0o640); err != nil {
		return errors.Storage(err, "write contacts %s", b.path)
	}
	return nil
}
