package registry

import (
	"fmt"
	"strings"

	"github.com/rszczygielski/notification-manager/internal/errors"
)

// User identifies an active user by first and last name.
type User struct {
	FirstName string
	LastName  string
}

// String returns the on-disk form, "First Last".
func (u User) String() string {
	return u.FirstName + " " + u.LastName
}

// ErrInvalidUser is returned when a first or last name is empty or contains
// whitespace, which the line format cannot represent.
var ErrInvalidUser = errors.New("first and last name must be single non-empty words")

func (u User) validate() error {
	if u.FirstName == "" || u.LastName == "" ||
		strings.ContainsAny(u.FirstName, " \t\r\n") || strings.ContainsAny(u.LastName, " \t\r\n") {
		return errors.Wrapf(ErrInvalidUser, "%q %q", u.FirstName, u.LastName)
	}
	return nil
}

// MalformedRecordError reports an active-users line that is not exactly two
// whitespace-separated tokens.
type MalformedRecordError struct {
	Path string
	Line int
	Text string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed active user record at %s:%d: %q", e.Path, e.Line, e.Text)
}

// ParseUser parses one "First Last" line.
func ParseUser(line string) (User, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return User{}, &MalformedRecordError{Text: line}
	}
	return User{FirstName: fields[0], LastName: fields[1]}, nil
}
