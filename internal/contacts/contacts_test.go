package contacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rszczygielski/notification-manager/internal/errors"
)

const sampleBook = `contacts:
  - first_name: Ann
    last_name: Lee
    numbers: ["+48 600 100 200"]
    emails: ["ann.private@example.com", "ann@example.com"]
    default_email: ann@example.com
  - first_name: Bob
    last_name: Stone
    emails: ["bob@example.com"]
  - first_name: Cid
    last_name: Moss
`

func writeBook(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "contacts.yaml")
	require.NoError(t, os.WriteFile(p, []byte(sampleBook), 0o600))
	return p
}

func TestOpenAndLookup(t *testing.T) {
	b, err := Open(writeBook(t))
	require.NoError(t, err)

	assert.True(t, b.Contains("Ann", "Lee"))
	assert.False(t, b.Contains("ann", "lee"), "names are case sensitive")
	assert.False(t, b.Contains("Ann", "Stone"))

	addr, err := b.LookupDefaultEmail("Ann", "Lee")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", addr)

	addr, err = b.LookupDefaultEmail("Bob", "Stone")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", addr, "first email is the fallback default")
}

func TestLookupFailures(t *testing.T) {
	b, err := Open(writeBook(t))
	require.NoError(t, err)

	_, err = b.LookupDefaultEmail("Zed", "Nobody")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = b.LookupDefaultEmail("Cid", "Moss")
	assert.True(t, errors.Is(err, ErrNoDefaultEmail))
}

func TestOpenMissingFileIsEmpty(t *testing.T) {
	b, err := Open(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Empty(t, b.List())
}

func TestOpenMalformed(t *testing.T) {
	p := filepath.Join(t.TempDir(), "contacts.yaml")
	require.NoError(t, os.WriteFile(p, []byte("contacts: [oops"), 0o600))
	_, err := Open(p)
	assert.Error(t, err)
}

func TestAddPersists(t *testing.T) {
	p := filepath.Join(t.TempDir(), "book", "contacts.yaml")
	b, err := Open(p)
	require.NoError(t, err)

	require.NoError(t, b.Add(Contact{FirstName: " Dana ", LastName: "Ray", Numbers: []string{"123"}, Emails: []string{"dana@example.com"}}))
	err = b.Add(Contact{FirstName: "Dana", LastName: "Ray"})
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.Equal(t, ErrInvalid, b.Add(Contact{FirstName: "Solo"}))

	reopened, err := Open(p)
	require.NoError(t, err)
	require.Len(t, reopened.List(), 1)
	addr, err := reopened.LookupDefaultEmail("Dana", "Ray")
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", addr)
}
