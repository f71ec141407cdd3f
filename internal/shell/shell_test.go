package shell

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rszczygielski/notification-manager/internal/contacts"
	"github.com/rszczygielski/notification-manager/internal/registry"
)

func TestMain(m *testing.M) {
	pterm.DisableColor()
	os.Exit(m.Run())
}

type sentMail struct{ from, to, subject, body string }

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeSender) Send(ctx context.Context, from, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{from, to, subject, body})
	return nil
}

type fixture struct {
	book  *contacts.Book
	store *registry.Store
	mail  *fakeSender
	out   *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	book, err := contacts.Open(filepath.Join(dir, "contacts.yaml"))
	require.NoError(t, err)
	require.NoError(t, book.Add(contacts.Contact{FirstName: "Ann", LastName: "Lee", Emails: []string{"ann@example.com"}}))
	store, err := registry.Open(filepath.Join(dir, "active_users.txt"))
	require.NoError(t, err)
	return &fixture{book: book, store: store, mail: &fakeSender{}, out: &bytes.Buffer{}}
}

func (f *fixture) run(t *testing.T, lines ...string) {
	t.Helper()
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	require.NoError(t, New(f.book, f.store, f.mail, in, f.out).Run(context.Background()))
}

func TestMenuListsCommandsInOrder(t *testing.T) {
	f := newFixture(t)
	f.run(t, "7")
	out := f.out.String()
	for i, name := range []string{"add contact", "add active user", "add active users", "send email to active users", "save active users", "print active users", "exit"} {
		assert.Contains(t, out, "Press "+string(rune('1'+i))+" to "+name)
	}
}

func TestEndOfInputExits(t *testing.T) {
	f := newFixture(t)
	err := New(f.book, f.store, f.mail, strings.NewReader(""), f.out).Run(context.Background())
	assert.NoError(t, err)
}

func TestInvalidChoiceReprompts(t *testing.T) {
	f := newFixture(t)
	f.run(t, "abc", "42", "7")
	out := f.out.String()
	assert.Contains(t, out, `wrong input value "abc"`)
	assert.Contains(t, out, `wrong input value "42"`)
	assert.Equal(t, 3, strings.Count(out, "Press 7 to exit"))
}

func TestAddActiveUser(t *testing.T) {
	f := newFixture(t)
	f.run(t, "2", "Ann", "Lee", "2", "Ann", "Lee", "2", "Bob", "Stone", "7")

	assert.Equal(t, []registry.User{{FirstName: "Ann", LastName: "Lee"}}, f.store.List())
	out := f.out.String()
	assert.Contains(t, out, "Ann Lee added to active users")
	assert.Contains(t, out, "Ann Lee is already an active user")
	assert.Contains(t, out, "there is no contact Bob Stone")

	data, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee\n", string(data))
}

func TestAddContactThenActivate(t *testing.T) {
	f := newFixture(t)
	f.run(t, "1", "Bob", "Stone", "555-0100", "bob@example.com", "2", "Bob", "Stone", "7")

	assert.True(t, f.book.Contains("Bob", "Stone"))
	addr, err := f.book.LookupDefaultEmail("Bob", "Stone")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", addr)
	assert.True(t, f.store.Contains(registry.User{FirstName: "Bob", LastName: "Stone"}))
}

func TestAddDuplicateContactReportsError(t *testing.T) {
	f := newFixture(t)
	f.run(t, "1", "Ann", "Lee", "", "", "7")
	assert.Contains(t, f.out.String(), "error: add contact")
}

func TestAddActiveUsersBatch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.book.Add(contacts.Contact{FirstName: "Cid", LastName: "Moss", Emails: []string{"cid@example.com"}}))

	f.run(t, "3", "two", "2", "Ann", "Lee", "Cid", "Moss", "7")

	assert.Contains(t, f.out.String(), "please enter a non-negative number")
	assert.Equal(t, []registry.User{
		{FirstName: "Ann", LastName: "Lee"},
		{FirstName: "Cid", LastName: "Moss"},
	}, f.store.List())
}

func TestSendToActiveUsers(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.AddUser("Ann", "Lee", f.book)
	require.NoError(t, err)

	f.run(t, "4", "bot@x.com", "Hello", "Hi", "7")

	assert.Equal(t, []sentMail{{"bot@x.com", "ann@example.com", "Hi", "Hello"}}, f.mail.sent)
	assert.Contains(t, f.out.String(), "1 sent, 0 unresolved, 0 failed")
}

func TestPrintActiveUsers(t *testing.T) {
	f := newFixture(t)
	f.run(t, "6")
	assert.Contains(t, f.out.String(), "no active users")

	_, err := f.store.AddUser("Ann", "Lee", f.book)
	require.NoError(t, err)
	f.out.Reset()
	f.run(t, "6", "7")
	assert.Contains(t, f.out.String(), "Ann Lee\n")
}

func TestSaveActiveUsers(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.AddUser("Ann", "Lee", f.book)
	require.NoError(t, err)
	require.NoError(t, os.Remove(f.store.Path()))

	f.run(t, "5", "7")

	data, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee\n", string(data))
	assert.Contains(t, f.out.String(), "active users saved")
}

func TestEOFInsideCommandExits(t *testing.T) {
	f := newFixture(t)
	err := New(f.book, f.store, f.mail, strings.NewReader("2\nAnn\n"), f.out).Run(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, f.store.List())
}

func TestAddActiveUsersReportsInvalidName(t *testing.T) {
	f := newFixture(t)
	f.run(t, "3", "2", "Mary Ann", "Lee", "Ann", "Lee", "7")

	assert.Contains(t, f.out.String(), `"Mary Ann" "Lee" is not a valid first and last name`)
	assert.Equal(t, []registry.User{{FirstName: "Ann", LastName: "Lee"}}, f.store.List())
}
