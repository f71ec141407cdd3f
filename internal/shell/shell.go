// Package shell is the interactive operator menu. It reads one command per
// line and drives the contact book, the active-user store and the dispatcher.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/rszczygielski/notification-manager/internal/contacts"
	"github.com/rszczygielski/notification-manager/internal/dispatch"
	"github.com/rszczygielski/notification-manager/internal/errors"
	"github.com/rszczygielski/notification-manager/internal/logging"
	"github.com/rszczygielski/notification-manager/internal/registry"
)

// Book is the contact directory as seen by the shell.
type Book interface {
	registry.ContactChecker
	dispatch.Directory
	Add(c contacts.Contact) error
}

// ActiveUsers is the active-user store as seen by the shell.
type ActiveUsers interface {
	AddUser(firstName, lastName string, dir registry.ContactChecker) (registry.Outcome, error)
	AddUsers(users []registry.User, dir registry.ContactChecker) ([]registry.Outcome, error)
	Persist() error
	List() []registry.User
}

// errQuit ends the menu loop, either from the exit command or end of input.
var errQuit = errors.New("quit")

type command struct {
	name string
	run  func(ctx context.Context) error
}

// Shell is a line-oriented menu over an input and output stream.
type Shell struct {
	book  Book
	users ActiveUsers
	mail  dispatch.MailSender

	in       *bufio.Scanner
	out      io.Writer
	commands []command
}

// New builds a shell reading commands from in and writing prompts and results
// to out.
func New(book Book, users ActiveUsers, mail dispatch.MailSender, in io.Reader, out io.Writer) *Shell {
	s := &Shell{
		book:  book,
		users: users,
		mail:  mail,
		in:    bufio.NewScanner(in),
		out:   out,
	}
	s.commands = []command{
		{"add contact", s.addContact},
		{"add active user", s.addActiveUser},
		{"add active users", s.addActiveUsers},
		{"send email to active users", s.sendToActiveUsers},
		{"save active users", s.saveActiveUsers},
		{"print active users", s.printActiveUsers},
		{"exit", func(context.Context) error { return errQuit }},
	}
	return s
}

// Run shows the menu until the exit command is chosen or input ends. Failed
// commands are reported and the menu is shown again; Run itself only fails
// when the output cannot be written.
func (s *Shell) Run(ctx context.Context) error {
	for {
		if err := s.printMenu(); err != nil {
			return err
		}
		line, err := s.prompt("> ")
		if err != nil {
			return quitOrErr(err)
		}
		n, convErr := strconv.Atoi(line)
		if convErr != nil || n < 1 || n > len(s.commands) {
			s.failf("wrong input value %q, choose 1-%d", line, len(s.commands))
			continue
		}
		cmd := s.commands[n-1]
		if err := cmd.run(ctx); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			logging.Get().Error().Err(err).Str("command", cmd.name).Msg("command failed")
			s.failf("%s: %v", cmd.name, err)
		}
	}
}

func quitOrErr(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Shell) printMenu() error {
	var b strings.Builder
	b.WriteString("\n")
	for i, c := range s.commands {
		fmt.Fprintf(&b, "\tPress %s to %s\n", pterm.LightCyan(strconv.Itoa(i+1)), c.name)
	}
	_, err := io.WriteString(s.out, b.String())
	return err
}

// prompt writes label and returns the next trimmed input line. It returns
// io.EOF when input is exhausted.
func (s *Shell) prompt(label string) (string, error) {
	if _, err := io.WriteString(s.out, label); err != nil {
		return "", err
	}
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(s.in.Text()), nil
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) failf(format string, args ...any) {
	fmt.Fprintf(s.out, "%s %s\n", pterm.Red("error:"), fmt.Sprintf(format, args...))
}

func (s *Shell) promptName() (registry.User, error) {
	first, err := s.prompt("First name: ")
	if err != nil {
		return registry.User{}, err
	}
	last, err := s.prompt("Last name: ")
	if err != nil {
		return registry.User{}, err
	}
	return registry.User{FirstName: first, LastName: last}, nil
}

func (s *Shell) addContact(context.Context) error {
	u, err := s.promptName()
	if err != nil {
		return err
	}
	number, err := s.prompt("New number: ")
	if err != nil {
		return err
	}
	email, err := s.prompt("New email: ")
	if err != nil {
		return err
	}
	c := contacts.Contact{FirstName: u.FirstName, LastName: u.LastName}
	if number != "" {
		c.Numbers = []string{number}
	}
	if email != "" {
		c.Emails = []string{email}
		c.DefaultEmail = email
	}
	if err := s.book.Add(c); err != nil {
		return err
	}
	s.printf("%s contact %s added\n", pterm.Green("ok:"), u)
	return nil
}

func (s *Shell) addActiveUser(context.Context) error {
	u, err := s.promptName()
	if err != nil {
		return err
	}
	outcome, err := s.users.AddUser(u.FirstName, u.LastName, s.book)
	if err != nil {
		return err
	}
	s.reportOutcome(u, outcome)
	return nil
}

func (s *Shell) addActiveUsers(context.Context) error {
	var count int
	for {
		line, err := s.prompt("How many users do you want to add? ")
		if err != nil {
			return err
		}
		n, convErr := strconv.Atoi(line)
		if convErr == nil && n >= 0 {
			count = n
			break
		}
		s.failf("please enter a non-negative number")
	}

	batch := make([]registry.User, 0, count)
	for i := 0; i < count; i++ {
		u, err := s.promptName()
		if err != nil {
			return err
		}
		batch = append(batch, u)
	}
	outcomes, err := s.users.AddUsers(batch, s.book)
	for i, o := range outcomes {
		s.reportOutcome(batch[i], o)
	}
	return err
}

func (s *Shell) reportOutcome(u registry.User, o registry.Outcome) {
	switch o {
	case registry.Added:
		s.printf("%s %s added to active users\n", pterm.Green("ok:"), u)
	case registry.AlreadyActive:
		s.printf("%s %s is already an active user\n", pterm.Yellow("skip:"), u)
	case registry.NoSuchContact:
		s.printf("%s there is no contact %s, add the contact first\n", pterm.Yellow("skip:"), u)
	case registry.NotAdded:
		s.failf("%q %q is not a valid first and last name", u.FirstName, u.LastName)
	}
}

func (s *Shell) sendToActiveUsers(ctx context.Context) error {
	sender, err := s.prompt("Sender email: ")
	if err != nil {
		return err
	}
	body, err := s.prompt("Message to send: ")
	if err != nil {
		return err
	}
	subject, err := s.prompt("Subject: ")
	if err != nil {
		return err
	}

	results := dispatch.Dispatch(ctx, sender, subject, body, s.users.List(), s.book, s.mail)
	for _, r := range results {
		switch r.Outcome {
		case dispatch.Sent:
			s.printf("  %s %s <%s>\n", pterm.Green("sent"), r.User, r.Recipient)
		case dispatch.UnresolvedRecipient:
			s.printf("  %s %s: %v\n", pterm.Yellow("unresolved"), r.User, r.Err)
		case dispatch.SendFailed:
			s.printf("  %s %s <%s>: %v\n", pterm.Red("failed"), r.User, r.Recipient, r.Err)
		}
	}
	sum := dispatch.Summarize(results)
	s.printf("%d sent, %d unresolved, %d failed\n", sum.Sent, sum.Unresolved, sum.Failed)
	return nil
}

func (s *Shell) saveActiveUsers(context.Context) error {
	if err := s.users.Persist(); err != nil {
		return err
	}
	s.printf("%s active users saved\n", pterm.Green("ok:"))
	return nil
}

func (s *Shell) printActiveUsers(context.Context) error {
	users := s.users.List()
	if len(users) == 0 {
		s.printf("%s\n", pterm.Gray("no active users"))
		return nil
	}
	for _, u := range users {
		s.printf("%s\n", u)
	}
	return nil
}
