package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/rszczygielski/notification-manager/internal/config"
	"github.com/rszczygielski/notification-manager/internal/contacts"
	"github.com/rszczygielski/notification-manager/internal/errors"
	"github.com/rszczygielski/notification-manager/internal/logging"
	"github.com/rszczygielski/notification-manager/internal/mailer"
	"github.com/rszczygielski/notification-manager/internal/metrics"
	"github.com/rszczygielski/notification-manager/internal/poller"
	"github.com/rszczygielski/notification-manager/internal/registry"
	"github.com/rszczygielski/notification-manager/internal/shell"
)

func main() {
	var interactive bool
	flag.BoolVar(&interactive, "i", false, "run the interactive menu instead of polling the notification directory")
	flag.BoolVar(&interactive, "interactive", false, "run the interactive menu instead of polling the notification directory")
	flag.Parse()

	os.Exit(run(interactive, os.Stdin, os.Stdout))
}

// run wires the application together and returns the process exit code.
func run(interactive bool, in io.Reader, out io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed loading config: %v\n", err)
		return 1
	}

	cleanup, err := initLogging(cfg, interactive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer cleanup()

	for _, w := range cfg.Validate() {
		logging.Get().Warn().Msg(w)
	}

	book, store, err := openStores(cfg)
	if err != nil {
		reportStartupError(err, "cannot load contact data")
		return 1
	}
	mail, err := mailer.New(cfg)
	if err != nil {
		reportStartupError(err, "cannot configure mail transport")
		return 1
	}
	logging.Get().Info().Str("transport", mail.Name()).Int("active_users", store.Len()).Msg("notification-manager ready")

	if interactive {
		if err := shell.New(book, store, mail, in, out).Run(context.Background()); err != nil {
			logging.Get().Error().Err(err).Msg("interactive shell failed")
			return 1
		}
		return 0
	}
	return runPolling(cfg, book, store, mail)
}

func initLogging(cfg *config.Config, interactive bool) (func(), error) {
	if interactive {
		return logging.InitConsole(cfg.LogFile, cfg.LogLevel)
	}
	return logging.Init(cfg.LogFile, cfg.LogLevel)
}

// openStores loads the contact book and the active-user set. A malformed
// active-users line is reported with its file and line number.
func openStores(cfg *config.Config) (*contacts.Book, *registry.Store, error) {
	book, err := contacts.Open(cfg.ContactsFile)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open contact book")
	}
	store, err := registry.Open(cfg.ActiveUsersFile)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open active users")
	}
	return book, store, nil
}

func reportStartupError(err error, msg string) {
	ev := logging.Get().Error().Err(err)
	var mre *registry.MalformedRecordError
	if errors.As(err, &mre) {
		ev = ev.Str("file", mre.Path).Int("line", mre.Line)
	}
	if hint := errors.FlattenHints(err); hint != "" {
		ev = ev.Str("hint", hint)
	}
	ev.Msg(msg)
}

func runPolling(cfg *config.Config, book *contacts.Book, store *registry.Store, mail mailer.Sender) int {
	stopMetrics := startMetricsServer(cfg)
	defer stopMetrics()

	p := poller.New(poller.Options{
		Dir:      cfg.NotificationDir,
		Sender:   cfg.SenderAddress,
		Interval: cfg.PollInterval,
		Watch:    cfg.WatchEvents,
		Settle:   cfg.SettleTime,
	}, store, book, mail)

	sig := make(chan os.Signal, 2)
	signal.Notify(sig, shutdownSignals...)
	defer signal.Stop(sig)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	if err := awaitShutdown(p, done, sig); err != nil {
		reportStartupError(err, "notification poller exited with error")
		return 1
	}
	return 0
}

type stopper interface {
	Stop()
}

// awaitShutdown waits for the poller to finish. The first signal asks it to
// stop after the current iteration; a second one gives up waiting.
func awaitShutdown(p stopper, done <-chan error, sig <-chan os.Signal) error {
	select {
	case err := <-done:
		return err
	case s := <-sig:
		logging.Get().Info().Str("signal", s.String()).Msg("shutdown signal received, finishing current iteration")
		p.Stop()
	}
	select {
	case err := <-done:
		return err
	case s := <-sig:
		return errors.Newf("received %s again, exiting without waiting for the current iteration", s)
	}
}

// startMetricsServer serves /metrics and /status when enabled and returns a
// function that shuts the server down.
func startMetricsServer(cfg *config.Config) func() {
	if !cfg.MetricsEnabled {
		return func() {}
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metrics.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Get().Info().Str("addr", srv.Addr).Msg("starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Get().Error().Err(err).Msg("metrics server failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
