// Package poller turns a watched directory into a stream of notification
// jobs: every regular file found is broadcast to the active users, with the
// file name as subject and its contents as body, and then removed.
//
// Delivery is at-least-once. A crash after dispatch but before removal sends
// the file again on the next run.
package poller

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/rszczygielski/notification-manager/internal/dispatch"
	"github.com/rszczygielski/notification-manager/internal/errors"
	"github.com/rszczygielski/notification-manager/internal/logging"
	"github.com/rszczygielski/notification-manager/internal/metrics"
	"github.com/rszczygielski/notification-manager/internal/registry"
)

// State of the poll loop.
type State int32

const (
	Running State = iota
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// UserSource provides the current active users; List must return a snapshot.
type UserSource interface {
	List() []registry.User
}

// Options configures a Poller.
type Options struct {
	// Dir is the watched directory. It must exist when Run starts.
	Dir string
	// Sender is the From address of every dispatched notification.
	Sender string
	// Interval is the pause between scans.
	Interval time.Duration
	// Watch wakes the loop early when files in Dir are created or written.
	Watch bool
	// Settle is how long a file must go unmodified before it is treated as a
	// complete job. Younger files are left for a later pass. Zero disables the
	// check.
	Settle time.Duration
}

// defaultDebounce is the quiet period after a watch event when Settle is zero.
const defaultDebounce = 50 * time.Millisecond

// Poller is the notification loop. Run drives it; Stop may be called from any
// goroutine, including a signal handler.
type Poller struct {
	opts  Options
	users UserSource
	dir   dispatch.Directory
	mail  dispatch.MailSender

	stop  atomic.Bool
	state atomic.Int32
	wake  chan struct{}

	// pending is set when the last pass left files that had not settled
	pending bool
	// skipped remembers non-job entries already reported, so each is logged once
	skipped map[string]struct{}

	Now func() time.Time // injectable clock for testing
}

// New creates a poller in the Running state.
func New(opts Options, users UserSource, dir dispatch.Directory, mail dispatch.MailSender) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	p := &Poller{
		opts:    opts,
		users:   users,
		dir:     dir,
		mail:    mail,
		wake:    make(chan struct{}, 1),
		skipped: make(map[string]struct{}),
		Now:     time.Now,
	}
	p.state.Store(int32(Running))
	return p
}

// State returns the current loop state.
func (p *Poller) State() State {
	return State(p.state.Load())
}

// Stop asks the loop to finish its current iteration and exit. It only flips
// a flag and nudges the sleeper, so it is safe to call from a signal path.
func (p *Poller) Stop() {
	p.stop.Store(true)
	p.state.CompareAndSwap(int32(Running), int32(Stopping))
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Poller) stopRequested(ctx context.Context) bool {
	return p.stop.Load() || ctx.Err() != nil
}

// Run scans the directory until Stop is called or ctx is done, and returns
// nil on a graceful stop. A missing directory or any failure to read or
// remove a job file is a storage error and ends the loop.
//
// Cancelling ctx ends the loop at the next iteration boundary but does not
// abort sends already in flight; a job that was started is always finished.
func (p *Poller) Run(ctx context.Context) error {
	defer p.state.Store(int32(Stopped))

	if err := checkDir(p.opts.Dir); err != nil {
		return err
	}
	events, closeWatch := p.watch()
	defer closeWatch()

	log := logging.Get().With().Str("dir", p.opts.Dir).Logger()
	log.Info().Dur("interval", p.opts.Interval).Bool("watch", events != nil).Msg("starting notification poller")

	jobCtx := context.WithoutCancel(ctx)
	for !p.stopRequested(ctx) {
		if _, err := p.PollOnce(jobCtx); err != nil {
			log.Error().Err(err).Msg("poll iteration failed, stopping")
			return err
		}
		p.sleep(ctx, events)
	}
	log.Info().Msg("notification poller stopped")
	return nil
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Storage(errors.WithHint(err, "create the directory or point NOTIFIER_NOTIFICATION_DIR at an existing one"), "notification dir %s", dir)
	}
	if !info.IsDir() {
		return errors.Storage(errors.Newf("%s is not a directory", dir), "notification dir")
	}
	return nil
}

// PollOnce runs one iteration: every regular file currently in the directory
// (directly or through a symlink) is read, dispatched and removed, in name
// order. Files modified within the settle period are left for a later pass.
// It returns the number of jobs processed.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(p.opts.Dir)
	if err != nil {
		return 0, errors.Storage(err, "list notification dir %s", p.opts.Dir)
	}
	now := p.Now()
	metrics.SetLastPoll(now)

	p.pending = false
	processed := 0
	for _, e := range entries {
		info, ok := p.jobInfo(e)
		if !ok {
			continue
		}
		if p.opts.Settle > 0 && now.Sub(info.ModTime()) < p.opts.Settle {
			logging.Get().Debug().Str("file", e.Name()).Msg("notification file still being written, leaving it for the next pass")
			p.pending = true
			continue
		}
		done, err := p.processJob(ctx, e.Name())
		if err != nil {
			return processed, err
		}
		if done {
			processed++
		}
	}
	return processed, nil
}

// jobInfo reports whether a directory entry is a job and returns its file
// info. Symlinks are followed. Directories are ignored silently; any other
// entry that is not a regular file is logged once and left in place.
func (p *Poller) jobInfo(e fs.DirEntry) (fs.FileInfo, bool) {
	if e.IsDir() {
		return nil, false
	}
	var (
		info fs.FileInfo
		err  error
	)
	if e.Type()&fs.ModeSymlink != 0 {
		info, err = os.Stat(filepath.Join(p.opts.Dir, e.Name()))
	} else {
		info, err = e.Info()
	}
	if err == nil && info.Mode().IsRegular() {
		delete(p.skipped, e.Name())
		return info, true
	}
	if os.IsNotExist(err) && e.Type()&fs.ModeSymlink == 0 {
		// removed between listing and stat
		return nil, false
	}
	if _, seen := p.skipped[e.Name()]; !seen {
		p.skipped[e.Name()] = struct{}{}
		ev := logging.Get().Warn().Str("file", filepath.Join(p.opts.Dir, e.Name())).Str("mode", e.Type().String())
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Msg("entry is not a regular file, skipping it")
	}
	return nil, false
}

// processJob handles one notification file. It reports false without error
// when the file disappeared before it could be read.
func (p *Poller) processJob(ctx context.Context, name string) (bool, error) {
	path := filepath.Join(p.opts.Dir, name)
	log := logging.Get().With().Str("job", uuid.NewString()).Str("file", path).Logger()

	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Msg("notification file vanished before it was read, skipping")
			return false, nil
		}
		return false, errors.Storage(err, "read notification %s", path)
	}

	results := dispatch.Dispatch(ctx, p.opts.Sender, name, string(body), p.users.List(), p.dir, p.mail)

	// the job is consumed once every active user was attempted, whatever the outcomes
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return false, errors.Storage(err, "remove notification %s", path)
	}
	metrics.IncJobProcessed()

	sum := dispatch.Summarize(results)
	ev := log.Info()
	if sum.Failed > 0 || sum.Unresolved > 0 {
		ev = log.Warn()
	}
	ev.Str("subject", name).Int("sent", sum.Sent).Int("unresolved", sum.Unresolved).Int("failed", sum.Failed).Msg("notification job processed")
	return true, nil
}

// sleep waits for the poll interval, a Stop, ctx cancellation, or a settled
// watch event, whichever comes first. When the last pass left unsettled files
// the wait is capped at the settle period.
func (p *Poller) sleep(ctx context.Context, events <-chan struct{}) {
	d := p.opts.Interval
	if p.pending && p.opts.Settle < d {
		d = p.opts.Settle
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.wake:
	case <-ctx.Done():
	case <-events:
	}
}

// watch starts an fsnotify watcher on the directory when enabled. Create and
// write events are debounced: the returned channel receives a token once the
// directory has been quiet for the settle period, so a producer still writing
// a file does not trigger a scan. The channel is nil when watching is disabled
// or unavailable, and the loop falls back to plain interval polling.
func (p *Poller) watch() (<-chan struct{}, func()) {
	noop := func() {}
	if !p.opts.Watch {
		return nil, noop
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Get().Warn().Err(err).Msg("fsnotify unavailable, using interval polling only")
		return nil, noop
	}
	if err := w.Add(p.opts.Dir); err != nil {
		_ = w.Close()
		logging.Get().Warn().Err(err).Str("dir", p.opts.Dir).Msg("cannot watch notification dir, using interval polling only")
		return nil, noop
	}

	quiet := p.opts.Settle
	if quiet <= 0 {
		quiet = defaultDebounce
	}
	ch := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		debounce := time.NewTimer(quiet)
		debounce.Stop()
		defer debounce.Stop()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
					debounce.Reset(quiet)
				}
			case <-debounce.C:
				select {
				case ch <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logging.Get().Warn().Err(err).Msg("fsnotify error")
			case <-done:
				return
			}
		}
	}()
	return ch, func() {
		close(done)
		_ = w.Close()
	}
}
