package watcher

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"github.com/taskrelay/relay/internal/lock"
	"github.com/taskrelay/relay/internal/logging"
	"github.com/taskrelay/relay/internal/model"
)

// Daemon runs the watcher continuously: a periodic ticker plus fsnotify
// events on the output area, with each trigger collapsed through
// singleflight so bursts of artifact writes cost one poll. The daemon
// holds an exclusive file lock for its lifetime, making it the single
// writer of the queue index while it runs.
type Daemon struct {
	cfg     model.Config
	paths   model.Paths
	watcher *Watcher
	log     *logging.Logger

	fileLock *lock.FileLock
	fsw      *fsnotify.Watcher
	ticker   *time.Ticker
	polls    singleflight.Group

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutdown sync.Once
}

func NewDaemon(cfg model.Config, paths model.Paths, w *Watcher, lg *logging.Logger) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())

	interval := cfg.Watcher.PollIntervalSec
	if interval <= 0 {
		interval = 5
	}

	return &Daemon{
		cfg:      cfg,
		paths:    paths,
		watcher:  w,
		log:      lg.WithTag("daemon"),
		fileLock: lock.NewFileLock(filepath.Join(paths.Locks, "relay.lock")),
		ticker:   time.NewTicker(time.Duration(interval) * time.Second),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Run starts the daemon and blocks until shutdown completes.
func (d *Daemon) Run() error {
	if err := d.fileLock.TryLock(); err != nil {
		return fmt.Errorf("daemon lock: %w", err)
	}
	d.log.Infof("daemon starting pid=%d", os.Getpid())

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		d.fileLock.Unlock()
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	d.fsw = fsw

	if err := os.MkdirAll(d.paths.Output, 0755); err != nil {
		d.cleanup()
		return fmt.Errorf("ensure output dir: %w", err)
	}
	if err := fsw.Add(d.paths.Output); err != nil {
		d.cleanup()
		return fmt.Errorf("watch %s: %w", d.paths.Output, err)
	}

	d.wg.Add(2)
	go d.fsnotifyLoop()
	go d.tickerLoop()

	d.triggerPoll()
	d.log.Infof("daemon ready, watching %s", d.paths.Output)

	d.waitSignals()
	return nil
}

// triggerPoll runs one poll cycle; concurrent triggers share a single
// execution.
func (d *Daemon) triggerPoll() {
	_, err, _ := d.polls.Do("poll", func() (any, error) {
		return d.watcher.PollOnce()
	})
	if err != nil {
		d.log.Errorf("poll: %v", err)
	}
}

func (d *Daemon) fsnotifyLoop() {
	defer d.wg.Done()

	debounce := time.Duration(d.cfg.Watcher.DebounceMs) * time.Millisecond
	var timer *time.Timer

	for {
		select {
		case <-d.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-d.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				d.log.Debugf("fsnotify event=%s file=%s", event.Op, event.Name)
				// Debounce: a burst of writes schedules one poll.
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, d.triggerPoll)
			}
		case err, ok := <-d.fsw.Errors:
			if !ok {
				return
			}
			d.log.Errorf("fsnotify error=%v", err)
		}
	}
}

func (d *Daemon) tickerLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-d.ticker.C:
			d.log.Debugf("periodic poll triggered")
			d.triggerPoll()
		}
	}
}

func (d *Daemon) waitSignals() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	d.log.Infof("received signal=%s, initiating graceful shutdown", sig)

	// Second signal forces exit
	go func() {
		<-sigCh
		d.log.Warnf("received second signal, forcing exit")
		os.Exit(1)
	}()

	d.Shutdown()
}

// Shutdown performs graceful shutdown (idempotent via sync.Once).
func (d *Daemon) Shutdown() {
	d.shutdown.Do(func() {
		d.log.Infof("shutdown started")

		d.cancel()
		d.ticker.Stop()
		if d.fsw != nil {
			d.fsw.Close()
		}

		timeout := d.cfg.Daemon.ShutdownTimeoutSec
		if timeout <= 0 {
			timeout = 30
		}

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			d.log.Infof("all goroutines drained")
		case <-time.After(time.Duration(timeout) * time.Second):
			d.log.Warnf("shutdown timeout after %ds", timeout)
		}

		d.cleanup()
		d.log.Infof("daemon stopped")
	})
}

func (d *Daemon) cleanup() {
	if d.fsw != nil {
		d.fsw.Close()
	}
	d.fileLock.Unlock()
}
