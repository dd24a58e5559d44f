package daemon

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jardins/ghlsync/internal/config"
	"github.com/jardins/ghlsync/internal/logging"
)

const debounceWindow = 2 * time.Second

// PipelineRunner is the subset of the pipeline the daemon drives:
// full runs on the interval, publish-only passes on document changes.
type PipelineRunner interface {
	Run(ctx context.Context) error
	PublishDocuments(ctx context.Context) error
}

// Daemon schedules pipeline runs. A full run executes on every interval
// tick; a document edit triggers a publish-only pass, since the tokens on
// disk are still fresh. Runs never overlap.
type Daemon struct {
	cfg    config.PipelineConfig
	runner PipelineRunner
	logger *logging.Logger

	mu      sync.Mutex
	running bool
}

// New creates a daemon.
func New(cfg config.PipelineConfig, runner PipelineRunner, logger *logging.Logger) *Daemon {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Daemon{cfg: cfg, runner: runner, logger: logger}
}

// Start runs the scheduler until the context is canceled. An initial full
// run executes immediately; its error is returned so a misconfigured
// deployment fails fast instead of ticking in the background.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.fullRun(ctx); err != nil {
		return err
	}

	if d.cfg.WatchDocuments {
		if err := d.watchDocuments(ctx); err != nil {
			d.logger.Warn("document watcher unavailable", "error", err.Error())
		}
	}

	interval := d.cfg.Interval
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := d.fullRun(ctx); err != nil {
				d.logger.Error("scheduled run failed", "error", err.Error())
			}
		}
	}
}

func (d *Daemon) watchDocuments(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	watched := map[string]bool{}
	for _, doc := range d.cfg.Documents {
		dir := filepath.Dir(doc.Path)
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return err
		}
		watched[dir] = true
	}

	paths := map[string]bool{}
	for _, doc := range d.cfg.Documents {
		paths[filepath.Clean(doc.Path)] = true
	}

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !paths[filepath.Clean(event.Name)] {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				// editors fire bursts of events per save; collapse them
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounceWindow, func() {
					d.publishRun(ctx)
				})
			case <-watcher.Errors:
				// the interval run picks up anything the watcher missed
			}
		}
	}()

	return nil
}

func (d *Daemon) fullRun(ctx context.Context) error {
	if !d.tryLock() {
		d.logger.Warn("run already in progress, tick skipped")
		return nil
	}
	defer d.unlock()
	return d.runner.Run(ctx)
}

func (d *Daemon) publishRun(ctx context.Context) {
	if !d.tryLock() {
		d.logger.Warn("run already in progress, publish skipped")
		return
	}
	defer d.unlock()

	d.logger.Info("document change detected, publishing")
	if err := d.runner.PublishDocuments(ctx); err != nil {
		d.logger.Error("publish pass failed", "error", err.Error())
	}
}

func (d *Daemon) tryLock() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return false
	}
	d.running = true
	return true
}

func (d *Daemon) unlock() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}
