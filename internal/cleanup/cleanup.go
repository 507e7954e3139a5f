// Package cleanup deletes attachment files that no record references
// anymore. Deletion is asynchronous and best-effort: it runs after the
// triggering transaction commits, failures are logged and never surfaced,
// and a file that is already gone is not an error.
package cleanup

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/partnerdesk/partnerdesk/internal/storage"
)

// Worker drains a bounded queue of public attachment references on a single
// goroutine. Shutdown via Close drains what was already scheduled.
type Worker struct {
	storage storage.Storage
	prefix  string
	jobs    chan string
	wg      sync.WaitGroup
	once    sync.Once
}

// NewWorker starts the worker. prefix is the public URL prefix that turns a
// reference back into a storage path.
func NewWorker(st storage.Storage, prefix string, queueSize int) *Worker {
	w := &Worker{
		storage: st,
		prefix:  prefix,
		jobs:    make(chan string, queueSize),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Schedule enqueues references for deletion without blocking the caller.
// When the queue is full the reference is dropped and logged; orphaned files
// are an accepted cost, never a request failure.
func (w *Worker) Schedule(refs ...string) {
	for _, ref := range refs {
		select {
		case w.jobs <- ref:
		default:
			slog.Warn("cleanup queue full, dropping reference", "ref", ref)
		}
	}
}

// Close stops accepting work and blocks until the queue is drained.
func (w *Worker) Close() {
	w.once.Do(func() {
		close(w.jobs)
	})
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()
	for ref := range w.jobs {
		path, ok := strings.CutPrefix(ref, w.prefix)
		if !ok || path == "" {
			slog.Warn("cleanup: reference outside upload prefix", "ref", ref)
			continue
		}
		err := w.storage.Delete(context.Background(), path)
		switch {
		case err == nil:
			slog.Debug("cleanup: deleted unreferenced file", "path", path)
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("cleanup: file already gone", "path", path)
		default:
			slog.Warn("cleanup: failed to delete file", "path", path, "error", err)
		}
	}
}
