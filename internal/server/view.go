// Package server exposes the index over HTTP: a search endpoint with
// caching and snippets, analytics stats, health probes, and Prometheus
// metrics.
package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/phakpoomachalanan/WebIR/internal/engine"
	"github.com/phakpoomachalanan/WebIR/internal/search"
	"github.com/phakpoomachalanan/WebIR/pkg/logger"
)

// readerGracePeriod is how long a superseded snapshot stays open after a
// swap, letting in-flight searches on it finish.
const readerGracePeriod = 30 * time.Second

// IndexView holds the snapshot the serve path searches, swapping it for a
// fresh one when the index advances on disk.
type IndexView struct {
	dir string
	mu  sync.RWMutex
	rd  *engine.Reader
	s   *search.Searcher
	log *slog.Logger
}

// OpenView opens the current snapshot of dir.
func OpenView(dir string) (*IndexView, error) {
	rd, err := engine.OpenReader(dir)
	if err != nil {
		return nil, err
	}
	return &IndexView{
		dir: dir,
		rd:  rd,
		s:   search.NewSearcher(rd),
		log: logger.WithComponent("server.view"),
	}, nil
}

// Searcher returns the current searcher.
func (v *IndexView) Searcher() *search.Searcher {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.s
}

// Generation returns the manifest generation of the current snapshot.
func (v *IndexView) Generation() int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.rd.Generation()
}

// Refresh swaps in a new snapshot when the on-disk index has advanced past
// the current one. It reports whether a swap happened. The old snapshot is
// closed after a grace period so searches already running on it complete.
func (v *IndexView) Refresh() (bool, error) {
	fresh, err := engine.OpenReader(v.dir)
	if err != nil {
		return false, err
	}
	v.mu.Lock()
	if fresh.Generation() == v.rd.Generation() {
		v.mu.Unlock()
		fresh.Close()
		return false, nil
	}
	old := v.rd
	v.rd = fresh
	v.s = search.NewSearcher(fresh)
	v.mu.Unlock()

	v.log.Info("snapshot refreshed",
		"generation", fresh.Generation(),
		"live_docs", fresh.NumDocs())
	time.AfterFunc(readerGracePeriod, func() { old.Close() })
	return true, nil
}

// Close releases the current snapshot.
func (v *IndexView) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rd.Close()
}
