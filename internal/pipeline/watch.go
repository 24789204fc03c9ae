package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/backmassage/imgshift/internal/registry"
)

// Watcher turns a directory into a drop target. Files created or written in
// Dir are collected until no event arrives for Debounce; the settled group
// then replaces the registry selection and is saved. Batches run one at a
// time on the Run goroutine.
type Watcher struct {
	Dir      string
	Debounce time.Duration
	Registry *registry.Registry
	Sort     registry.SortKey
	Request  Request
	Deps     Deps

	// OnBatch, if set, receives the result of every saved batch.
	OnBatch func(Outcome, error)
}

// Run watches until ctx is cancelled. Drops still settling at that point are
// discarded.
func (w *Watcher) Run(ctx context.Context) error {
	if w.Registry == nil {
		return errors.New("watcher needs a registry")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.Dir, err)
	}

	log := w.Deps.withDefaults().Log
	log.Info("Watching %s", w.Dir)

	timer := time.NewTimer(w.Debounce)
	timer.Stop()
	var pending []string

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !registry.AllowedExtension(filepath.Ext(ev.Name)) {
				continue
			}
			if !slices.Contains(pending, ev.Name) {
				pending = append(pending, ev.Name)
			}
			timer.Reset(w.Debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("Watcher: %v", err)

		case <-timer.C:
			batch := pending
			pending = nil
			w.save(ctx, batch)
		}
	}
}

func (w *Watcher) save(ctx context.Context, paths []string) {
	log := w.Deps.withDefaults().Log

	w.Registry.SetSelection(paths)
	if err := w.Registry.Sort(w.Sort); err != nil {
		log.Warn("Sort: %v", err)
	}
	files := w.Registry.Files()
	if len(files) == 0 {
		log.Debug(w.Request.Verbose, "Ignoring drop with no readable images")
		return
	}

	outcome, err := SaveAll(ctx, files, w.Request, w.Deps)
	// The drop is consumed; the next one starts from an empty selection.
	w.Registry.Clear()
	switch {
	case err == nil:
		outcome.Report(log)
	case errors.Is(err, context.Canceled):
	default:
		log.Error("%v", err)
	}
	if w.OnBatch != nil {
		w.OnBatch(outcome, err)
	}
}
