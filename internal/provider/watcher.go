package provider

import (
	"context"
	"log"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the registry whenever its inventory file changes on disk.
// It blocks until the context is cancelled. A reload that fails to parse
// keeps the previous partitions; the error is logged, not fatal.
func (r *Registry) Watch(ctx context.Context) error {
	path := r.Path()
	if path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			fresh, err := LoadFile(path)
			if err != nil {
				log.Printf("[registry] reload of %s failed: %v", path, err)
				continue
			}
			r.replaceFrom(fresh)
			log.Printf("[registry] reloaded providers from %s", path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[registry] watch error: %v", err)
		}
	}
}
