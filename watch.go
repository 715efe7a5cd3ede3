package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchSettle is how long a dropped file must sit unchanged before it is
// ingested. Exports copied over SFTP arrive as a burst of partial writes.
const watchSettle = 2 * time.Second

// WatchDropDir ingests CSV files dropped into dir as replacement working
// datasets. Create and write events are debounced per path so each export
// is read once, after the copy finishes. Blocks until ctx is cancelled.
func WatchDropDir(ctx context.Context, dir string, srv *Server, p FilterParams) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating watch dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	log.Printf("watch started dir=%s", dir)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".csv") {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error err=%v", err)

		case <-ticker.C:
			now := time.Now()
			for path, last := range pending {
				if now.Sub(last) < watchSettle {
					continue
				}
				delete(pending, path)
				ingestDroppedFile(srv, path, p)
			}
		}
	}
}

// ingestDroppedFile loads one settled file and swaps it in. A file deleted
// between the event and the settle window is not an error.
func ingestDroppedFile(srv *Server, path string, p FilterParams) {
	raw, err := ReadTableFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		log.Printf("watch ingest failed file=%s err=%v", path, err)
		return
	}
	srv.SetDataset(BuildDataset(filepath.Base(path), "watch", raw, p))
}
