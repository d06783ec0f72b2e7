package watch

import (
	"context"
	"log"
	"path/filepath"

	"busboard/internal/config"
	"github.com/fsnotify/fsnotify"
)

// Seeder is what the watcher drives: the app-level operation that
// registers a preset subscriber name.
type Seeder interface {
	Seed(name string)
}

// Watcher monitors the presets file and re-seeds subscribers when it
// changes. Names only ever get added by a reload; removal stays a UI
// operation.
type Watcher struct {
	cfg    config.Config
	seeder Seeder
}

func New(cfg config.Config, seeder Seeder) *Watcher {
	return &Watcher{cfg: cfg, seeder: seeder}
}

// Start seeds the initial presets, then watches the file for changes.
// With no presets path configured it does nothing.
func (w *Watcher) Start(ctx context.Context) error {
	if w.cfg.PresetsPath == "" {
		return nil
	}
	if err := w.reload(); err != nil {
		return err
	}
	if !w.cfg.EnableWatcher {
		log.Println("presets watcher disabled")
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-watcher.Events:
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					if filepath.Clean(evt.Name) == filepath.Clean(w.cfg.PresetsPath) {
						if err := w.reload(); err != nil {
							log.Printf("presets reload: %v", err)
						}
					}
				}
			case err := <-watcher.Errors:
				log.Printf("watcher error: %v", err)
			}
		}
	}()
	// Editors replace files on save, so watch the directory rather
	// than the file itself.
	return watcher.Add(filepath.Dir(w.cfg.PresetsPath))
}

func (w *Watcher) reload() error {
	presets, err := config.LoadPresets(w.cfg.PresetsPath)
	if err != nil {
		return err
	}
	for _, name := range presets.Subscribers {
		w.seeder.Seed(name)
	}
	if len(presets.Subscribers) > 0 {
		log.Printf("presets: seeded %d subscribers", len(presets.Subscribers))
	}
	return nil
}
