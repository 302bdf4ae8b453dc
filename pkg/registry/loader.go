package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/flowgraph/flowgraph/pkg/graph"
)

// Loader reads graph manifests from disk and registers them.
type Loader struct {
	logger   zerolog.Logger
	registry *GraphRegistry
	watcher  *fsnotify.Watcher
}

// NewLoader creates a manifest loader that registers into registry.
func NewLoader(logger zerolog.Logger, registry *GraphRegistry) *Loader {
	return &Loader{
		logger:   logger.With().Str("component", "manifest-loader").Logger(),
		registry: registry,
	}
}

// LoadFromPaths loads manifests from a list of file or directory paths
// and registers each one. It returns the loaded manifests.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]*graph.Manifest, error) {
	var all []*graph.Manifest

	for _, path := range paths {
		manifests, err := l.loadFromPath(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to load from path %s: %w", path, err)
		}
		all = append(all, manifests...)
	}

	l.logger.Info().
		Int("total", len(all)).
		Int("sources", len(paths)).
		Msg("Manifests loaded from paths")

	return all, nil
}

func (l *Loader) loadFromPath(ctx context.Context, path string) ([]*graph.Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		return l.loadFromDirectory(ctx, path)
	}

	m, err := l.loadFromFile(path)
	if err != nil {
		return nil, err
	}
	return []*graph.Manifest{m}, nil
}

// loadFromDirectory loads all manifest files from a directory
// recursively. Files that fail to parse or register are skipped with a
// warning so one bad manifest does not block the rest.
func (l *Loader) loadFromDirectory(ctx context.Context, dirPath string) ([]*graph.Manifest, error) {
	var manifests []*graph.Manifest

	err := filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		if !isManifestFile(path) {
			return nil
		}

		m, err := l.loadFromFile(path)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Failed to load manifest file")
			return nil
		}

		manifests = append(manifests, m)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return manifests, nil
}

func (l *Loader) loadFromFile(filePath string) (*graph.Manifest, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var m *graph.Manifest
	switch {
	case strings.HasSuffix(filePath, ".yaml"), strings.HasSuffix(filePath, ".yml"):
		m, err = graph.ParseManifestYAML(data)
	case strings.HasSuffix(filePath, ".json"):
		m, err = graph.ParseManifestJSON(data)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filePath)
	}
	if err != nil {
		return nil, err
	}

	if m.GraphID == "" {
		base := filepath.Base(filePath)
		m.GraphID = strings.TrimSuffix(strings.TrimSuffix(base, filepath.Ext(base)), ".")
	}

	if err := l.registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register manifest: %w", err)
	}

	l.logger.Debug().
		Str("path", filePath).
		Str("graph", m.GraphID).
		Msg("Manifest loaded from file")

	return m, nil
}

func isManifestFile(path string) bool {
	return strings.HasSuffix(path, ".yaml") ||
		strings.HasSuffix(path, ".yml") ||
		strings.HasSuffix(path, ".json")
}

// Watch starts watching paths for manifest changes and re-registers
// changed manifests. It returns once the watcher is running.
func (l *Loader) Watch(ctx context.Context, paths []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	l.watcher = watcher

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Failed to stat path for watching")
			continue
		}

		if info.IsDir() {
			if err := l.watchDirectory(path); err != nil {
				l.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch directory")
			}
		} else {
			if err := watcher.Add(path); err != nil {
				l.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch file")
			}
		}
	}

	go l.processEvents(ctx)

	l.logger.Info().
		Int("paths", len(paths)).
		Msg("Started watching manifest paths")

	return nil
}

func (l *Loader) watchDirectory(dirPath string) error {
	return filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return l.watcher.Add(path)
		}
		return nil
	})
}

// processEvents reacts to file events, debouncing bursts of writes so
// editors that save in multiple steps trigger a single reload.
func (l *Loader) processEvents(ctx context.Context) {
	var mu sync.Mutex
	var reloadTimer *time.Timer
	reloadDelay := 500 * time.Millisecond
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			if l.watcher != nil {
				_ = l.watcher.Close()
			}
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !isManifestFile(event.Name) {
				continue
			}

			l.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Manifest file changed")

			mu.Lock()
			pending[event.Name] = struct{}{}
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, func() {
				mu.Lock()
				paths := make([]string, 0, len(pending))
				for path := range pending {
					paths = append(paths, path)
				}
				pending = make(map[string]struct{})
				mu.Unlock()

				for _, path := range paths {
					if _, err := l.loadFromFile(path); err != nil {
						l.logger.Warn().Err(err).Str("path", path).Msg("Failed to reload manifest")
					}
				}
			})
			mu.Unlock()

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// StopWatching stops watching for file changes.
func (l *Loader) StopWatching() error {
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}
