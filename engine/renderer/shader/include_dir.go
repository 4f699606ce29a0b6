package shader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-zen/engine/logger"
	"github.com/fsnotify/fsnotify"
)

const includeExt = ".wgsl"

// IncludeName returns the registry name used for an include file: its base name without the
// .wgsl extension.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - string: the include name
func IncludeName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), includeExt)
}

// LoadIncludeDir registers every *.wgsl file in dir under its IncludeName. Subdirectories are
// not walked.
//
// Parameters:
//   - reg: the registry to populate
//   - dir: the directory to read
//
// Returns:
//   - []string: the names that were registered
//   - error: error if the directory or a file cannot be read
func LoadIncludeDir(reg IncludeRegistry, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("shader: failed to read include dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != includeExt {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return names, fmt.Errorf("shader: failed to read include %s: %w", path, err)
		}
		name := IncludeName(path)
		reg.Set(name, string(data))
		names = append(names, name)
	}
	logger.Logger().Debug("loaded include dir", "dir", dir, "count", len(names))
	return names, nil
}

// WatchIncludes loads dir into reg and keeps the registry in sync with the directory until ctx
// is cancelled. Created and modified *.wgsl files are re-registered, removed or renamed files
// are deleted from the registry. Pipelines that already exist are not affected; the returned
// channel receives the name of every changed include so callers can rebuild the pipelines they
// care about. The channel is closed when watching stops.
//
// Parameters:
//   - ctx: controls the lifetime of the watcher
//   - reg: the registry to keep in sync
//   - dir: the directory to watch
//
// Returns:
//   - <-chan string: names of changed includes
//   - error: error if the initial load or the watcher setup fails
func WatchIncludes(ctx context.Context, reg IncludeRegistry, dir string) (<-chan string, error) {
	if _, err := LoadIncludeDir(reg, dir); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("shader: failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("shader: failed to watch %s: %w", dir, err)
	}

	changed := make(chan string, 16)
	go func() {
		defer close(changed)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Ext(ev.Name) != includeExt {
					continue
				}
				name := IncludeName(ev.Name)
				switch {
				case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
					reg.Delete(name)
				case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
					data, err := os.ReadFile(ev.Name)
					if err != nil {
						logger.Logger().Warn("failed to reload include", "path", ev.Name, "error", err)
						continue
					}
					reg.Set(name, string(data))
				default:
					continue
				}
				logger.Logger().Debug("include changed", "name", name, "op", ev.Op.String())
				select {
				case changed <- name:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Logger().Warn("include watcher error", "dir", dir, "error", err)
			}
		}
	}()
	return changed, nil
}
