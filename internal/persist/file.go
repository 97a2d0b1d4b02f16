package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/tabstore/internal/ir"
)

const defaultWatchDebounce = 50 * time.Millisecond

// FileBackend keeps content in a JSON file as the canonical
// [tables, values] array. It implements Watcher.
type FileBackend struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewFileBackend returns a backend for the JSON file at path. The file is
// created by the first Write.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{
		path:     path,
		debounce: defaultWatchDebounce,
		logger:   slog.Default(),
	}
}

// Name implements Backend.
func (b *FileBackend) Name() string { return string(KindFile) }

// Path returns the file path.
func (b *FileBackend) Path() string { return b.path }

// Read implements Backend. A missing file reports false.
func (b *FileBackend) Read(ctx context.Context) (ir.Content, bool, error) {
	if err := ctx.Err(); err != nil {
		return ir.Content{}, false, newError(ErrCodeLoadFailed, b.Name(), err)
	}
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return ir.Content{}, false, nil
	}
	if err != nil {
		return ir.Content{}, false, newError(ErrCodeLoadFailed, b.Name(), err)
	}
	doc, err := ir.ParseJSON(data)
	if err != nil {
		return ir.Content{}, false, newError(ErrCodeDecodeFailed, b.Name(), err)
	}
	content, err := decodeContent(doc)
	if err != nil {
		return ir.Content{}, false, newError(ErrCodeDecodeFailed, b.Name(), err)
	}
	return content, true, nil
}

// Write implements Backend. The file is replaced atomically through a
// temporary file in the same directory.
func (b *FileBackend) Write(ctx context.Context, content ir.Content) error {
	if err := ctx.Err(); err != nil {
		return newError(ErrCodeSaveFailed, b.Name(), err)
	}
	data, err := ir.MarshalCanonical(content)
	if err != nil {
		return newError(ErrCodeSaveFailed, b.Name(), err)
	}
	if err := writeFileAtomic(b.path, data); err != nil {
		return newError(ErrCodeSaveFailed, b.Name(), err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Watch implements Watcher. The directory is watched rather than the file
// so that atomic replacements are seen. Bursts of events within the
// debounce interval produce a single onChange call.
func (b *FileBackend) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(b.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(b.path), err)
	}
	b.mu.Lock()
	b.watcher = watcher
	b.mu.Unlock()

	go b.watch(ctx, watcher, onChange)
	return nil
}

func (b *FileBackend) watch(ctx context.Context, watcher *fsnotify.Watcher, onChange func()) {
	defer watcher.Close()
	target := filepath.Clean(b.path)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			b.logger.Debug("content file changed", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.AfterFunc(b.debounce, onChange)
			} else {
				timer.Reset(b.debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			b.logger.Error("watcher error", "path", b.path, "error", err)
		case <-ctx.Done():
			return
		}
	}
}

// Close implements Backend. It stops a running watch.
func (b *FileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.watcher == nil {
		return nil
	}
	err := b.watcher.Close()
	b.watcher = nil
	return err
}
