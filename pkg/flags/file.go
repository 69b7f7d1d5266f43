package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tidwall/jsonc"
)

// FileConfig configures a FileController.
type FileConfig struct {
	// Path is the flag definition file (JSON or JSONC).
	Path string

	// CreateIfMissing writes an empty document when Path does not exist.
	CreateIfMissing bool

	// DebounceInterval is the quiet period before an external edit is
	// reloaded. Default: 100ms
	DebounceInterval time.Duration
}

// FileController implements Controller over a flagd-style definition file.
//
// Reads are served from an in-memory copy of the document. Enable and
// Disable re-read the file, apply the change and replace the file
// atomically, so concurrent external edits are not lost. Comments in a
// JSONC file are not preserved across writes.
type FileController struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	// writeMu serializes read-modify-write cycles against the file.
	writeMu sync.Mutex

	mu  sync.RWMutex
	doc *Document

	watcherMu sync.Mutex
	watcher   *FileWatcher
}

// NewFileController loads the flag file at cfg.Path.
func NewFileController(cfg FileConfig) (*FileController, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("flag file path cannot be empty")
	}

	c := &FileController{
		path:     cfg.Path,
		debounce: cfg.DebounceInterval,
		logger:   slog.Default().With("component", "flags.file"),
	}

	if cfg.CreateIfMissing {
		if _, err := os.Stat(cfg.Path); errors.Is(err, fs.ErrNotExist) {
			if err := c.write(&Document{Flags: map[string]*Flag{}}); err != nil {
				return nil, err
			}
		}
	}

	if err := c.Reload(); err != nil {
		return nil, err
	}

	return c, nil
}

// Reload re-reads the flag file and replaces the cached document.
func (c *FileController) Reload() error {
	doc, err := c.read()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.doc = doc
	c.mu.Unlock()

	c.logger.Debug("flag definitions loaded", "path", c.path, "flag_count", len(doc.Flags))
	return nil
}

// Watch blocks, reloading the document whenever the file changes, until ctx
// is cancelled or Close is called.
func (c *FileController) Watch(ctx context.Context) error {
	fw, err := NewFileWatcher(c.path, c.debounce)
	if err != nil {
		return err
	}

	c.watcherMu.Lock()
	if c.watcher != nil {
		c.watcherMu.Unlock()
		fw.Stop()
		return fmt.Errorf("flag file is already being watched")
	}
	c.watcher = fw
	c.watcherMu.Unlock()

	return fw.Watch(ctx, c.Reload)
}

// Close stops the watcher, if any.
func (c *FileController) Close() error {
	c.watcherMu.Lock()
	fw := c.watcher
	c.watcher = nil
	c.watcherMu.Unlock()

	if fw != nil {
		return fw.Stop()
	}
	return nil
}

func (c *FileController) read() (*Document, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, NewConnectionError("", fmt.Errorf("read %s: %w", c.path, err))
	}

	var doc Document
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, NewInvalidValueError("", fmt.Sprintf("malformed flag file %s: %v", c.path, err))
	}
	if doc.Flags == nil {
		doc.Flags = map[string]*Flag{}
	}
	for name, flag := range doc.Flags {
		if flag == nil {
			return nil, NewInvalidValueError(name, "flag definition is null")
		}
		flag.Name = name
	}

	return &doc, nil
}

// write replaces the flag file atomically (temp file + rename).
func (c *FileController) write(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return NewInvalidValueError("", fmt.Sprintf("encode flag file: %v", err))
	}
	data = append(data, '\n')

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return NewConnectionError("", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return NewConnectionError("", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return NewConnectionError("", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return NewConnectionError("", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return NewConnectionError("", err)
	}

	return nil
}

// update applies fn to the named flag in a fresh copy of the file and
// persists the result.
func (c *FileController) update(ctx context.Context, name string, fn func(*Flag) error) error {
	if err := ctx.Err(); err != nil {
		return NewConnectionError(name, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	doc, err := c.read()
	if err != nil {
		return err
	}

	flag, ok := doc.Flags[name]
	if !ok {
		return NewNotFoundError(name)
	}
	if err := fn(flag); err != nil {
		return err
	}

	if err := c.write(doc); err != nil {
		return err
	}

	c.mu.Lock()
	c.doc = doc
	c.mu.Unlock()

	return nil
}

// Enable points the flag at its "on" variant.
func (c *FileController) Enable(ctx context.Context, name string) error {
	err := c.update(ctx, name, func(f *Flag) error { return setVariant(name, f, VariantOn) })
	if err == nil {
		c.logger.Info("flag enabled", "flag", name)
	}
	return err
}

// Disable points the flag at its "off" variant.
func (c *FileController) Disable(ctx context.Context, name string) error {
	err := c.update(ctx, name, func(f *Flag) error { return setVariant(name, f, VariantOff) })
	if err == nil {
		c.logger.Info("flag disabled", "flag", name)
	}
	return err
}

func (c *FileController) lookup(name string) (*Flag, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	flag, ok := c.doc.Flags[name]
	if !ok {
		return nil, NewNotFoundError(name)
	}
	return flag.Clone(), nil
}

// GetValue returns the boolean value of the flag's default variant.
func (c *FileController) GetValue(ctx context.Context, name string) (bool, error) {
	flag, err := c.lookup(name)
	if err != nil {
		return false, err
	}
	return boolValue(name, flag)
}

// Evaluate resolves the flag for evalCtx.
func (c *FileController) Evaluate(ctx context.Context, name string, evalCtx EvaluationContext) (*Evaluation, error) {
	flag, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	return evaluate(name, flag, evalCtx)
}

// List returns every defined flag, sorted by name.
func (c *FileController) List(ctx context.Context) ([]*Flag, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return sortedFlags(c.doc.Flags), nil
}

var _ Controller = (*FileController)(nil)
