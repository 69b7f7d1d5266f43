package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const zstdSuffix = ".zst"

// FileConfig configures the filesystem object store.
type FileConfig struct {
	// Root is the directory that holds all objects.
	Root string

	// Compress stores objects zstd-compressed with a ".zst" suffix.
	// Keys are unaffected; compression is transparent to callers.
	Compress bool
}

// FileStore implements Store on a local directory tree. Keys map to
// slash-separated relative paths under Root.
//
// Object sizes reported by List are sizes at rest, so a compressed store
// reports compressed sizes. List does not populate ETag.
type FileStore struct {
	root     string
	compress bool
	logger   *slog.Logger

	encOnce sync.Once
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	codecMu sync.Mutex
	codeErr error
}

// NewFileStore creates a filesystem store rooted at cfg.Root, creating the
// directory if needed.
func NewFileStore(cfg FileConfig) (*FileStore, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("root directory cannot be empty")
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, NewStorageError("file", "open", "", false, err)
	}

	s := &FileStore{
		root:     cfg.Root,
		compress: cfg.Compress,
		logger:   slog.Default().With("component", "objectstore.file"),
	}
	s.logger.Info("file object store initialized", "root", cfg.Root, "compress", cfg.Compress)
	return s, nil
}

func (s *FileStore) codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	s.encOnce.Do(func() {
		s.enc, s.codeErr = zstd.NewWriter(nil)
		if s.codeErr != nil {
			return
		}
		s.dec, s.codeErr = zstd.NewReader(nil)
	})
	return s.enc, s.dec, s.codeErr
}

// pathFor maps key to its plain on-disk path.
func (s *FileStore) pathFor(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key cannot be empty")
	}
	if strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("invalid key %q", key)
		}
	}
	if strings.HasSuffix(key, zstdSuffix) {
		return "", fmt.Errorf("key %q uses reserved suffix %s", key, zstdSuffix)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// errPageFull stops a listing walk once it holds enough keys.
var errPageFull = errors.New("list page full")

// fileLister walks the store in key order, skipping subtrees outside the
// prefix or at or before StartAfter, and stops after limit objects.
type fileLister struct {
	opts    ListOptions
	limit   int
	objects []Object

	// visited counts directory entries examined.
	visited int
}

// listEntry is a directory entry with the key component it sorts by:
// directory names carry a trailing slash and compressed files lose their
// suffix, so sorting by component is sorting by key.
type listEntry struct {
	entry     fs.DirEntry
	component string
}

// List returns one page of objects under opts.Prefix in key order. The walk
// starts at the prefix's directory and stops one object past the page size,
// so its cost is bounded by the page, not by the size of the store.
func (s *FileStore) List(ctx context.Context, opts ListOptions) (*ListPage, error) {
	l, err := s.list(ctx, opts)
	if err != nil {
		return nil, NewStorageError("file", "list", "", true, err)
	}

	max := pageSize(opts)
	page := &ListPage{Objects: l.objects}
	if len(l.objects) > max {
		page.Objects = l.objects[:max]
		page.Truncated = true
		page.NextToken = page.Objects[max-1].Key
	}
	return page, nil
}

func (s *FileStore) list(ctx context.Context, opts ListOptions) (*fileLister, error) {
	l := &fileLister{opts: opts, limit: pageSize(opts) + 1}

	base := opts.Prefix[:strings.LastIndex(opts.Prefix, "/")+1]
	err := l.walk(ctx, filepath.Join(s.root, filepath.FromSlash(base)), base)
	if err != nil && !errors.Is(err, errPageFull) {
		return nil, err
	}
	return l, nil
}

func (l *fileLister) walk(ctx context.Context, dir, keyPrefix string) error {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	entries := make([]listEntry, 0, len(dirEntries))
	for _, d := range dirEntries {
		name := d.Name()
		switch {
		case strings.HasPrefix(name, ".tmp-"):
		case d.IsDir():
			entries = append(entries, listEntry{entry: d, component: name + "/"})
		default:
			entries = append(entries, listEntry{entry: d, component: strings.TrimSuffix(name, zstdSuffix)})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].component < entries[j].component })

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.visited++

		key := keyPrefix + e.component
		if e.entry.IsDir() {
			if !l.wantsDir(key) {
				continue
			}
			if err := l.walk(ctx, filepath.Join(dir, e.entry.Name()), key); err != nil {
				return err
			}
			continue
		}

		if !strings.HasPrefix(key, l.opts.Prefix) || key <= l.opts.StartAfter {
			continue
		}
		info, err := e.entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		l.objects = append(l.objects, Object{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		if len(l.objects) >= l.limit {
			return errPageFull
		}
	}
	return nil
}

// wantsDir reports whether the subtree whose keys start with dirKey can hold
// keys in the listing.
func (l *fileLister) wantsDir(dirKey string) bool {
	if !strings.HasPrefix(dirKey, l.opts.Prefix) && !strings.HasPrefix(l.opts.Prefix, dirKey) {
		return false
	}
	// Every key under dirKey sorts before StartAfter.
	if dirKey < l.opts.StartAfter && !strings.HasPrefix(l.opts.StartAfter, dirKey) {
		return false
	}
	return true
}

// Get returns the content and descriptor of key.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, *Object, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return nil, nil, NewStorageError("file", "get", key, false, err)
	}

	compressed := false
	info, err := os.Stat(path + zstdSuffix)
	if err == nil {
		compressed = true
		path += zstdSuffix
	} else {
		info, err = os.Stat(path)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, NewStorageError("file", "get", key, false, ErrNotFound)
	}
	if err != nil {
		return nil, nil, NewStorageError("file", "get", key, true, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, NewStorageError("file", "get", key, true, err)
	}

	data := raw
	if compressed {
		_, dec, err := s.codecs()
		if err != nil {
			return nil, nil, NewStorageError("file", "get", key, false, err)
		}
		s.codecMu.Lock()
		data, err = dec.DecodeAll(raw, nil)
		s.codecMu.Unlock()
		if err != nil {
			return nil, nil, NewStorageError("file", "get", key, false, fmt.Errorf("decompress: %w", err))
		}
	}

	return data, &Object{
		Key:          key,
		Size:         info.Size(),
		LastModified: info.ModTime(),
		ETag:         ComputeETag(data),
	}, nil
}

// Put stores data under key atomically (write to temp file, then rename).
func (s *FileStore) Put(ctx context.Context, key string, data []byte) (*Object, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return nil, NewStorageError("file", "put", key, false, err)
	}

	payload := data
	target, stale := path, path+zstdSuffix
	if s.compress {
		enc, _, err := s.codecs()
		if err != nil {
			return nil, NewStorageError("file", "put", key, false, err)
		}
		s.codecMu.Lock()
		payload = enc.EncodeAll(data, nil)
		s.codecMu.Unlock()
		target, stale = path+zstdSuffix, path
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, NewStorageError("file", "put", key, true, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return nil, NewStorageError("file", "put", key, true, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, NewStorageError("file", "put", key, true, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, NewStorageError("file", "put", key, true, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return nil, NewStorageError("file", "put", key, true, err)
	}

	// A key has at most one representation on disk.
	if err := os.Remove(stale); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("failed to remove stale object variant", "key", key, "error", err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, NewStorageError("file", "put", key, true, err)
	}

	return &Object{
		Key:          key,
		Size:         info.Size(),
		LastModified: info.ModTime(),
		ETag:         ComputeETag(data),
	}, nil
}

// Delete removes key and prunes empty parent directories. Missing keys are
// ignored.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	path, err := s.pathFor(key)
	if err != nil {
		return NewStorageError("file", "delete", key, false, err)
	}

	for _, p := range []string{path, path + zstdSuffix} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return NewStorageError("file", "delete", key, true, err)
		}
	}

	s.pruneEmptyDirs(filepath.Dir(path))
	return nil
}

func (s *FileStore) pruneEmptyDirs(dir string) {
	root := filepath.Clean(s.root)
	for dir != root && strings.HasPrefix(dir, root) {
		// os.Remove fails on non-empty directories, which ends the walk.
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// Close releases the compression codecs.
func (s *FileStore) Close() error {
	s.codecMu.Lock()
	defer s.codecMu.Unlock()

	if s.enc != nil {
		s.enc.Close()
	}
	if s.dec != nil {
		s.dec.Close()
	}
	return nil
}
