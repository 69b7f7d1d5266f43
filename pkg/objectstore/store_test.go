package objectstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

type storeFactory struct {
	name string
	open func(t *testing.T) Store
}

func allStores() []storeFactory {
	return []storeFactory{
		{
			name: "memory",
			open: func(t *testing.T) Store { return NewMemoryStore() },
		},
		{
			name: "sqlite",
			open: func(t *testing.T) Store {
				s, err := NewSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "objects.db")})
				if err != nil {
					t.Fatalf("NewSQLiteStore failed: %v", err)
				}
				return s
			},
		},
		{
			name: "file",
			open: func(t *testing.T) Store {
				s, err := NewFileStore(FileConfig{Root: t.TempDir()})
				if err != nil {
					t.Fatalf("NewFileStore failed: %v", err)
				}
				return s
			},
		},
		{
			name: "file-zstd",
			open: func(t *testing.T) Store {
				s, err := NewFileStore(FileConfig{Root: t.TempDir(), Compress: true})
				if err != nil {
					t.Fatalf("NewFileStore failed: %v", err)
				}
				return s
			},
		},
	}
}

func TestStore_PutGetDelete(t *testing.T) {
	for _, f := range allStores() {
		t.Run(f.name, func(t *testing.T) {
			store := f.open(t)
			defer store.Close()
			ctx := context.Background()

			payload := []byte(`{"trace_id":"abc"}`)
			obj, err := store.Put(ctx, "sessions/s1/traces/0001.json", payload)
			if err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if obj.ETag != ComputeETag(payload) {
				t.Errorf("Expected etag %s, got %s", ComputeETag(payload), obj.ETag)
			}

			data, meta, err := store.Get(ctx, "sessions/s1/traces/0001.json")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if string(data) != string(payload) {
				t.Errorf("Expected %q, got %q", payload, data)
			}
			if meta.ETag != obj.ETag {
				t.Errorf("Expected etag %s on get, got %s", obj.ETag, meta.ETag)
			}

			if err := store.Delete(ctx, "sessions/s1/traces/0001.json"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			_, _, err = store.Get(ctx, "sessions/s1/traces/0001.json")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound after delete, got %v", err)
			}

			// Deleting again is not an error.
			if err := store.Delete(ctx, "sessions/s1/traces/0001.json"); err != nil {
				t.Errorf("Expected no error deleting missing key, got %v", err)
			}
		})
	}
}

func TestStore_Overwrite(t *testing.T) {
	for _, f := range allStores() {
		t.Run(f.name, func(t *testing.T) {
			store := f.open(t)
			defer store.Close()
			ctx := context.Background()

			if _, err := store.Put(ctx, "continuous/2024-01-01/a.json", []byte("one")); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if _, err := store.Put(ctx, "continuous/2024-01-01/a.json", []byte("two")); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			data, _, err := store.Get(ctx, "continuous/2024-01-01/a.json")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if string(data) != "two" {
				t.Errorf("Expected overwritten value, got %q", data)
			}

			page, err := store.List(ctx, ListOptions{Prefix: "continuous/"})
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(page.Objects) != 1 {
				t.Errorf("Expected 1 object after overwrite, got %d", len(page.Objects))
			}
		})
	}
}

func TestStore_ListPrefixAndPaging(t *testing.T) {
	for _, f := range allStores() {
		t.Run(f.name, func(t *testing.T) {
			store := f.open(t)
			defer store.Close()
			ctx := context.Background()

			for i := 0; i < 5; i++ {
				key := fmt.Sprintf("continuous/2024-01-0%d/batch.json", i+1)
				if _, err := store.Put(ctx, key, []byte("x")); err != nil {
					t.Fatalf("Put failed: %v", err)
				}
			}
			if _, err := store.Put(ctx, "sessions/s1/metadata.json", []byte("{}")); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			page, err := store.List(ctx, ListOptions{Prefix: ContinuousPrefix, MaxKeys: 2})
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(page.Objects) != 2 || !page.Truncated {
				t.Fatalf("Expected truncated page of 2, got %d (truncated=%v)", len(page.Objects), page.Truncated)
			}
			if page.Objects[0].Key != "continuous/2024-01-01/batch.json" {
				t.Errorf("Expected keys in order, got %s first", page.Objects[0].Key)
			}

			var all []string
			token := ""
			for {
				p, err := store.List(ctx, ListOptions{Prefix: ContinuousPrefix, MaxKeys: 2, StartAfter: token})
				if err != nil {
					t.Fatalf("List failed: %v", err)
				}
				for _, o := range p.Objects {
					all = append(all, o.Key)
				}
				if !p.Truncated {
					break
				}
				token = p.NextToken
			}
			if len(all) != 5 {
				t.Errorf("Expected 5 continuous keys across pages, got %d: %v", len(all), all)
			}
		})
	}
}

func TestStore_ListLiteralPrefix(t *testing.T) {
	for _, f := range allStores() {
		t.Run(f.name, func(t *testing.T) {
			store := f.open(t)
			defer store.Close()
			ctx := context.Background()

			store.Put(ctx, "sessions/a_b/metadata.json", []byte("{}"))
			store.Put(ctx, "sessions/axb/metadata.json", []byte("{}"))

			page, err := store.List(ctx, ListOptions{Prefix: "sessions/a_b/"})
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(page.Objects) != 1 {
				t.Errorf("Expected underscore to match literally, got %d objects", len(page.Objects))
			}
		})
	}
}

func TestFileStore_ListVisitsOnlyPrefix(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		continuous int
	}{
		{name: "small continuous tree", continuous: 10},
		{name: "large continuous tree", continuous: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewFileStore(FileConfig{Root: t.TempDir()})
			if err != nil {
				t.Fatalf("NewFileStore failed: %v", err)
			}
			defer store.Close()

			for i := 0; i < tt.continuous; i++ {
				key := fmt.Sprintf("continuous/2024-01-%02d/%05d.json", i%28+1, i)
				if _, err := store.Put(ctx, key, []byte("x")); err != nil {
					t.Fatalf("Put failed: %v", err)
				}
			}
			for i := 0; i < 3; i++ {
				if _, err := store.Put(ctx, fmt.Sprintf("sessions/s%d/metadata.json", i), []byte("{}")); err != nil {
					t.Fatalf("Put failed: %v", err)
				}
			}

			l, err := store.list(ctx, ListOptions{Prefix: SessionsPrefix, MaxKeys: 1})
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if len(l.objects) != 2 {
				t.Errorf("Expected walk to stop after 2 objects, got %d", len(l.objects))
			}
			// sessions/ holds s0 and s1 before the page fills.
			if l.visited > 4 {
				t.Errorf("Expected at most 4 entries visited, got %d", l.visited)
			}
		})
	}
}

func TestFileStore_ListKeyOrder(t *testing.T) {
	keys := []string{
		"a/b",
		"a.txt",
		"a-c/d",
		"ab",
		"a/a/z",
		"b",
	}
	want := []string{"a-c/d", "a.txt", "a/a/z", "a/b", "ab", "b"}

	for _, compress := range []bool{false, true} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			store, err := NewFileStore(FileConfig{Root: t.TempDir(), Compress: compress})
			if err != nil {
				t.Fatalf("NewFileStore failed: %v", err)
			}
			defer store.Close()
			ctx := context.Background()

			for _, k := range keys {
				if _, err := store.Put(ctx, k, []byte("x")); err != nil {
					t.Fatalf("Put %s failed: %v", k, err)
				}
			}

			var got []string
			token := ""
			for {
				page, err := store.List(ctx, ListOptions{MaxKeys: 2, StartAfter: token})
				if err != nil {
					t.Fatalf("List failed: %v", err)
				}
				for _, o := range page.Objects {
					got = append(got, o.Key)
				}
				if !page.Truncated {
					break
				}
				token = page.NextToken
			}

			if fmt.Sprint(got) != fmt.Sprint(want) {
				t.Errorf("Expected keys %v, got %v", want, got)
			}
		})
	}
}

func TestListBounded(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 2500; i++ {
		store.Put(ctx, fmt.Sprintf("continuous/2024-01-01/%05d.json", i), []byte("x"))
	}

	tests := []struct {
		name          string
		limit         int
		wantCount     int
		wantTruncated bool
	}{
		{name: "below total", limit: 1200, wantCount: 1200, wantTruncated: true},
		{name: "exact page", limit: 1000, wantCount: 1000, wantTruncated: true},
		{name: "above total", limit: 5000, wantCount: 2500, wantTruncated: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			objects, truncated, err := ListBounded(ctx, store, ContinuousPrefix, tt.limit)
			if err != nil {
				t.Fatalf("ListBounded failed: %v", err)
			}
			if len(objects) != tt.wantCount {
				t.Errorf("Expected %d objects, got %d", tt.wantCount, len(objects))
			}
			if truncated != tt.wantTruncated {
				t.Errorf("Expected truncated=%v, got %v", tt.wantTruncated, truncated)
			}
		})
	}

	if _, _, err := ListBounded(ctx, store, ContinuousPrefix, 0); err == nil {
		t.Error("Expected error for zero limit")
	}
}

func TestListBounded_NeverOverfetches(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3000; i++ {
		store.Put(ctx, fmt.Sprintf("sessions/s%05d/metadata.json", i), []byte("{}"))
	}

	if _, _, err := ListBounded(ctx, store, SessionsPrefix, 1500); err != nil {
		t.Fatalf("ListBounded failed: %v", err)
	}

	_, listed := store.ListStats()
	if listed != 1500 {
		t.Errorf("Expected exactly 1500 objects fetched, got %d", listed)
	}
}

func TestFileStore_RejectsInvalidKeys(t *testing.T) {
	store, err := NewFileStore(FileConfig{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"", "/abs", "../escape", "a//b", "a/./b", "dir/", "x.zst"} {
		if _, err := store.Put(ctx, key, []byte("x")); err == nil {
			t.Errorf("Expected error for key %q", key)
		}
	}
}

func TestMemoryStore_DeleteHook(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Put(ctx, "k", []byte("v"))

	store.SetDeleteHook(func(key string) error { return errors.New("boom") })
	err := store.Delete(ctx, "k")
	if err == nil {
		t.Fatal("Expected delete error from hook")
	}
	if !IsRetryable(err) {
		t.Error("Expected hook failure to be retryable")
	}
	if !store.Has("k") {
		t.Error("Expected object to survive failed delete")
	}
}
