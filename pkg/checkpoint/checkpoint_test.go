package checkpoint

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// storeFactories enumerates the backends that can run without
// external services.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Checkpointer {
	t.Helper()
	return map[string]func(t *testing.T) Checkpointer{
		"memory": func(t *testing.T) Checkpointer {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Checkpointer {
			path := filepath.Join(t.TempDir(), "checkpoints.db")
			store, err := NewSQLiteStore(context.Background(), path, zerolog.Nop())
			if err != nil {
				t.Fatalf("failed to open sqlite store: %v", err)
			}
			return store
		},
	}
}

func TestCheckpointNew(t *testing.T) {
	cp := New("thread-1", "chat", "model", map[string]interface{}{"step": 1})

	if cp.ID == "" {
		t.Error("Expected generated id")
	}
	if cp.ThreadID != "thread-1" || cp.GraphID != "chat" || cp.Node != "model" {
		t.Errorf("Unexpected checkpoint fields: %+v", cp)
	}
	if cp.CreatedAt.IsZero() {
		t.Error("Expected creation time")
	}
}

func TestStorePutGetLatest(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			first := New("t1", "chat", "input", map[string]interface{}{"step": float64(1)})
			if err := store.Put(ctx, first); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			second := New("t1", "chat", "model", map[string]interface{}{"step": float64(2)})
			second.ParentID = first.ID
			second.CreatedAt = first.CreatedAt.Add(time.Second)
			if err := store.Put(ctx, second); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			got, err := store.Get(ctx, "t1", first.ID)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got.Node != "input" {
				t.Errorf("Expected node 'input', got %q", got.Node)
			}
			if got.State["step"] != float64(1) {
				t.Errorf("Expected step=1, got %v", got.State["step"])
			}

			latest, err := store.Latest(ctx, "t1")
			if err != nil {
				t.Fatalf("Latest failed: %v", err)
			}
			if latest.ID != second.ID {
				t.Errorf("Expected latest %q, got %q", second.ID, latest.ID)
			}
			if latest.ParentID != first.ID {
				t.Errorf("Expected parent %q, got %q", first.ID, latest.ParentID)
			}
		})
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			base := time.Now().UTC()
			var ids []string
			for i := 0; i < 3; i++ {
				cp := New("t1", "chat", "n", map[string]interface{}{"i": float64(i)})
				cp.CreatedAt = base.Add(time.Duration(i) * time.Second)
				ids = append(ids, cp.ID)
				if err := store.Put(ctx, cp); err != nil {
					t.Fatalf("Put failed: %v", err)
				}
			}

			list, err := store.List(ctx, "t1")
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(list) != 3 {
				t.Fatalf("Expected 3 checkpoints, got %d", len(list))
			}
			if list[0].ID != ids[2] || list[2].ID != ids[0] {
				t.Error("Expected newest-first ordering")
			}
		})
	}
}

func TestStoreNotFound(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			if _, err := store.Get(ctx, "t1", "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound, got %v", err)
			}
			if _, err := store.Latest(ctx, "t1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound, got %v", err)
			}
			if err := store.Delete(ctx, "t1", "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStoreDelete(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			cp := New("t1", "chat", "n", map[string]interface{}{})
			if err := store.Put(ctx, cp); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			if err := store.Delete(ctx, "t1", cp.ID); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, err := store.Get(ctx, "t1", cp.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}

func TestStoreDeleteThreadAndThreads(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			for _, thread := range []string{"a", "b"} {
				cp := New(thread, "chat", "n", map[string]interface{}{})
				if err := store.Put(ctx, cp); err != nil {
					t.Fatalf("Put failed: %v", err)
				}
			}

			threads, err := store.Threads(ctx)
			if err != nil {
				t.Fatalf("Threads failed: %v", err)
			}
			if len(threads) != 2 || threads[0] != "a" || threads[1] != "b" {
				t.Errorf("Expected sorted threads [a b], got %v", threads)
			}

			if err := store.DeleteThread(ctx, "a"); err != nil {
				t.Fatalf("DeleteThread failed: %v", err)
			}
			if _, err := store.Latest(ctx, "a"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound after thread delete, got %v", err)
			}

			list, err := store.List(ctx, "a")
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(list) != 0 {
				t.Errorf("Expected empty list, got %d", len(list))
			}
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	cp := New("t1", "chat", "n", map[string]interface{}{"key": "original"})
	if err := store.Put(ctx, cp); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, _ := store.Get(ctx, "t1", cp.ID)
	got.State["key"] = "mutated"

	fresh, _ := store.Get(ctx, "t1", cp.ID)
	if fresh.State["key"] != "original" {
		t.Error("Mutating a returned checkpoint should not affect the store")
	}
}
