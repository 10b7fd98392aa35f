package fs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/jotter/pkg/content"
	"github.com/aretw0/jotter/pkg/core"
	"github.com/aretw0/jotter/pkg/git"
)

// setupHistoryRepo creates a temporary repository with history enabled.
func setupHistoryRepo(t *testing.T) *Repository {
	t.Helper()
	if !git.IsInstalled() {
		t.Skip("git not installed")
	}
	t.Setenv("GIT_AUTHOR_NAME", "Jotter Test")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "Jotter Test")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@example.com")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := NewRepository(Config{
		Path:    t.TempDir(),
		History: true,
		Logger:  logger,
	})
	if err := repo.Initialize(context.Background()); err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}
	return repo
}

func testData(path, title string) *core.NoteData {
	d := core.NewNoteData(core.URLFromPath(path))
	d.Title = title
	d.Text = content.New(title, "concurrent")
	return d
}

// TestSyncWaitsForLock verifies that Sync respects the history lock.
func TestSyncWaitsForLock(t *testing.T) {
	repo := setupHistoryRepo(t)

	lockAcquired := make(chan struct{})
	go func() {
		unlock, err := repo.git.Lock()
		if err != nil {
			t.Errorf("manual lock failed: %v", err)
			return
		}
		defer unlock()

		close(lockAcquired)
		time.Sleep(500 * time.Millisecond)
	}()
	<-lockAcquired

	start := time.Now()
	// Expect failure due to no remote, but check timing.
	err := repo.Sync(context.Background())
	elapsed := time.Since(start)

	if elapsed < 400*time.Millisecond {
		t.Errorf("Sync returned too fast (%v), expected to wait for lock (>400ms)", elapsed)
	}
	if err == nil {
		t.Error("expected Sync to fail without a remote")
	}
}

// TestConcurrentWrites verifies that concurrent saves are serialized into
// separate commits.
func TestConcurrentWrites(t *testing.T) {
	repo := setupHistoryRepo(t)

	var wg sync.WaitGroup
	start := make(chan struct{})
	concurrency := 5

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			<-start

			path := repo.NotePath(fmt.Sprintf("note-%d", id))
			if err := repo.Write(path, testData(path, fmt.Sprintf("Note %d", id))); err != nil {
				t.Errorf("routine %d: failed to write: %v", id, err)
			}
		}(i)
	}

	close(start)
	wg.Wait()

	status, err := repo.git.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if status != "" {
		t.Errorf("expected every write to be committed, got status %q", status)
	}
	for i := 0; i < concurrency; i++ {
		path := repo.NotePath(fmt.Sprintf("note-%d", i))
		if _, err := repo.Read(path, core.URLFromPath(path)); err != nil {
			t.Errorf("failed to read note %d: %v", i, err)
		}
	}
}

// TestWriteBlocksOnLock verifies that a save waits while the lock is held.
func TestWriteBlocksOnLock(t *testing.T) {
	repo := setupHistoryRepo(t)

	unlock, err := repo.git.Lock()
	if err != nil {
		t.Fatalf("failed to acquire manual lock: %v", err)
	}
	go func() {
		time.Sleep(500 * time.Millisecond)
		unlock()
	}()

	path := repo.NotePath("blocked")
	start := time.Now()
	if err := repo.Write(path, testData(path, "Blocked")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Errorf("Write returned too fast (%v), expected to wait for lock (>400ms)", elapsed)
	}
}
