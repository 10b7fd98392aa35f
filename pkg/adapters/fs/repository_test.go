package fs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/jotter/pkg/adapters/fs"
	"github.com/aretw0/jotter/pkg/content"
	"github.com/aretw0/jotter/pkg/core"
	"github.com/aretw0/jotter/pkg/git"
)

// setupRepo helps create a repository for testing.
// It returns the repository, the notes path, and a git client for verification.
func setupRepo(t *testing.T, opts ...func(*fs.Config)) (*fs.Repository, string, *git.Client) {
	t.Helper()

	notesPath := filepath.Join(t.TempDir(), "notes")

	cfg := fs.Config{
		Path:    notesPath,
		Backups: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	client := git.NewClient(notesPath, ".verify.lock", nil)
	repo := fs.NewRepository(cfg)
	return repo, notesPath, client
}

// gitIdentity lets commits succeed on machines without a global git config.
func gitIdentity(t *testing.T) {
	t.Helper()
	t.Setenv("GIT_AUTHOR_NAME", "Jotter Test")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "Jotter Test")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@example.com")
}

func newData(path, title string) *core.NoteData {
	d := core.NewNoteData(core.URLFromPath(path))
	d.Title = title
	d.Text = content.New(title, "body")
	now := time.Now()
	d.CreateDate = now
	d.SetChangeDate(now)
	return d
}

func TestInitialize(t *testing.T) {
	t.Run("Creates Directory if Missing", func(t *testing.T) {
		repo, path, _ := setupRepo(t)

		if err := repo.Initialize(context.Background()); err != nil {
			t.Fatalf("Initialize failed: %v", err)
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("expected directory to be created at %s", path)
		}
		if _, err := os.Stat(filepath.Join(path, fs.DefaultSystemDir)); os.IsNotExist(err) {
			t.Error("expected system directory to be created")
		}
	})

	t.Run("Fails if MustExist and Missing", func(t *testing.T) {
		repo, _, _ := setupRepo(t, func(c *fs.Config) {
			c.MustExist = true
		})

		if err := repo.Initialize(context.Background()); err == nil {
			t.Error("expected Initialize to fail when directory is missing and MustExist=true")
		}
	})

	t.Run("Removes Interrupted Writes", func(t *testing.T) {
		repo, path, _ := setupRepo(t)
		if err := os.MkdirAll(path, 0755); err != nil {
			t.Fatal(err)
		}
		stale := filepath.Join(path, fs.TempFilePrefix+"42")
		if err := os.WriteFile(stale, []byte("half"), 0644); err != nil {
			t.Fatal(err)
		}

		if err := repo.Initialize(context.Background()); err != nil {
			t.Fatalf("Initialize failed: %v", err)
		}
		if _, err := os.Stat(stale); !os.IsNotExist(err) {
			t.Error("expected stale temp file to be removed")
		}
	})

	t.Run("Inits Git Repo when History is on", func(t *testing.T) {
		if !git.IsInstalled() {
			t.Skip("git not installed")
		}
		gitIdentity(t)
		repo, path, _ := setupRepo(t, func(c *fs.Config) {
			c.History = true
		})

		if err := repo.Initialize(context.Background()); err != nil {
			t.Fatalf("Initialize failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(path, ".git")); os.IsNotExist(err) {
			t.Error("expected .git directory to be created")
		}
		ignore, err := os.ReadFile(filepath.Join(path, ".gitignore"))
		if err != nil {
			t.Fatalf("expected .gitignore: %v", err)
		}
		for _, want := range []string{".jotter/", "Backup/"} {
			if !strings.Contains(string(ignore), want) {
				t.Errorf(".gitignore missing %q", want)
			}
		}
	})
}

func TestWrite(t *testing.T) {
	t.Run("Writes Note File", func(t *testing.T) {
		repo, _, _ := setupRepo(t)
		if err := repo.Initialize(context.Background()); err != nil {
			t.Fatal(err)
		}

		path := repo.NotePath("abc")
		if err := repo.Write(path, newData(path, "Hello")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}

		got, err := repo.Read(path, core.URLFromPath(path))
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if got.Title != "Hello" {
			t.Errorf("expected title 'Hello', got %q", got.Title)
		}
	})

	t.Run("Rejects Writes when ReadOnly", func(t *testing.T) {
		repo, path, _ := setupRepo(t, func(c *fs.Config) {
			c.ReadOnly = true
		})
		if err := os.MkdirAll(path, 0755); err != nil {
			t.Fatal(err)
		}
		if err := repo.Initialize(context.Background()); err != nil {
			t.Fatal(err)
		}

		p := repo.NotePath("abc")
		err := repo.Write(p, newData(p, "Hello"))
		if !errors.Is(err, core.ErrReadOnly) {
			t.Errorf("expected ErrReadOnly, got %v", err)
		}
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Error("expected no file in read-only mode")
		}
	})

	t.Run("Commits when History is on", func(t *testing.T) {
		if !git.IsInstalled() {
			t.Skip("git not installed")
		}
		gitIdentity(t)

		repo, _, client := setupRepo(t, func(c *fs.Config) {
			c.History = true
		})
		if err := repo.Initialize(context.Background()); err != nil {
			t.Fatal(err)
		}

		path := repo.NotePath("git-note")
		if err := repo.Write(path, newData(path, "Git Note")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}

		out, err := client.Run(context.Background(), "log", "-1", "--pretty=%B")
		if err != nil {
			t.Fatalf("git log failed: %v", err)
		}
		if out != "update Git Note" {
			t.Errorf("Unexpected commit message: %q", out)
		}
	})
}

func TestList(t *testing.T) {
	repo, path, _ := setupRepo(t)
	if err := repo.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	t.Run("Lists Empty Directory", func(t *testing.T) {
		paths, err := repo.List(context.Background())
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(paths) != 0 {
			t.Errorf("expected 0 notes, got %d", len(paths))
		}
	})

	t.Run("Lists Only Note Files", func(t *testing.T) {
		for _, id := range []string{"b", "a"} {
			p := repo.NotePath(id)
			if err := repo.Write(p, newData(p, "Note "+id)); err != nil {
				t.Fatal(err)
			}
		}
		if err := os.WriteFile(filepath.Join(path, "readme.txt"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		paths, err := repo.List(context.Background())
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		want := []string{repo.NotePath("a"), repo.NotePath("b")}
		if len(paths) != len(want) {
			t.Fatalf("expected %v, got %v", want, paths)
		}
		for i := range want {
			if paths[i] != want[i] {
				t.Errorf("paths[%d] = %s, want %s", i, paths[i], want[i])
			}
		}
	})
}

func TestRemove(t *testing.T) {
	t.Run("Moves to Backup", func(t *testing.T) {
		repo, _, _ := setupRepo(t)
		if err := repo.Initialize(context.Background()); err != nil {
			t.Fatal(err)
		}
		p := repo.NotePath("gone")
		if err := repo.Write(p, newData(p, "Gone")); err != nil {
			t.Fatal(err)
		}

		if err := repo.Remove(context.Background(), p); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Error("expected note file to be gone")
		}
		if _, err := os.Stat(repo.BackupPath(p)); err != nil {
			t.Errorf("expected backup copy: %v", err)
		}
	})

	t.Run("Deletes without Backups", func(t *testing.T) {
		repo, path, _ := setupRepo(t, func(c *fs.Config) {
			c.Backups = false
		})
		if err := repo.Initialize(context.Background()); err != nil {
			t.Fatal(err)
		}
		p := repo.NotePath("gone")
		if err := repo.Write(p, newData(p, "Gone")); err != nil {
			t.Fatal(err)
		}

		if err := repo.Remove(context.Background(), p); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(path, fs.DefaultBackupDir)); !os.IsNotExist(err) {
			t.Error("expected no backup directory")
		}
	})

	t.Run("Missing File is Not an Error", func(t *testing.T) {
		repo, _, _ := setupRepo(t)
		if err := repo.Initialize(context.Background()); err != nil {
			t.Fatal(err)
		}
		if err := repo.Remove(context.Background(), repo.NotePath("ghost")); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})
}

func TestTitles(t *testing.T) {
	repo, path, _ := setupRepo(t)
	ctx := context.Background()
	if err := repo.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	p := repo.NotePath("one")
	if err := repo.Write(p, newData(p, "First")); err != nil {
		t.Fatal(err)
	}

	titles, err := repo.Titles(ctx)
	if err != nil {
		t.Fatalf("Titles failed: %v", err)
	}
	if len(titles) != 1 || titles[0].Title != "First" || titles[0].URI != "note://jotter/one" {
		t.Fatalf("unexpected titles: %+v", titles)
	}

	if _, err := os.Stat(filepath.Join(path, fs.DefaultSystemDir, "index.json")); err != nil {
		t.Errorf("expected index file: %v", err)
	}

	// Another process rewrites the file; the stale index entry must not win.
	var a fs.Archiver
	d := newData(p, "Renamed Elsewhere")
	if err := a.Write(p, d); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(p, future, future); err != nil {
		t.Fatal(err)
	}

	titles, err = repo.Titles(ctx)
	if err != nil {
		t.Fatalf("Titles failed: %v", err)
	}
	if titles[0].Title != "Renamed Elsewhere" {
		t.Errorf("expected refreshed title, got %q", titles[0].Title)
	}
}

func TestReconcile(t *testing.T) {
	repo, _, _ := setupRepo(t)
	ctx := context.Background()
	if err := repo.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	keep := repo.NotePath("keep")
	drop := repo.NotePath("drop")
	for _, p := range []string{keep, drop} {
		if err := repo.Write(p, newData(p, filepath.Base(p))); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := repo.Titles(ctx); err != nil {
		t.Fatal(err)
	}

	// Changes made behind the repository's back.
	var a fs.Archiver
	added := repo.NotePath("added")
	if err := a.Write(added, newData(added, "Added")); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(drop); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(keep, future, future); err != nil {
		t.Fatal(err)
	}

	events, err := repo.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	got := make(map[string]core.FileOp)
	for _, e := range events {
		got[e.Path] = e.Op
	}
	want := map[string]core.FileOp{
		added: core.FileCreated,
		drop:  core.FileRemoved,
		keep:  core.FileModified,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for p, op := range want {
		if got[p] != op {
			t.Errorf("%s: expected %s, got %s", filepath.Base(p), op, got[p])
		}
	}

	// A second pass has nothing left to report.
	events, err = repo.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %v", events)
	}
}
