// Package git runs git commands against the notes directory so that every
// save and delete becomes a commit and the directory can be synced with a
// remote.
package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoRemote is returned by Sync when the repository has no remote.
var ErrNoRemote = errors.New("no git remote configured")

// DefaultLockTimeout bounds how long Lock waits for another process.
const DefaultLockTimeout = 30 * time.Second

// Client wraps git command execution with a file-based lock for process safety.
type Client struct {
	WorkDir     string
	Logger      *slog.Logger
	LockTimeout time.Duration
	lockPath    string
}

// NewClient creates a git client for workDir. lockName is the lock file
// created inside workDir while a commit is in progress.
func NewClient(workDir, lockName string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		WorkDir:     workDir,
		Logger:      logger,
		LockTimeout: DefaultLockTimeout,
		lockPath:    lockName,
	}
}

// IsInstalled reports whether a git binary is on PATH.
func IsInstalled() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// IsRepo reports whether WorkDir is inside a git work tree.
func (c *Client) IsRepo() bool {
	out, err := c.Run(context.Background(), "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// Lock acquires the file lock, retrying until LockTimeout.
func (c *Client) Lock() (func(), error) {
	fullLockPath := filepath.Join(c.WorkDir, c.lockPath)
	deadline := time.Now().Add(c.LockTimeout)

	for {
		f, err := os.OpenFile(fullLockPath, os.O_CREATE|os.O_EXCL, 0666)
		if err == nil {
			f.Close()
			return func() {
				os.Remove(fullLockPath)
			}, nil
		}

		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if c.LockTimeout > 0 && time.Now().After(deadline) {
			return nil, fmt.Errorf("failed to acquire lock %s: timed out after %s", fullLockPath, c.LockTimeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Run executes a raw git command in the working directory.
// NOTE: It does NOT acquire the lock. Callers manage that via Client.Lock().
func (c *Client) Run(ctx context.Context, args ...string) (string, error) {
	c.Logger.Debug("executing git", "args", args, "dir", c.WorkDir)

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.WorkDir

	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		return output, fmt.Errorf("git %s failed: %w\nOutput: %s", args[0], err, output)
	}
	return output, nil
}

// Init initializes a repository. Re-running it is harmless.
func (c *Client) Init(ctx context.Context) error {
	_, err := c.Run(ctx, "init")
	return err
}

// Add stages files, including their removal when they no longer exist.
func (c *Client) Add(ctx context.Context, files ...string) error {
	if len(files) == 0 {
		return nil
	}
	args := append([]string{"add", "--all", "--"}, files...)
	_, err := c.Run(ctx, args...)
	return err
}

// Commit records staged changes. It does nothing when nothing is staged.
func (c *Client) Commit(ctx context.Context, msg string) error {
	if _, err := c.Run(ctx, "diff", "--cached", "--quiet"); err == nil {
		return nil
	}
	_, err := c.Run(ctx, "commit", "-m", msg)
	return err
}

// Status returns the porcelain status of the repo.
func (c *Client) Status(ctx context.Context) (string, error) {
	return c.Run(ctx, "status", "--porcelain")
}

// HasRemote reports whether any remote is configured.
func (c *Client) HasRemote(ctx context.Context) bool {
	out, err := c.Run(ctx, "remote")
	return err == nil && out != ""
}

// Sync rebases local commits onto the upstream branch and pushes them.
func (c *Client) Sync(ctx context.Context) error {
	if !c.HasRemote(ctx) {
		return ErrNoRemote
	}
	if _, err := c.Run(ctx, "pull", "--rebase"); err != nil {
		return fmt.Errorf("failed to pull: %w", err)
	}
	if _, err := c.Run(ctx, "push"); err != nil {
		return fmt.Errorf("failed to push: %w", err)
	}
	return nil
}
