package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/jotter/pkg/core"
)

// resetFlags restores every flag to its default between runs, since the
// command tree is a package-level singleton.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

type cli struct {
	t   *testing.T
	dir string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	for _, name := range []string{"JOTTER_CONFIG", "JOTTER_NOTES_DIR", "JOTTER_WATCH", "JOTTER_HISTORY", "JOTTER_READ_ONLY"} {
		t.Setenv(name, "")
	}
	return &cli{t: t, dir: filepath.Join(t.TempDir(), "notes")}
}

func (c *cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--dir", c.dir}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) ok(args ...string) string {
	c.t.Helper()
	out, err := c.run("", args...)
	require.NoError(c.t, err, "jotter %s", strings.Join(args, " "))
	return out
}

func TestCLI_Lifecycle(t *testing.T) {
	c := newCLI(t)

	uri := strings.TrimSpace(c.ok("create", "Groceries", "--text", "milk, eggs"))
	assert.True(t, strings.HasPrefix(uri, core.URIScheme))
	id := strings.TrimPrefix(uri, core.URIScheme)
	assert.FileExists(t, filepath.Join(c.dir, id+core.NoteExtension))

	assert.Contains(t, c.ok("list"), "Groceries")
	assert.Equal(t, "Groceries\n\nmilk, eggs\n", c.ok("show", "groceries"))
	assert.Equal(t, "Groceries\n\nmilk, eggs\n", c.ok("show", id))
	assert.Contains(t, c.ok("show", uri, "--complete"), "<title>Groceries</title>")

	t.Run("Set From Stdin", func(t *testing.T) {
		_, err := c.run("Groceries\n\nbread", "set", "Groceries", "--text", "-")
		require.NoError(t, err)
		assert.Contains(t, c.ok("show", "Groceries"), "bread")
	})

	t.Run("Tags", func(t *testing.T) {
		c.ok("tag", "add", "Groceries", "Food")
		assert.Equal(t, "Food\n", c.ok("tag", "list", "Groceries"))
		assert.Contains(t, c.ok("list", "--tag", "food"), "Groceries")
		assert.Contains(t, c.ok("tag", "list"), "Food\t1")

		c.ok("tag", "remove", "Groceries", "food")
		assert.NotContains(t, c.ok("list", "--tag", "food"), "Groceries")
	})

	t.Run("Pinned Flag", func(t *testing.T) {
		c.ok("set", "Groceries", "--pinned")
		assert.Contains(t, c.ok("list", "--json"), `"pinned": true`)
	})

	t.Run("Delete", func(t *testing.T) {
		c.ok("delete", "Groceries")
		_, err := c.run("", "show", "Groceries")
		assert.ErrorIs(t, err, core.ErrNoteNotFound)
		assert.FileExists(t, filepath.Join(c.dir, "Backup", id+core.NoteExtension))
	})
}

func TestCLI_RenameUpdatesLinks(t *testing.T) {
	c := newCLI(t)
	c.ok("create", "Recipes")
	c.ok("create", "Index")
	c.ok("set", "Index", "--xml",
		`<note-content version="0.1">Index

<link:internal>Recipes</link:internal></note-content>`)

	c.ok("rename", "Recipes", "Cookbook")

	assert.Contains(t, c.ok("show", "Index", "--xml"), "<link:internal>Cookbook</link:internal>")
	assert.True(t, strings.HasPrefix(c.ok("show", "Cookbook"), "Cookbook\n"))

	_, err := c.run("", "rename", "Cookbook", "index")
	assert.ErrorIs(t, err, core.ErrTitleTaken)
}

func TestCLI_SearchAndNotebooks(t *testing.T) {
	c := newCLI(t)
	c.ok("create", "Garden", "--text", "tomatoes and basil, more tomatoes")
	c.ok("create", "Kitchen", "--text", "basil pesto")

	out := c.ok("search", "basil")
	assert.Contains(t, out, "Garden")
	assert.Contains(t, out, "Kitchen")
	assert.NotContains(t, c.ok("search", "tomatoes", "pesto"), "Garden")
	assert.Contains(t, c.ok("search", "nothing-like-this"), "No matches.")

	c.ok("notebook", "create", "Home", "Garden", "Kitchen")
	assert.Equal(t, "Home\t2\n", c.ok("notebook", "list"))

	c.ok("notebook", "move", "Kitchen")
	assert.Equal(t, "Home\t1\n", c.ok("notebook", "list"))
	assert.Contains(t, c.ok("notebook", "show", "home"), "Garden")
	assert.Contains(t, c.ok("list", "--notebook", "Home"), "Garden")

	c.ok("notebook", "delete", "Home")
	assert.Empty(t, c.ok("notebook", "list"))
}

func TestCLI_Export(t *testing.T) {
	c := newCLI(t)
	c.ok("create", "Plan", "--text", "step one")

	assert.Contains(t, c.ok("export", "Plan"), "# Plan")
	assert.Contains(t, c.ok("export", "Plan", "--format", "html"), "<title>Plan</title>")

	outDir := filepath.Join(t.TempDir(), "site")
	assert.Contains(t, c.ok("export", "--all", "--output", outDir), "Exported 1 notes")
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = c.run("", "export", "Plan", "--format", "pdf")
	assert.Error(t, err)
	_, err = c.run("", "export")
	assert.Error(t, err)
}

func TestCLI_StatusAndVersion(t *testing.T) {
	c := newCLI(t)
	c.ok("create", "Anything")

	out := c.ok("status")
	assert.Contains(t, out, "note_manager:")
	assert.Contains(t, out, "notes_directory:")
	assert.Contains(t, out, `"notes": 1`)

	assert.Contains(t, c.ok("version"), "jotter version")
}
