package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/introspection"
	"github.com/spf13/cobra"

	"github.com/aretw0/jotter"
	"github.com/aretw0/jotter/pkg/adapters/fs"
	"github.com/aretw0/jotter/pkg/core"
)

var statusDiagram bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the notes directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openNotes(cmd.Context(), jotter.WithReadOnly(true))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		components := []introspection.Introspectable{m}
		if repo, ok := m.Store().(introspection.Introspectable); ok {
			components = append(components, repo)
		}
		for _, c := range components {
			if err := printState(out, c); err != nil {
				return err
			}
		}

		if statusDiagram {
			ms, _ := m.State().(core.ManagerState)
			rs, _ := m.Store().(*fs.Repository).State().(fs.RepositoryState)
			config := introspection.DefaultDiagramConfig()
			config.SecondaryID = "notes"
			config.SecondaryLabel = "Notes Topology"
			fmt.Fprintln(out, introspection.TreeDiagram(buildTree(ms, rs), config))
		}
		return nil
	},
}

func printState(out io.Writer, c introspection.Introspectable) error {
	name := "component"
	if comp, ok := c.(introspection.Component); ok {
		name = comp.ComponentType()
	}
	data, err := json.MarshalIndent(c.State(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s state: %w", name, err)
	}
	fmt.Fprintf(out, "%s:\n%s\n", name, data)
	return nil
}

type statusNode struct {
	Name     string
	Status   string
	Metadata map[string]string
	Children []statusNode
}

// buildTree lays the state out for the diagram. Status values must match
// the classes of introspection.DefaultStyles().
func buildTree(ms core.ManagerState, rs fs.RepositoryState) statusNode {
	watcher := "suspended"
	if rs.WatcherActive {
		watcher = "running"
	}
	history := "stopped"
	if rs.History {
		history = "running"
	}

	return statusNode{
		Name:   "Notes",
		Status: "running",
		Metadata: map[string]string{
			"type":  "container",
			"path":  rs.Path,
			"notes": fmt.Sprintf("%d", ms.Notes),
		},
		Children: []statusNode{
			{
				Name:   "Manager",
				Status: "running",
				Metadata: map[string]string{
					"type":       "process",
					"tags":       fmt.Sprintf("%d", ms.Tags),
					"save_delay": ms.SaveDelay,
				},
			},
			{
				Name:   "Title Index",
				Status: "running",
				Metadata: map[string]string{
					"type":    "container",
					"entries": fmt.Sprintf("%d", rs.IndexSize),
				},
			},
			{Name: "Watcher", Status: watcher, Metadata: map[string]string{"type": "goroutine"}},
			{Name: "History", Status: history, Metadata: map[string]string{"type": "process"}},
		},
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusDiagram, "diagram", false, "Print a Mermaid diagram of the components")
}
