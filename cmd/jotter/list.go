package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/jotter/pkg/core"
	"github.com/aretw0/jotter/pkg/notebooks"
)

var (
	listJSON     bool
	listTag      string
	listNotebook string
)

type noteListing struct {
	URI     string    `json:"uri"`
	Title   string    `json:"title"`
	Changed time.Time `json:"changed"`
	Pinned  bool      `json:"pinned,omitempty"`
	Tags    []string  `json:"tags"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, most recently changed first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openNotes(cmd.Context())
		if err != nil {
			return err
		}

		notes := m.Notes()
		if listTag != "" {
			tag := m.Tags().GetTag(listTag)
			notes = filter(notes, func(n *core.Note) bool { return n.ContainsTag(tag) })
		}
		if listNotebook != "" {
			books := notebooks.New(m)
			nb, err := books.Get(listNotebook)
			if err != nil {
				return err
			}
			notes = books.NotesIn(nb)
		}
		sort.SliceStable(notes, func(i, j int) bool {
			if notes[i].IsPinned() != notes[j].IsPinned() {
				return notes[i].IsPinned()
			}
			return notes[i].ChangeDate().After(notes[j].ChangeDate())
		})

		out := cmd.OutOrStdout()
		if listJSON {
			listing := make([]noteListing, 0, len(notes))
			for _, n := range notes {
				listing = append(listing, noteListing{
					URI:     n.URI(),
					Title:   n.Title(),
					Changed: n.ChangeDate(),
					Pinned:  n.IsPinned(),
					Tags:    tagNames(n),
				})
			}
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			return encoder.Encode(listing)
		}

		for _, n := range notes {
			fmt.Fprintf(out, "%s  %s  %s\n", n.ID(), n.ChangeDate().Format("2006-01-02 15:04"), n.Title())
		}
		return nil
	},
}

func filter(notes []*core.Note, keep func(*core.Note) bool) []*core.Note {
	out := notes[:0:0]
	for _, n := range notes {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().StringVar(&listTag, "tag", "", "Only notes carrying this tag")
	listCmd.Flags().StringVar(&listNotebook, "notebook", "", "Only notes in this notebook")
}
