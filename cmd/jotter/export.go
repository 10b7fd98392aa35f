package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/jotter/pkg/core"
	"github.com/aretw0/jotter/pkg/export"
)

var (
	exportFormat string
	exportOutput string
	exportAll    bool
)

var exportCmd = &cobra.Command{
	Use:   "export [note]...",
	Short: "Export notes as Markdown or HTML",
	Long: `Export notes as Markdown (--format md) or standalone HTML pages
(--format html). A single note is printed to stdout unless --output names
a directory; several notes, or --all, require --output. Links between
exported notes point at the exported files.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ext, err := exportExt(exportFormat)
		if err != nil {
			return err
		}
		m, err := openNotes(cmd.Context())
		if err != nil {
			return err
		}

		var notes []*core.Note
		if exportAll {
			notes = m.Notes()
		}
		for _, ref := range args {
			n, err := resolveNote(m, ref)
			if err != nil {
				return err
			}
			notes = append(notes, n)
		}
		if len(notes) == 0 {
			return fmt.Errorf("nothing to export: name a note or pass --all")
		}
		if len(notes) > 1 && exportOutput == "" {
			return fmt.Errorf("exporting several notes requires --output")
		}

		resolver := export.WithLinkResolver(func(title string) string {
			if target := m.Find(title); target != nil {
				return target.ID() + ext
			}
			return ""
		})

		if exportOutput == "" {
			doc, err := render(notes[0], ext, resolver)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), doc)
			return nil
		}

		if err := os.MkdirAll(exportOutput, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		for _, n := range notes {
			doc, err := render(n, ext, resolver)
			if err != nil {
				return fmt.Errorf("failed to export %q: %w", n.Title(), err)
			}
			path := filepath.Join(exportOutput, n.ID()+ext)
			if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d notes to %s\n", len(notes), exportOutput)
		return nil
	},
}

func exportExt(format string) (string, error) {
	switch format {
	case "md", "markdown":
		return ".md", nil
	case "html":
		return ".html", nil
	}
	return "", fmt.Errorf("unknown export format %q (want md or html)", format)
}

func render(n *core.Note, ext string, opts ...export.Option) (string, error) {
	if ext == ".html" {
		return export.HTMLPage(n.Title(), n.XMLContent(), opts...)
	}
	return export.Markdown(n.XMLContent(), opts...)
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "md", "Output format: md or html")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output directory")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "Export every note")
}
