package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/jotter/pkg/content"
	"github.com/aretw0/jotter/pkg/core"
)

var (
	createText string

	renameNoLinks bool

	setText    string
	setXML     string
	setFile    string
	setPinned  bool
	setStartup bool
	setAsStart bool
)

var createCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a note and print its URI",
	Long: `Create a note. Without a title the first free "New Note N" is used.
The body defaults to the title followed by a placeholder line; use --text
(or --text - for stdin) to supply it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		m, err := openNotes(ctx)
		if err != nil {
			return err
		}

		title := ""
		if len(args) == 1 {
			title = args[0]
		}
		n, err := m.Create(title)
		if err != nil {
			return err
		}
		if createText != "" {
			text, err := readInput(cmd, createText)
			if err != nil {
				return err
			}
			if err := n.SetXMLContent(content.New(n.Title(), text)); err != nil {
				return err
			}
		}
		if err := m.SaveAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n.URI())
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <note>",
	Short: "Delete a note",
	Long:  `Delete a note. With backups on, the file is moved to the Backup directory.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		m, err := openNotes(ctx)
		if err != nil {
			return err
		}
		n, err := resolveNote(m, args[0])
		if err != nil {
			return err
		}
		if err := m.Delete(ctx, n); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", n.Title())
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <note> <new title>",
	Short: "Rename a note and update links to it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		m, err := openNotes(ctx)
		if err != nil {
			return err
		}
		n, err := resolveNote(m, args[0])
		if err != nil {
			return err
		}

		rename := n.SetTitle
		if renameNoLinks {
			rename = n.RenameWithoutLinkUpdate
		}
		if err := rename(args[1]); err != nil {
			return err
		}
		return m.SaveAll(ctx)
	},
}

var setCmd = &cobra.Command{
	Use:   "set <note>",
	Short: "Replace a note's content or flags",
	Long: `Replace the content of a note with plain text (--text), body markup
(--xml) or a whole note file (--file). Each accepts "-" for stdin. The
--pinned, --startup and --start flags change the note's flags.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		m, err := openNotes(ctx)
		if err != nil {
			return err
		}
		n, err := resolveNote(m, args[0])
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		switch {
		case flags.Changed("text"):
			text, err := readInput(cmd, setText)
			if err != nil {
				return err
			}
			if err := n.SetTextContent(text); err != nil {
				return err
			}
		case flags.Changed("xml"):
			xml, err := readInput(cmd, setXML)
			if err != nil {
				return err
			}
			if err := n.SetXMLContent(xml); err != nil {
				return err
			}
		case flags.Changed("file"):
			doc, err := readFileOrStdin(cmd, setFile)
			if err != nil {
				return err
			}
			if err := n.LoadForeignNoteXML(doc, core.ContentChanged); err != nil {
				return err
			}
		}
		if flags.Changed("pinned") {
			n.SetPinned(setPinned)
		}
		if flags.Changed("startup") {
			n.SetOpenOnStartup(setStartup)
		}
		if flags.Changed("start") && setAsStart {
			m.SetStartNoteURI(n.URI())
			fmt.Fprintf(cmd.OutOrStdout(), "Start note: set JOTTER_START_NOTE=%s to keep it\n", n.URI())
		}
		return m.SaveAll(ctx)
	},
}

func init() {
	rootCmd.AddCommand(createCmd, deleteCmd, renameCmd, setCmd)
	createCmd.Flags().StringVar(&createText, "text", "", "Body text under the title (- for stdin)")
	renameCmd.Flags().BoolVar(&renameNoLinks, "no-link-update", false, "Leave links in other notes untouched")
	setCmd.Flags().StringVar(&setText, "text", "", "Plain text content (- for stdin)")
	setCmd.Flags().StringVar(&setXML, "xml", "", "Body markup (- for stdin)")
	setCmd.Flags().StringVar(&setFile, "file", "", "Whole note file (- for stdin)")
	setCmd.Flags().BoolVar(&setPinned, "pinned", false, "Pin or unpin the note")
	setCmd.Flags().BoolVar(&setStartup, "startup", false, "Open the note on startup")
	setCmd.Flags().BoolVar(&setAsStart, "start", false, "Make this the start note")
	setCmd.MarkFlagsMutuallyExclusive("text", "xml", "file")
}
