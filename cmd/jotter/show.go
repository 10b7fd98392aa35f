package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	showJSON     bool
	showXML      bool
	showComplete bool
)

var showCmd = &cobra.Command{
	Use:   "show <note>",
	Short: "Print a note",
	Long: `Print a note given its URI, guid or title. Outputs the plain text by
default, the body markup with --xml, or the whole note file with --complete.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openNotes(cmd.Context())
		if err != nil {
			return err
		}
		n, err := resolveNote(m, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch {
		case showJSON:
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			return encoder.Encode(struct {
				noteListing
				Created string `json:"created"`
				Text    string `json:"text"`
			}{
				noteListing: noteListing{
					URI:     n.URI(),
					Title:   n.Title(),
					Changed: n.ChangeDate(),
					Pinned:  n.IsPinned(),
					Tags:    tagNames(n),
				},
				Created: n.CreateDate().Format("2006-01-02T15:04:05Z07:00"),
				Text:    n.TextContent(),
			})
		case showComplete:
			doc, err := n.CompleteNoteXML()
			if err != nil {
				return err
			}
			fmt.Fprint(out, doc)
		case showXML:
			fmt.Fprintln(out, n.XMLContent())
		default:
			fmt.Fprintln(out, n.TextContent())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output in JSON format")
	showCmd.Flags().BoolVar(&showXML, "xml", false, "Print the body markup")
	showCmd.Flags().BoolVar(&showComplete, "complete", false, "Print the whole note file")
}
