package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer exposes Control as MCP tools.
func NewMCPServer(c *Control) *server.MCPServer {
	s := server.NewMCPServer(
		"Jotter",
		c.Version(),
		server.WithToolCapabilities(true),
	)

	// Tool: list_notes - every note URI
	s.AddTool(
		mcp.NewTool("list_notes",
			mcp.WithDescription("List the URIs of all notes."),
		),
		handleListNotes(c),
	)

	s.AddTool(
		mcp.NewTool("find_note",
			mcp.WithDescription("Find a note by its title (case-insensitive) and return its URI."),
			mcp.WithString("title",
				mcp.Required(),
				mcp.Description("Exact note title"),
			),
		),
		handleFindNote(c),
	)

	s.AddTool(
		mcp.NewTool("get_note",
			mcp.WithDescription("Get a note's title, dates, tags, and plain text by URI."),
			mcp.WithString("uri",
				mcp.Required(),
				mcp.Description("Note URI (note://jotter/<id>)"),
			),
		),
		handleGetNote(c),
	)

	s.AddTool(
		mcp.NewTool("get_note_xml",
			mcp.WithDescription("Get the <note-content> markup of a note's body."),
			mcp.WithString("uri",
				mcp.Required(),
				mcp.Description("Note URI"),
			),
		),
		handleGetNoteXML(c),
	)

	s.AddTool(
		mcp.NewTool("create_note",
			mcp.WithDescription("Create a note. Without a title a unique one is generated. Fails if the title is taken."),
			mcp.WithString("title",
				mcp.Description("Optional: title of the new note"),
			),
		),
		handleCreateNote(c),
	)

	s.AddTool(
		mcp.NewTool("set_note_contents",
			mcp.WithDescription("Replace a note's body with plain text. The first line is the title."),
			mcp.WithString("uri", mcp.Required(), mcp.Description("Note URI")),
			mcp.WithString("text", mcp.Required(), mcp.Description("New plain text body")),
		),
		handleSetContents(c),
	)

	s.AddTool(
		mcp.NewTool("set_note_xml",
			mcp.WithDescription("Replace a note's body with <note-content> markup."),
			mcp.WithString("uri", mcp.Required(), mcp.Description("Note URI")),
			mcp.WithString("xml", mcp.Required(), mcp.Description("Well-formed <note-content> fragment")),
		),
		handleSetContentsXML(c),
	)

	s.AddTool(
		mcp.NewTool("delete_note",
			mcp.WithDescription("Delete a note."),
			mcp.WithString("uri", mcp.Required(), mcp.Description("Note URI")),
		),
		handleDeleteNote(c),
	)

	s.AddTool(
		mcp.NewTool("add_tag",
			mcp.WithDescription("Add a tag to a note."),
			mcp.WithString("uri", mcp.Required(), mcp.Description("Note URI")),
			mcp.WithString("tag", mcp.Required(), mcp.Description("Tag name")),
		),
		handleTag(c, c.AddTagToNote),
	)

	s.AddTool(
		mcp.NewTool("remove_tag",
			mcp.WithDescription("Remove a tag from a note."),
			mcp.WithString("uri", mcp.Required(), mcp.Description("Note URI")),
			mcp.WithString("tag", mcp.Required(), mcp.Description("Tag name")),
		),
		handleTag(c, c.RemoveTagFromNote),
	)

	s.AddTool(
		mcp.NewTool("notes_with_tag",
			mcp.WithDescription("List the URIs of notes carrying a tag."),
			mcp.WithString("tag", mcp.Required(), mcp.Description("Tag name")),
		),
		handleNotesWithTag(c),
	)

	s.AddTool(
		mcp.NewTool("search_notes",
			mcp.WithDescription("Search notes containing every word of the query. Best matches first."),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Words to search for"),
			),
			mcp.WithBoolean("case_sensitive",
				mcp.Description("Optional: match case (default: false)"),
			),
		),
		handleSearchNotes(c),
	)

	return s
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func notFound(uri string) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("note not found: %s", uri))
}

func handleListNotes(c *Control) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(c.ListAllNotes())
	}
}

func handleFindNote(c *Control) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := req.RequireString("title")
		if err != nil {
			return mcp.NewToolResultError("title is required"), nil
		}
		uri := c.FindNote(title)
		if uri == "" {
			return mcp.NewToolResultError(fmt.Sprintf("no note titled %q", title)), nil
		}
		return mcp.NewToolResultText(uri), nil
	}
}

// noteResult is the get_note payload.
type noteResult struct {
	NoteInfo
	Text string `json:"text"`
}

func handleGetNote(c *Control) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		uri, err := req.RequireString("uri")
		if err != nil {
			return mcp.NewToolResultError("uri is required"), nil
		}
		if !c.NoteExists(uri) {
			return notFound(uri), nil
		}
		return jsonResult(noteResult{
			NoteInfo: NoteInfo{
				URI:                uri,
				Title:              c.GetNoteTitle(uri),
				CreateDate:         c.GetNoteCreateDate(uri),
				MetadataChangeDate: c.GetNoteChangeDate(uri),
				Tags:               c.GetTagsForNote(uri),
			},
			Text: c.GetNoteContents(uri),
		})
	}
}

func handleGetNoteXML(c *Control) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		uri, err := req.RequireString("uri")
		if err != nil {
			return mcp.NewToolResultError("uri is required"), nil
		}
		if !c.NoteExists(uri) {
			return notFound(uri), nil
		}
		return mcp.NewToolResultText(c.GetNoteContentsXml(uri)), nil
	}
}

func handleCreateNote(c *Control) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title := req.GetString("title", "")
		var uri string
		if title == "" {
			uri = c.CreateNote()
		} else {
			uri = c.CreateNamedNote(title)
		}
		if uri == "" {
			return mcp.NewToolResultError("failed to create note"), nil
		}
		return mcp.NewToolResultText(uri), nil
	}
}

func handleSetContents(c *Control) server.ToolHandlerFunc {
	return handleSet(c, "text", c.SetNoteContents)
}

func handleSetContentsXML(c *Control) server.ToolHandlerFunc {
	return handleSet(c, "xml", c.SetNoteContentsXml)
}

func handleSet(c *Control, field string, set func(uri, value string) bool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		uri, err := req.RequireString("uri")
		if err != nil {
			return mcp.NewToolResultError("uri is required"), nil
		}
		value, err := req.RequireString(field)
		if err != nil {
			return mcp.NewToolResultError(field + " is required"), nil
		}
		if !c.NoteExists(uri) {
			return notFound(uri), nil
		}
		if !set(uri, value) {
			return mcp.NewToolResultError("note content rejected"), nil
		}
		return mcp.NewToolResultText("ok"), nil
	}
}

func handleDeleteNote(c *Control) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		uri, err := req.RequireString("uri")
		if err != nil {
			return mcp.NewToolResultError("uri is required"), nil
		}
		if !c.DeleteNote(ctx, uri) {
			return notFound(uri), nil
		}
		return mcp.NewToolResultText("ok"), nil
	}
}

func handleTag(c *Control, apply func(uri, tag string) bool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		uri, err := req.RequireString("uri")
		if err != nil {
			return mcp.NewToolResultError("uri is required"), nil
		}
		tag, err := req.RequireString("tag")
		if err != nil {
			return mcp.NewToolResultError("tag is required"), nil
		}
		if !apply(uri, tag) {
			return notFound(uri), nil
		}
		return mcp.NewToolResultText("ok"), nil
	}
}

func handleNotesWithTag(c *Control) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tag, err := req.RequireString("tag")
		if err != nil {
			return mcp.NewToolResultError("tag is required"), nil
		}
		return jsonResult(c.GetAllNotesWithTag(tag))
	}
}

func handleSearchNotes(c *Control) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}
		return jsonResult(c.SearchNotes(query, req.GetBool("case_sensitive", false)))
	}
}
