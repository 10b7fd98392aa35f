package remote

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(t *testing.T, h server.ToolHandlerFunc, args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args

	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "unexpected content %T", res.Content[0])
	return text.Text, res.IsError
}

func TestMCPTools(t *testing.T) {
	c := setupControl(t)

	uri, isErr := call(t, handleCreateNote(c), map[string]any{"title": "Ideas"})
	require.False(t, isErr, uri)

	_, isErr = call(t, handleCreateNote(c), map[string]any{"title": "ideas"})
	assert.True(t, isErr)

	got, isErr := call(t, handleFindNote(c), map[string]any{"title": "IDEAS"})
	require.False(t, isErr)
	assert.Equal(t, uri, got)

	_, isErr = call(t, handleSetContents(c), map[string]any{"uri": uri, "text": "Ideas\n\nbuild a boat"})
	require.False(t, isErr)

	out, isErr := call(t, handleGetNote(c), map[string]any{"uri": uri})
	require.False(t, isErr)
	var note noteResult
	require.NoError(t, json.Unmarshal([]byte(out), &note))
	assert.Equal(t, "Ideas", note.Title)
	assert.Equal(t, "Ideas\n\nbuild a boat", note.Text)

	_, isErr = call(t, handleTag(c, c.AddTagToNote), map[string]any{"uri": uri, "tag": "boats"})
	require.False(t, isErr)
	out, _ = call(t, handleNotesWithTag(c), map[string]any{"tag": "boats"})
	assert.JSONEq(t, `["`+uri+`"]`, out)

	out, _ = call(t, handleSearchNotes(c), map[string]any{"query": "BOAT", "case_sensitive": true})
	assert.JSONEq(t, `[]`, out)
	out, _ = call(t, handleSearchNotes(c), map[string]any{"query": "BOAT"})
	assert.JSONEq(t, `["`+uri+`"]`, out)

	_, isErr = call(t, handleSetContentsXML(c), map[string]any{"uri": uri, "xml": "<broken"})
	assert.True(t, isErr)

	_, isErr = call(t, handleGetNote(c), map[string]any{"uri": missing})
	assert.True(t, isErr)

	_, isErr = call(t, handleFindNote(c), map[string]any{})
	assert.True(t, isErr)

	_, isErr = call(t, handleDeleteNote(c), map[string]any{"uri": uri})
	require.False(t, isErr)
	out, _ = call(t, handleListNotes(c), nil)
	assert.JSONEq(t, `[]`, out)
}

func TestNewMCPServer(t *testing.T) {
	s := NewMCPServer(setupControl(t))

	resp := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	for _, name := range []string{"list_notes", "find_note", "get_note", "get_note_xml", "create_note",
		"set_note_contents", "set_note_xml", "delete_note", "add_tag", "remove_tag", "notes_with_tag", "search_notes"} {
		assert.Contains(t, string(data), `"name":"`+name+`"`)
	}
}
