package core

import (
	"github.com/aretw0/introspection"
)

// ManagerState exposes internal state for observability.
type ManagerState struct {
	Notes        int      `json:"notes"`
	DirtyNotes   []string `json:"dirty_notes,omitempty"`
	OpenNotes    int      `json:"open_notes"`
	Tags         int      `json:"tags"`
	SaveDelay    string   `json:"save_delay"`
	StartNoteURI string   `json:"start_note_uri,omitempty"`
	StoreType    string   `json:"store_type"`
}

// State implements introspection.Introspectable.
func (m *Manager) State() any {
	notes := m.Notes()

	st := ManagerState{
		Notes:        len(notes),
		Tags:         len(m.tags.AllTags()),
		SaveDelay:    m.saveDelay.String(),
		StartNoteURI: m.StartNoteURI(),
		StoreType:    "unknown",
	}
	for _, n := range notes {
		if n.IsDirty() {
			st.DirtyNotes = append(st.DirtyNotes, n.URI())
		}
		if n.HasWindow() {
			st.OpenNotes++
		}
	}

	if m.store != nil {
		st.StoreType = "store"
		// Try to get component type if the store implements introspection.Component
		if comp, ok := m.store.(introspection.Component); ok {
			st.StoreType = comp.ComponentType()
		}
	}
	return st
}

// ComponentType implements introspection.Component.
func (m *Manager) ComponentType() string {
	return "note_manager"
}

var _ introspection.Introspectable = (*Manager)(nil)
var _ introspection.Component = (*Manager)(nil)
