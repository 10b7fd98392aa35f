// Package jotter is the composition root of the jotter note store.
//
// It wires the note domain (pkg/core) to the notes directory adapter
// (pkg/adapters/fs): one XML file per note, written atomically, with an
// optional git history and a watcher that follows edits made by other
// processes, such as file sync tools.
//
// Features:
//
//   - **Debounced saves**: edits are coalesced and written after a delay.
//   - **Link fix-up**: renaming a note rewrites links to it in other notes.
//   - **Tags and notebooks**: interned tags, with notebooks as system tags.
//   - **Remote control**: HTTP and MCP transports over the same operations.
//
// Usage:
//
//	m, err := jotter.Open(ctx, "./notes",
//		jotter.WithSaveDelay(2*time.Second),
//		jotter.WithLogger(logger),
//	)
//
//	n, err := m.Create("Groceries")
//	err = n.SetTextContent("Groceries\n\nmilk, eggs")
//	err = m.SaveAll(ctx)
package jotter
