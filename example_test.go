package jotter_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aretw0/jotter"
)

// Example_basic creates a note, saves it, and reads it back from disk.
func Example_basic() {
	tmpDir, err := os.MkdirTemp("", "jotter-example-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	ctx := context.Background()
	m, err := jotter.Open(ctx, tmpDir)
	if err != nil {
		log.Fatal(err)
	}

	n, err := m.Create("Groceries")
	if err != nil {
		log.Fatal(err)
	}
	if err := n.SetTextContent("Groceries\n\nmilk, eggs"); err != nil {
		log.Fatal(err)
	}
	if err := m.SaveAll(ctx); err != nil {
		log.Fatal(err)
	}

	reopened, err := jotter.Open(ctx, tmpDir)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reopened.Find("groceries").TextContent())

	// Output:
	// Groceries
	//
	// milk, eggs
}

// Example_rename shows links following a renamed note.
func Example_rename() {
	tmpDir, err := os.MkdirTemp("", "jotter-example-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	m, err := jotter.Open(context.Background(), tmpDir)
	if err != nil {
		log.Fatal(err)
	}

	if _, err := m.Create("Recipes"); err != nil {
		log.Fatal(err)
	}
	index, err := m.CreateWithXML("Index",
		`<note-content version="0.1">Index

<link:internal>Recipes</link:internal></note-content>`)
	if err != nil {
		log.Fatal(err)
	}

	if err := m.Find("Recipes").SetTitle("Cookbook"); err != nil {
		log.Fatal(err)
	}
	fmt.Println(index.TextContent())

	// Output:
	// Index
	//
	// Cookbook
}
