package content_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/jotter/pkg/content"
)

func TestNew(t *testing.T) {
	got := content.New("A & B", "text")
	assert.Equal(t, `<note-content version="0.1">A &amp; B`+"\n\ntext</note-content>", got)
	assert.NoError(t, content.Validate(got))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"Wrapped", content.Wrap("x <bold>y</bold>"), false},
		{"Prefixed", content.Wrap("<link:internal>T</link:internal>"), false},
		{"Empty", "", true},
		{"Text Only", "just text", true},
		{"Unclosed", "<note-content><bold>x</note-content>", true},
		{"Truncated", "<note-content>x", true},
		{"Surrounding Whitespace", "\n " + content.Wrap("x") + "\n", false},
		{"Other Root", "<b>not a note body</b>", true},
		{"Two Roots", content.Wrap("a") + content.Wrap("b"), true},
		{"Trailing Text", content.Wrap("a") + " tail", true},
		{"Leading Text", "head " + content.Wrap("a"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := content.Validate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPlainTextAndTitle(t *testing.T) {
	body := content.Wrap("\n  My Title\nsee <link:internal>Other &amp; Co</link:internal>")

	assert.Equal(t, "\n  My Title\nsee Other & Co", content.PlainText(body))
	assert.Equal(t, "My Title", content.Title(body))
	assert.Equal(t, "", content.FirstLine(" \n\t\n"))
}

func TestRenameLinks(t *testing.T) {
	t.Run("Rewrites Internal Links", func(t *testing.T) {
		body := content.Wrap("a <link:internal>Old</link:internal> b <link:internal>Old</link:internal>")
		got, changed := content.RenameLinks(body, "Old", "New")
		assert.True(t, changed)
		assert.Equal(t, content.Wrap("a <link:internal>New</link:internal> b <link:internal>New</link:internal>"), got)
	})

	t.Run("Repairs Broken Links", func(t *testing.T) {
		body := content.Wrap("<link:broken>New</link:broken>")
		got, changed := content.RenameLinks(body, "Old", "New")
		assert.True(t, changed)
		assert.Equal(t, content.Wrap("<link:internal>New</link:internal>"), got)
	})

	t.Run("Leaves Other Text", func(t *testing.T) {
		body := content.Wrap("Old is mentioned but not linked")
		got, changed := content.RenameLinks(body, "Old", "New")
		assert.False(t, changed)
		assert.Equal(t, body, got)
	})
}

func TestLinks(t *testing.T) {
	body := content.Wrap("<link:internal>One</link:internal> <link:url>http://x</link:url> <link:internal>Two &lt;2&gt;</link:internal>")
	assert.Equal(t, []string{"One", "Two <2>"}, content.Links(body))
}
