package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/aretw0/jotter/pkg/core"
)

func TestTagManager(t *testing.T) {
	tm := core.NewTagManager()

	a := tm.GetOrCreateTag("  Project X ")
	require.NotNil(t, a)
	assert.Equal(t, "Project X", a.Name())
	assert.Equal(t, "project x", a.NormalizedName())
	assert.Same(t, a, tm.GetOrCreateTag("PROJECT X"))
	assert.Same(t, a, tm.GetTag("project x"))

	assert.Nil(t, tm.GetOrCreateTag("   "))
	assert.Nil(t, tm.GetTag("missing"))

	sys := tm.GetOrCreateTag(core.TemplateTagName)
	assert.True(t, sys.IsSystem())
	assert.False(t, a.IsSystem())
	assert.True(t, tm.GetOrCreateTag(core.NotebookTagPrefix+"Work").IsSystem())

	names := []string{}
	for _, tag := range tm.AllTags() {
		names = append(names, tag.NormalizedName())
	}
	assert.Equal(t, []string{"project x", "system:notebook:work", "system:template"}, names)

	tm.RemoveTag(core.NewTag("project x"))
	assert.NotNil(t, tm.GetTag("project x"), "only the registered instance is removed")
	tm.RemoveTag(a)
	assert.Nil(t, tm.GetTag("project x"))
	tm.RemoveTag(nil)
}

func TestNormalizeTagName(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[ \tA-Za-z0-9:_Éü-]{0,20}`).Draw(t, "name")
		once := core.NormalizeTagName(name)
		assert.Equal(t, once, core.NormalizeTagName(once))
		assert.Equal(t, once, core.NewTag(name).NormalizedName())
	})
}
