package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaRegistry_BuiltInSchemas(t *testing.T) {
	sr := NewSchemaRegistry()

	assert.Equal(t, []string{"extension", "flatpak", "gsetting", "homebrew", "shim", "system"}, sr.ListSchemas())
}

func TestSchemaRegistry_RegisterRequiresDocument(t *testing.T) {
	sr := NewSchemaRegistry()

	err := sr.RegisterSchema("custom", `#Other: {name: string}`)
	assert.Error(t, err)

	err = sr.RegisterSchema("custom", `#Document: {names?: [...string]}`)
	require.NoError(t, err)
	assert.True(t, sr.Has("custom"))
	assert.NoError(t, sr.ValidateJSON("custom", []byte(`{"names": ["a"]}`)))
	assert.Error(t, sr.ValidateJSON("custom", []byte(`{"names": [1]}`)))
}

func TestSchemaRegistry_ValidateDocument(t *testing.T) {
	sr := NewSchemaRegistry()

	valid := GSettingDocument{Settings: []Setting{
		{Schema: "org.gnome.desktop.interface", Key: "color-scheme", Value: "'prefer-dark'"},
	}}
	assert.NoError(t, sr.ValidateDocument("gsetting", valid))

	invalid := GSettingDocument{Settings: []Setting{
		{Schema: "org gnome", Key: "color-scheme", Value: "'prefer-dark'"},
	}}
	assert.Error(t, sr.ValidateDocument("gsetting", invalid))

	assert.Error(t, sr.ValidateDocument("unknown", valid))
}
