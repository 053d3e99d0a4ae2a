package dictionary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefault(t *testing.T) {
	dict, err := NewDefault()
	require.NoError(t, err)
	assert.Equal(t, len(StandardAttributes), dict.Len())

	attr, ok := dict.LookupByName("User-Name")
	require.True(t, ok)
	assert.Equal(t, uint8(1), attr.ID)
	assert.Equal(t, DataTypeString, attr.DataType)

	attr, ok = dict.LookupByID(2)
	require.True(t, ok)
	assert.Equal(t, "User-Password", attr.Name)
	assert.Equal(t, EncryptionUserPassword, attr.Encryption)
}

func TestDictionaryAdd(t *testing.T) {
	t.Run("duplicate id", func(t *testing.T) {
		dict := New()
		require.NoError(t, dict.Add(&AttributeDefinition{ID: 1, Name: "User-Name", DataType: DataTypeString}))

		err := dict.Add(&AttributeDefinition{ID: 1, Name: "Other", DataType: DataTypeString})
		assert.ErrorIs(t, err, ErrDuplicateAttribute)
	})

	t.Run("duplicate name within batch", func(t *testing.T) {
		dict := New()
		err := dict.Add(
			&AttributeDefinition{ID: 1, Name: "Same"},
			&AttributeDefinition{ID: 2, Name: "Same"},
		)
		assert.ErrorIs(t, err, ErrDuplicateAttribute)
		assert.Equal(t, 0, dict.Len(), "failed batch must not be partially applied")
	})

	t.Run("invalid", func(t *testing.T) {
		dict := New()
		assert.ErrorIs(t, dict.Add(&AttributeDefinition{ID: 0, Name: "Zero"}), ErrInvalidAttribute)
		assert.ErrorIs(t, dict.Add(&AttributeDefinition{ID: 5}), ErrInvalidAttribute)
		assert.ErrorIs(t, dict.Add(nil), ErrInvalidAttribute)
	})
}

func TestDictionaryReplace(t *testing.T) {
	dict, err := NewDefault()
	require.NoError(t, err)

	require.NoError(t, dict.Replace(&AttributeDefinition{ID: 1, Name: "Login-Name", DataType: DataTypeString}))

	_, ok := dict.LookupByName("User-Name")
	assert.False(t, ok)
	assert.Equal(t, "Login-Name", dict.Name(1))

	err = dict.Replace(&AttributeDefinition{ID: 200, Name: "Login-Name"})
	assert.ErrorIs(t, err, ErrDuplicateAttribute)
	assert.Equal(t, "Login-Name", dict.Name(1))
}

func TestDictionaryName(t *testing.T) {
	dict, err := NewDefault()
	require.NoError(t, err)

	assert.Equal(t, "Acct-Status-Type", dict.Name(40))
	assert.Equal(t, "Attr-250", dict.Name(250))
}

func TestDictionaryAttributesOrdered(t *testing.T) {
	dict, err := NewDefault()
	require.NoError(t, err)

	attrs := dict.Attributes()
	require.Len(t, attrs, len(StandardAttributes))
	for i := 1; i < len(attrs); i++ {
		assert.Less(t, attrs[i-1].ID, attrs[i].ID)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dictionary.yaml")

	content := `attributes:
  - id: 224
    name: Site-Local-Tag
    data_type: string
  - id: 18
    name: Reply-Message
    data_type: string
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	dict, err := LoadFile(path)
	require.NoError(t, err)

	attr, ok := dict.LookupByID(224)
	require.True(t, ok)
	assert.Equal(t, "Site-Local-Tag", attr.Name)
	assert.Equal(t, len(StandardAttributes)+1, dict.Len())

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("attributes: [\n"), 0o600))
		_, err := LoadFile(bad)
		assert.Error(t, err)
	})
}
