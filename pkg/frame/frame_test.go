package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dunesync/dunesync/pkg/schema"
)

func TestNew(t *testing.T) {
	t.Run("valid frame", func(t *testing.T) {
		f, err := New(
			[]string{"id", "name"},
			map[string]schema.ColumnType{
				"id":   {Kind: schema.KindBigInt},
				"name": {Kind: schema.KindText},
			},
			[][]interface{}{{int64(1), "alice"}, {int64(2), "bob"}},
		)
		require.NoError(t, err)
		assert.Equal(t, 2, f.RowCount())
		assert.False(t, f.IsEmpty())
		assert.Equal(t, []string{"id", "name"}, f.Columns())

		typ, ok := f.Type("id")
		require.True(t, ok)
		assert.Equal(t, schema.KindBigInt, typ.Kind)
	})

	t.Run("duplicate column names", func(t *testing.T) {
		_, err := New([]string{"id", "id"}, nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate column")
	})

	t.Run("ragged rows", func(t *testing.T) {
		_, err := New([]string{"a", "b"}, nil, [][]interface{}{{1}})
		assert.Error(t, err)
	})

	t.Run("zero rows keeps type map", func(t *testing.T) {
		types := map[string]schema.ColumnType{
			"a": {Kind: schema.KindBigInt},
			"b": {Kind: schema.KindText},
			"c": {Kind: schema.KindBoolean},
		}
		f, err := New([]string{"a", "b", "c"}, types, nil)
		require.NoError(t, err)
		assert.True(t, f.IsEmpty())
		assert.Zero(t, f.RowCount())
		assert.Len(t, f.Types(), 3)
	})
}

func TestColumn(t *testing.T) {
	f, err := New(
		[]string{"id", "value"},
		nil,
		[][]interface{}{{int64(1), "x"}, {int64(2), "y"}},
	)
	require.NoError(t, err)

	assert.Equal(t, []interface{}{"x", "y"}, f.Column("value"))
	assert.Nil(t, f.Column("missing"))
}
