package materialize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dunesync/dunesync/pkg/clients/dune"
	"github.com/dunesync/dunesync/pkg/schema"
)

func TestHexRoundTrip(t *testing.T) {
	decoded, err := DecodeHex("0x48656c6c6f")
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello"), decoded)
	assert.Equal(t, "0x48656c6c6f", EncodeHex([]byte("Hello")))
}

func TestMaterialize(t *testing.T) {
	result := &dune.ExecutionResult{
		Metadata: dune.ResultMetadata{
			ColumnNames: []string{"block_number", "is_success", "tx_hash", "label"},
			ColumnTypes: []string{"bigint", "boolean", "varbinary", "varchar"},
		},
		Rows: []map[string]interface{}{
			{
				"block_number": int64(20849352),
				"is_success":   true,
				"tx_hash":      "0x5f0b",
				"label":        "Fee",
			},
		},
	}

	f, err := Materialize(result)
	require.NoError(t, err)
	require.Equal(t, 1, f.RowCount())

	row := f.Rows()[0]
	assert.Equal(t, int64(20849352), row[0])
	assert.Equal(t, true, row[1])
	assert.Equal(t, []byte{0x5f, 0x0b}, row[2])
	assert.Equal(t, "Fee", row[3])

	typ, ok := f.Type("tx_hash")
	require.True(t, ok)
	assert.Equal(t, schema.KindBinary, typ.Kind)
	typ, ok = f.Type("block_number")
	require.True(t, ok)
	assert.Equal(t, schema.KindBigInt, typ.Kind)
}

func TestMaterializeVarbinaryNulls(t *testing.T) {
	result := &dune.ExecutionResult{
		Metadata: dune.ResultMetadata{
			ColumnNames: []string{"data"},
			ColumnTypes: []string{"varbinary"},
		},
		Rows: []map[string]interface{}{
			{"data": "0x1234"},
			{"data": "0xabcd"},
			{"data": nil},
			{}, // missing key
		},
	}

	f, err := Materialize(result)
	require.NoError(t, err)
	cells := f.Column("data")
	assert.Equal(t, []byte{0x12, 0x34}, cells[0])
	assert.Equal(t, []byte{0xab, 0xcd}, cells[1])
	assert.Nil(t, cells[2])
	assert.Nil(t, cells[3])
}

func TestMaterializeUnknownTypeFallback(t *testing.T) {
	result := &dune.ExecutionResult{
		Metadata: dune.ResultMetadata{
			ColumnNames: []string{"balances"},
			ColumnTypes: []string{"map(varchar,integer)"},
		},
		Rows: []map[string]interface{}{
			{"balances": map[string]interface{}{"eth": float64(2)}},
		},
	}

	f, err := Materialize(result)
	require.NoError(t, err)

	typ, ok := f.Type("balances")
	require.True(t, ok)
	assert.Equal(t, schema.KindJSON, typ.Kind)
	assert.Equal(t, `{"eth":2}`, f.Rows()[0][0])
}

// Zero rows must still yield the full type map for downstream table creation.
func TestMaterializeEmptyResult(t *testing.T) {
	result := &dune.ExecutionResult{
		Metadata: dune.ResultMetadata{
			ColumnNames: []string{"a", "b", "c"},
			ColumnTypes: []string{"bigint", "varbinary", "decimal(10,2)"},
		},
	}

	f, err := Materialize(result)
	require.NoError(t, err)
	assert.True(t, f.IsEmpty())
	assert.Zero(t, f.RowCount())
	assert.Len(t, f.Types(), 3)

	typ, ok := f.Type("c")
	require.True(t, ok)
	assert.Equal(t, 10, typ.Precision)
	assert.Equal(t, 2, typ.Scale)
}

// A malformed hex cell must not abort the batch; it passes through.
func TestMaterializeBadHexPassesThrough(t *testing.T) {
	result := &dune.ExecutionResult{
		Metadata: dune.ResultMetadata{
			ColumnNames: []string{"data"},
			ColumnTypes: []string{"varbinary"},
		},
		Rows: []map[string]interface{}{
			{"data": "0xzz"},
			{"data": "0x1234"},
		},
	}

	f, err := Materialize(result)
	require.NoError(t, err)
	assert.Equal(t, "0xzz", f.Rows()[0][0])
	assert.Equal(t, []byte{0x12, 0x34}, f.Rows()[1][0])
}
