package schema

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapperResolve(t *testing.T) {
	m := NewMapper()

	tests := []struct {
		typeString string
		want       ColumnType
	}{
		{"bigint", ColumnType{Kind: KindBigInt}},
		{"integer", ColumnType{Kind: KindInteger}},
		{"boolean", ColumnType{Kind: KindBoolean}},
		{"varchar", ColumnType{Kind: KindText}},
		{"varbinary", ColumnType{Kind: KindBinary}},
		{"double", ColumnType{Kind: KindDouble}},
		{"real", ColumnType{Kind: KindDouble}},
		{"date", ColumnType{Kind: KindDate}},
		{"timestamp with time zone", ColumnType{Kind: KindTimestampTZ}},
		{"uint256", ColumnType{Kind: KindDecimal}},
		{"decimal(38,0)", Decimal(38, 0)},
		{"decimal(2, 10)", Decimal(2, 10)},
		{"varchar(255)", ColumnType{Kind: KindText, Length: 255}},
		{"map(varchar,integer)", ColumnType{Kind: KindJSON}},
		{"array(varbinary)", ColumnType{Kind: KindJSON}},
		{"", ColumnType{Kind: KindJSON}},
	}
	for _, tt := range tests {
		t.Run(tt.typeString, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Resolve("col", tt.typeString))
		})
	}
}

// Resolve must be total: no input string may panic or error out.
func TestMapperResolveTotality(t *testing.T) {
	m := NewMapper()
	inputs := []string{
		"", "float", "decimal(", "decimal()", "decimal(2)", "decimal(a,b)",
		"varchar(", "varchar(x)", "decimal(0,0)", "map(varchar,integer)",
		"decimal(99999999999999999999,1)",
	}
	for _, in := range inputs {
		t.Run(fmt.Sprintf("input=%q", in), func(t *testing.T) {
			assert.NotPanics(t, func() {
				got := m.Resolve("col", in)
				assert.NotEmpty(t, got.Kind)
			})
		})
	}
}

func TestMapperResolveDecimalRoundTrip(t *testing.T) {
	m := NewMapper()
	for _, pair := range [][2]int{{1, 0}, {18, 6}, {38, 0}, {76, 18}} {
		typeString := fmt.Sprintf("decimal(%d,%d)", pair[0], pair[1])
		got := m.Resolve("col", typeString)
		require.Equal(t, KindDecimal, got.Kind)
		assert.Equal(t, pair[0], got.Precision)
		assert.Equal(t, pair[1], got.Scale)
	}
}

// decimal(0,0) matches the pattern but is not a valid precision; it must
// still yield a usable fallback numeric.
func TestMapperResolveDecimalFallback(t *testing.T) {
	m := NewMapper()
	got := m.Resolve("col", "decimal(0,0)")
	assert.Equal(t, KindDecimal, got.Kind)
	assert.Zero(t, got.Precision)
}

func TestMapperCachesParametrizedTypes(t *testing.T) {
	m := NewMapper()
	first := m.Resolve("a", "decimal(10,2)")
	second := m.Resolve("b", "decimal(10,2)")
	assert.Equal(t, first, second)
	assert.Len(t, m.cache, 1)
}

func TestFromOID(t *testing.T) {
	tests := []struct {
		oid  uint32
		want Kind
	}{
		{pgtype.BoolOID, KindBoolean},
		{pgtype.ByteaOID, KindBinary},
		{pgtype.Int2OID, KindBigInt},
		{pgtype.Int8OID, KindBigInt},
		{pgtype.Int4OID, KindInteger},
		{pgtype.TextOID, KindText},
		{pgtype.VarcharOID, KindText},
		{pgtype.Float8OID, KindDouble},
		{pgtype.DateOID, KindDate},
		{pgtype.TimestamptzOID, KindTimestampTZ},
		{pgtype.NumericOID, KindDecimal},
		{pgtype.JSONBOID, KindJSON},
		{99999, KindJSON},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FromOID(tt.oid).Kind, "oid %d", tt.oid)
	}
}

func TestColumnTypePostgresType(t *testing.T) {
	tests := []struct {
		in   ColumnType
		want string
	}{
		{ColumnType{Kind: KindBigInt}, "BIGINT"},
		{ColumnType{Kind: KindInteger}, "INTEGER"},
		{ColumnType{Kind: KindBoolean}, "BOOLEAN"},
		{ColumnType{Kind: KindText}, "TEXT"},
		{ColumnType{Kind: KindText, Length: 42}, "TEXT"}, // varchar widens
		{ColumnType{Kind: KindBinary}, "BYTEA"},
		{ColumnType{Kind: KindDouble}, "DOUBLE PRECISION"},
		{ColumnType{Kind: KindDate}, "DATE"},
		{ColumnType{Kind: KindTimestampTZ}, "TIMESTAMPTZ"},
		{Decimal(38, 0), "NUMERIC(38,0)"},
		{ColumnType{Kind: KindDecimal}, "NUMERIC"},
		{ColumnType{Kind: KindJSON}, "JSONB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.PostgresType())
	}
}

func TestColumnTypeDuneType(t *testing.T) {
	assert.Equal(t, "bigint", ColumnType{Kind: KindBigInt}.DuneType())
	assert.Equal(t, "varbinary", ColumnType{Kind: KindBinary}.DuneType())
	assert.Equal(t, "timestamp", ColumnType{Kind: KindTimestampTZ}.DuneType())
	assert.Equal(t, "uint256", Decimal(38, 0).DuneType())
	assert.Equal(t, "varchar", ColumnType{Kind: KindJSON}.DuneType())
}
