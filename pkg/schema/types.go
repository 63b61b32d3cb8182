// Package schema defines the column type system shared by both sync
// directions: the semantic ColumnType carried by a frame, the mapping from
// Dune result types onto it, and its rendering as PostgreSQL column DDL or a
// Dune table-schema type.
package schema

import "fmt"

// Kind is the semantic type of a column.
type Kind string

const (
	KindBigInt      Kind = "bigint"
	KindInteger     Kind = "integer"
	KindBoolean     Kind = "boolean"
	KindText        Kind = "text"
	KindBinary      Kind = "binary"
	KindDouble      Kind = "double"
	KindDate        Kind = "date"
	KindTimestampTZ Kind = "timestamptz"
	KindDecimal     Kind = "decimal"
	KindJSON        Kind = "json"
)

// ColumnType is the resolved type of a single column. Precision and Scale are
// meaningful only for KindDecimal; zero values mean an unconstrained numeric.
// Length records a parsed varchar(N) bound. It is kept for diagnostics but
// does not narrow the rendered type: varchar columns widen to unbounded TEXT.
type ColumnType struct {
	Kind      Kind
	Precision int
	Scale     int
	Length    int
}

// Decimal returns a decimal column type with the given precision and scale.
func Decimal(precision, scale int) ColumnType {
	return ColumnType{Kind: KindDecimal, Precision: precision, Scale: scale}
}

// String implements fmt.Stringer.
func (t ColumnType) String() string {
	if t.Kind == KindDecimal && t.Precision > 0 {
		return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
	}
	return string(t.Kind)
}

// PostgresType renders the column type as PostgreSQL DDL.
func (t ColumnType) PostgresType() string {
	switch t.Kind {
	case KindBigInt:
		return "BIGINT"
	case KindInteger:
		return "INTEGER"
	case KindBoolean:
		return "BOOLEAN"
	case KindText:
		return "TEXT"
	case KindBinary:
		return "BYTEA"
	case KindDouble:
		return "DOUBLE PRECISION"
	case KindDate:
		return "DATE"
	case KindTimestampTZ:
		return "TIMESTAMPTZ"
	case KindDecimal:
		if t.Precision > 0 {
			return fmt.Sprintf("NUMERIC(%d,%d)", t.Precision, t.Scale)
		}
		return "NUMERIC"
	case KindJSON:
		return "JSONB"
	default:
		return "TEXT"
	}
}

// DuneType renders the column type as a Dune table-schema type, used when
// creating a table through the upload API. The API accepts a narrower set of
// names than query results carry, so several kinds collapse.
func (t ColumnType) DuneType() string {
	switch t.Kind {
	case KindBigInt:
		return "bigint"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindBinary:
		return "varbinary"
	case KindDouble:
		return "double"
	case KindDate, KindTimestampTZ:
		return "timestamp"
	case KindDecimal:
		return "uint256"
	default:
		return "varchar"
	}
}
