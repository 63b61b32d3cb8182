package schema

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"github.com/dunesync/dunesync/pkg/logger"
)

var (
	decimalPattern = regexp.MustCompile(`^decimal\((\d+),\s*(\d+)\)$`)
	varcharPattern = regexp.MustCompile(`^varchar\((\d+)\)$`)
)

// duneTypes maps fixed Dune result type strings to column types.
var duneTypes = map[string]ColumnType{
	"bigint":                   {Kind: KindBigInt},
	"integer":                  {Kind: KindInteger},
	"boolean":                  {Kind: KindBoolean},
	"varchar":                  {Kind: KindText},
	"varbinary":                {Kind: KindBinary},
	"double":                   {Kind: KindDouble},
	"real":                     {Kind: KindDouble},
	"date":                     {Kind: KindDate},
	"timestamp with time zone": {Kind: KindTimestampTZ},
	"uint256":                  {Kind: KindDecimal},
}

// Mapper resolves Dune result type strings to column types. Parametrized
// instantiations are memoized in an internal cache rather than written back
// into the static table, so concurrent jobs share no mutable state.
type Mapper struct {
	mu    sync.RWMutex
	cache map[string]ColumnType
}

// NewMapper returns a Mapper with an empty memo cache.
func NewMapper() *Mapper {
	return &Mapper{cache: make(map[string]ColumnType)}
}

// Resolve maps a Dune type string to a ColumnType. It is total: any input,
// including the empty string and malformed parametrized types, yields a
// usable column type. The column name is only used in log messages.
func (m *Mapper) Resolve(column, typeString string) ColumnType {
	if t, ok := duneTypes[typeString]; ok {
		return t
	}

	m.mu.RLock()
	t, ok := m.cache[typeString]
	m.mu.RUnlock()
	if ok {
		return t
	}

	t, ok = m.parse(column, typeString)
	if !ok {
		logger.Warn("unknown column type, treating as JSONB",
			zap.String("column", column),
			zap.String("type", typeString))
		return ColumnType{Kind: KindJSON}
	}

	m.mu.Lock()
	m.cache[typeString] = t
	m.mu.Unlock()
	return t
}

// parse handles the parametrized forms decimal(P,S) and varchar(N). The
// second return is false when typeString matches neither pattern.
func (m *Mapper) parse(column, typeString string) (ColumnType, bool) {
	if match := decimalPattern.FindStringSubmatch(typeString); match != nil {
		precision, perr := strconv.Atoi(match[1])
		scale, serr := strconv.Atoi(match[2])
		if perr != nil || serr != nil || precision < 1 {
			logger.Error("failed to parse decimal precision and scale",
				zap.String("column", column),
				zap.String("type", typeString))
			return ColumnType{Kind: KindDecimal}, true
		}
		return Decimal(precision, scale), true
	}

	if match := varcharPattern.FindStringSubmatch(typeString); match != nil {
		length, err := strconv.Atoi(match[1])
		if err != nil {
			logger.Error("failed to parse varchar length",
				zap.String("column", column),
				zap.String("type", typeString))
			return ColumnType{Kind: KindText}, true
		}
		return ColumnType{Kind: KindText, Length: length}, true
	}

	return ColumnType{}, false
}

// FromOID maps a PostgreSQL type OID to a column type, used when a frame is
// built from a relational query result. Unmapped OIDs come back as json so
// structured values survive as serialized text.
func FromOID(oid uint32) ColumnType {
	switch oid {
	case pgtype.BoolOID:
		return ColumnType{Kind: KindBoolean}
	case pgtype.ByteaOID:
		return ColumnType{Kind: KindBinary}
	case pgtype.Int2OID, pgtype.Int8OID:
		return ColumnType{Kind: KindBigInt}
	case pgtype.Int4OID:
		return ColumnType{Kind: KindInteger}
	case pgtype.TextOID, pgtype.BPCharOID, pgtype.VarcharOID:
		return ColumnType{Kind: KindText}
	case pgtype.Float4OID, pgtype.Float8OID:
		return ColumnType{Kind: KindDouble}
	case pgtype.DateOID:
		return ColumnType{Kind: KindDate}
	case pgtype.TimestampOID, pgtype.TimestamptzOID:
		return ColumnType{Kind: KindTimestampTZ}
	case pgtype.NumericOID:
		return ColumnType{Kind: KindDecimal}
	default:
		return ColumnType{Kind: KindJSON}
	}
}
