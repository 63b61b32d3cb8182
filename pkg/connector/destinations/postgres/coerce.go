package postgres

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dunesync/dunesync/pkg/errors"
	"github.com/dunesync/dunesync/pkg/frame"
	"github.com/dunesync/dunesync/pkg/materialize"
	"github.com/dunesync/dunesync/pkg/schema"
)

// timestampLayouts are the textual forms timestamp cells arrive in. Dune
// renders "2024-09-25 16:15:13.000 UTC"; ISO 8601 and bare dates also occur.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.000 MST",
	"2006-01-02 15:04:05 MST",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

// coerceRows converts every cell of the frame into a value pgx can encode
// for the column's declared type. Wire values carry JSON typing (numbers,
// strings), not database typing, so the translation happens here at the
// write boundary.
func coerceRows(f *frame.Frame) ([][]interface{}, error) {
	columns := f.Columns()
	types := make([]schema.ColumnType, len(columns))
	for i, name := range columns {
		types[i], _ = f.Type(name)
	}

	out := make([][]interface{}, len(f.Rows()))
	for r, row := range f.Rows() {
		converted := make([]interface{}, len(row))
		for c, cell := range row {
			v, err := coerceCell(types[c], cell)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeData,
					fmt.Sprintf("column %q row %d", columns[c], r))
			}
			converted[c] = v
		}
		out[r] = converted
	}
	return out, nil
}

func coerceCell(t schema.ColumnType, cell interface{}) (interface{}, error) {
	if cell == nil {
		return nil, nil
	}
	switch t.Kind {
	case schema.KindBigInt, schema.KindInteger:
		return toInt64(cell)
	case schema.KindDouble:
		return toFloat64(cell)
	case schema.KindBoolean:
		return toBool(cell)
	case schema.KindDecimal:
		return toNumeric(cell)
	case schema.KindDate, schema.KindTimestampTZ:
		return toTime(cell)
	case schema.KindBinary:
		return toBytes(cell)
	case schema.KindJSON:
		return toJSON(cell)
	default:
		return toText(cell)
	}
}

func toInt64(cell interface{}) (interface{}, error) {
	switch v := cell.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return nil, fmt.Errorf("cannot convert %T to integer", cell)
	}
}

func toFloat64(cell interface{}) (interface{}, error) {
	switch v := cell.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return nil, fmt.Errorf("cannot convert %T to double", cell)
	}
}

func toBool(cell interface{}) (interface{}, error) {
	switch v := cell.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return nil, fmt.Errorf("cannot convert %T to boolean", cell)
	}
}

// toNumeric goes through pgtype.Numeric so arbitrary-precision values
// (uint256, decimal(p,s)) survive without a float round-trip.
func toNumeric(cell interface{}) (interface{}, error) {
	var s string
	switch v := cell.(type) {
	case pgtype.Numeric:
		return v, nil
	case string:
		s = v
	case json.Number:
		s = v.String()
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		s = strconv.FormatInt(v, 10)
	default:
		return nil, fmt.Errorf("cannot convert %T to numeric", cell)
	}
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return nil, err
	}
	return n, nil
}

func toTime(cell interface{}) (interface{}, error) {
	switch v := cell.(type) {
	case time.Time:
		return v, nil
	case string:
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts, nil
			}
		}
		return nil, fmt.Errorf("unrecognized timestamp format %q", v)
	default:
		return nil, fmt.Errorf("cannot convert %T to timestamp", cell)
	}
}

func toBytes(cell interface{}) (interface{}, error) {
	switch v := cell.(type) {
	case []byte:
		return v, nil
	case string:
		if strings.HasPrefix(v, "0x") {
			return materialize.DecodeHex(v)
		}
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to bytes", cell)
	}
}

func toJSON(cell interface{}) (interface{}, error) {
	switch v := cell.(type) {
	case string:
		return v, nil
	case []byte:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
}

func toText(cell interface{}) (interface{}, error) {
	switch v := cell.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	default:
		return fmt.Sprint(v), nil
	}
}
