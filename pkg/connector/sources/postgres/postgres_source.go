// Package postgres implements the relational source: it runs an arbitrary
// SQL query (inline or from a .sql file) against PostgreSQL and converts the
// result into a typed frame using the same interchange conventions as the
// Dune side, so either destination can consume it.
package postgres

import (
	"context"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dunesync/dunesync/pkg/connector/core"
	"github.com/dunesync/dunesync/pkg/errors"
	"github.com/dunesync/dunesync/pkg/frame"
	"github.com/dunesync/dunesync/pkg/logger"
	"github.com/dunesync/dunesync/pkg/materialize"
	"github.com/dunesync/dunesync/pkg/schema"
)

// Source reads from PostgreSQL via an arbitrary SQL query.
type Source struct {
	pool  *pgxpool.Pool
	query string
	log   *zap.Logger
}

// NewSource creates a PostgreSQL source. query is either a literal SQL string
// or a path ending in .sql whose contents become the query; a missing file is
// a configuration error.
func NewSource(ctx context.Context, dbURL, query string) (*Source, error) {
	resolved, err := resolveQuery(query)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create connection pool")
	}
	return &Source{
		pool:  pool,
		query: resolved,
		log:   logger.With(zap.String("source", "postgres")),
	}, nil
}

// resolveQuery loads the query text from a .sql file when the string refers
// to one, otherwise returns it unchanged.
func resolveQuery(query string) (string, error) {
	trimmed := strings.TrimSpace(query)
	if !strings.HasSuffix(strings.ToLower(trimmed), ".sql") {
		return query, nil
	}
	contents, err := os.ReadFile(trimmed)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConfig,
			"query refers to an sql file that cannot be read: "+trimmed)
	}
	return string(contents), nil
}

var _ core.Source = (*Source)(nil)
var _ core.Closer = (*Source)(nil)

// Validate compiles the query without executing it via EXPLAIN. An invalid
// query is a configuration error.
func (s *Source) Validate(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, "EXPLAIN "+s.query)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "invalid SQL query")
	}
	rows.Close()
	return rows.Err()
}

// Fetch executes the query and returns the full result set. Binary columns
// are re-encoded as "0x"-hex interchange strings and structured values are
// serialized to JSON text, mirroring the materializer's conventions.
func (s *Source) Fetch(ctx context.Context) (*frame.Frame, error) {
	rows, err := s.pool.Query(ctx, s.query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "query execution failed")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	types := make(map[string]schema.ColumnType, len(fields))
	for i, fd := range fields {
		columns[i] = string(fd.Name)
		types[columns[i]] = schema.FromOID(fd.DataTypeOID)
	}

	var data [][]interface{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read row values")
		}
		row := make([]interface{}, len(values))
		for i, v := range values {
			row[i] = convertValue(v)
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "query execution failed")
	}

	s.log.Debug("fetched rows", zap.Int("count", len(data)))
	return frame.New(columns, types, data)
}

// convertValue normalizes a driver value for interchange: raw bytes become
// "0x"-hex strings, numeric columns become exact decimal text and nested
// structures become JSON text. Scalars pass through unchanged.
func convertValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return materialize.EncodeHex(val)
	case pgtype.Numeric:
		// MarshalJSON renders plain decimal digits, not the driver's
		// exponent form; a float64 round-trip would corrupt uint256-scale
		// values.
		if !val.Valid {
			return nil
		}
		if data, err := val.MarshalJSON(); err == nil {
			return string(data)
		}
		return val
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(val)
		if err != nil {
			return val
		}
		return string(data)
	default:
		return v
	}
}

// Close releases the connection pool.
func (s *Source) Close() {
	s.pool.Close()
}
