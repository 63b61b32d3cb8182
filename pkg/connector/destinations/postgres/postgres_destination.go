// Package postgres implements the relational write engine. A Destination
// applies one frame per call to a target table under one of four conflict
// policies, creating the table on first write and verifying uniqueness
// constraints before conflict-based writes.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dunesync/dunesync/pkg/connector/core"
	"github.com/dunesync/dunesync/pkg/errors"
	"github.com/dunesync/dunesync/pkg/frame"
	"github.com/dunesync/dunesync/pkg/logger"
)

// Policy selects how a save call reconciles incoming rows with the target
// table.
type Policy string

const (
	// PolicyAppend bulk-inserts without touching existing rows.
	PolicyAppend Policy = "append"
	// PolicyReplace drops and recreates the table with the new schema.
	PolicyReplace Policy = "replace"
	// PolicyUpsert overwrites conflicting rows column-wise, incoming wins.
	PolicyUpsert Policy = "upsert"
	// PolicyInsertIgnore silently skips conflicting rows.
	PolicyInsertIgnore Policy = "insert_ignore"
)

// ParsePolicy converts a config string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(s)) {
	case PolicyAppend, PolicyReplace, PolicyUpsert, PolicyInsertIgnore:
		return Policy(strings.ToLower(s)), nil
	case "":
		return PolicyAppend, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "invalid if_exists policy: %q", s)
	}
}

// requiresIndexColumns reports whether the policy needs a conflict key.
func (p Policy) requiresIndexColumns() bool {
	return p == PolicyUpsert || p == PolicyInsertIgnore
}

// Destination writes frames to a PostgreSQL table.
type Destination struct {
	pool         *pgxpool.Pool
	schemaName   string
	tableName    string
	policy       Policy
	indexColumns []string
	log          *zap.Logger
}

// NewDestination creates a PostgreSQL destination for tableName, which may be
// schema-qualified as "schema.table" (default schema is public). A
// conflict-based policy without index columns is a configuration error,
// rejected here rather than at write time.
func NewDestination(ctx context.Context, dbURL, tableName string, policy Policy, indexColumns []string) (*Destination, error) {
	if policy.requiresIndexColumns() && len(indexColumns) == 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig,
			"policy %q requires a non-empty index_columns list", policy)
	}

	schemaName := "public"
	if i := strings.Index(tableName, "."); i >= 0 {
		schemaName, tableName = tableName[:i], tableName[i+1:]
	}
	if tableName == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "destination table name is empty")
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create connection pool")
	}

	return &Destination{
		pool:         pool,
		schemaName:   schemaName,
		tableName:    tableName,
		policy:       policy,
		indexColumns: indexColumns,
		log: logger.With(
			zap.String("destination", "postgres"),
			zap.String("table", schemaName+"."+tableName)),
	}, nil
}

var _ core.Destination = (*Destination)(nil)
var _ core.Closer = (*Destination)(nil)

// Validate checks that the destination schema exists. The table itself may
// legitimately not exist yet; it is created on first write.
func (d *Destination) Validate(ctx context.Context) error {
	rows, err := d.pool.Query(ctx, "SELECT schema_name FROM information_schema.schemata")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to list schemas")
	}
	defer rows.Close()

	var available []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to list schemas")
		}
		if name == d.schemaName {
			return nil
		}
		available = append(available, name)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to list schemas")
	}

	d.log.Error("destination schema does not exist",
		zap.String("schema", d.schemaName),
		zap.Strings("available", available),
		zap.String("remediation", fmt.Sprintf("CREATE SCHEMA %s;", d.schemaName)))
	return errors.Newf(errors.ErrorTypeConfig,
		"schema %q does not exist; run: CREATE SCHEMA %s;", d.schemaName, d.schemaName)
}

// Save writes the frame under the configured policy and returns the number
// of affected rows. An empty frame is a no-op: it neither creates nor drops
// tables.
func (d *Destination) Save(ctx context.Context, f *frame.Frame) (int64, error) {
	if f.IsEmpty() {
		d.log.Warn("frame is empty, skipping save")
		return 0, nil
	}

	var affected int64
	var err error
	switch d.policy {
	case PolicyAppend:
		affected, err = d.append(ctx, f)
	case PolicyReplace:
		affected, err = d.replace(ctx, f)
	case PolicyUpsert:
		affected, err = d.insert(ctx, f, onConflictUpdate)
	case PolicyInsertIgnore:
		affected, err = d.insert(ctx, f, onConflictNothing)
	default:
		return 0, errors.Newf(errors.ErrorTypeConfig, "invalid if_exists policy: %q", d.policy)
	}
	if err != nil {
		return 0, err
	}
	d.log.Info("data saved", zap.Int64("affected_rows", affected))
	return affected, nil
}

// append bulk-inserts all rows, creating the table on first write.
func (d *Destination) append(ctx context.Context, f *frame.Frame) (int64, error) {
	return d.withTx(ctx, func(tx pgx.Tx) (int64, error) {
		if _, err := tx.Exec(ctx, d.createTableSQL(f)); err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeQuery, "failed to create table")
		}
		return d.copyRows(ctx, tx, f)
	})
}

// replace transactionally drops the table, recreates it with the frame's
// schema and bulk-inserts. Prior data and schema are discarded.
func (d *Destination) replace(ctx context.Context, f *frame.Frame) (int64, error) {
	return d.withTx(ctx, func(tx pgx.Tx) (int64, error) {
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+d.qualifiedTable()); err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeQuery, "failed to drop table")
		}
		if _, err := tx.Exec(ctx, d.createTableSQL(f)); err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeQuery, "failed to create table")
		}
		return d.copyRows(ctx, tx, f)
	})
}

type conflictAction int

const (
	onConflictUpdate conflictAction = iota
	onConflictNothing
)

// insert handles the conflict-based policies. When the table does not exist
// yet there is no constraint to violate, so the write degrades to append.
func (d *Destination) insert(ctx context.Context, f *frame.Frame, action conflictAction) (int64, error) {
	exists, err := d.tableExists(ctx)
	if err != nil {
		return 0, err
	}
	if !exists {
		d.log.Info("table does not exist yet, falling back to append")
		return d.append(ctx, f)
	}

	if err := d.validateUniqueConstraints(ctx); err != nil {
		return 0, err
	}

	columns := f.Columns()
	rows, err := coerceRows(f)
	if err != nil {
		return 0, err
	}

	return d.withTx(ctx, func(tx pgx.Tx) (int64, error) {
		var affected int64
		for _, chunk := range chunkRows(rows, maxRowsPerStatement(len(columns))) {
			sql, args := d.insertSQL(columns, chunk, action)
			tag, err := tx.Exec(ctx, sql, args...)
			if err != nil {
				return 0, errors.Wrap(err, errors.ErrorTypeQuery, "insert failed")
			}
			affected += tag.RowsAffected()
		}
		return affected, nil
	})
}

// withTx runs fn inside a single transaction so a partial failure leaves the
// table in its pre-call state.
func (d *Destination) withTx(ctx context.Context, fn func(tx pgx.Tx) (int64, error)) (int64, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeConnection, "failed to begin transaction")
	}
	affected, err := fn(tx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeConnection, "failed to commit transaction")
	}
	return affected, nil
}

// copyRows bulk-loads the frame through COPY.
func (d *Destination) copyRows(ctx context.Context, tx pgx.Tx, f *frame.Frame) (int64, error) {
	rows, err := coerceRows(f)
	if err != nil {
		return 0, err
	}
	count, err := tx.CopyFrom(ctx,
		pgx.Identifier{d.schemaName, d.tableName},
		f.Columns(),
		pgx.CopyFromRows(rows))
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeQuery, "bulk copy failed")
	}
	return count, nil
}

// tableExists re-queries the catalog on every call; table shape can change
// externally between batches.
func (d *Destination) tableExists(ctx context.Context) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)`, d.schemaName, d.tableName).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeConnection, "failed to check table existence")
	}
	return exists, nil
}

// validateUniqueConstraints verifies the target table has a unique or
// primary-key constraint whose column set exactly equals the configured
// index columns. Failing closed here prevents ON CONFLICT from silently
// misbehaving; the log carries the DDL an operator should run.
func (d *Destination) validateUniqueConstraints(ctx context.Context) error {
	rows, err := d.pool.Query(ctx,
		`SELECT tc.constraint_name, kcu.column_name
		 FROM information_schema.table_constraints tc
		 JOIN information_schema.key_column_usage kcu
		   ON tc.constraint_name = kcu.constraint_name
		  AND tc.table_schema = kcu.table_schema
		 WHERE tc.table_schema = $1
		   AND tc.table_name = $2
		   AND tc.constraint_type IN ('UNIQUE', 'PRIMARY KEY')`,
		d.schemaName, d.tableName)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to inspect constraints")
	}
	defer rows.Close()

	constraints := make(map[string]map[string]bool)
	for rows.Next() {
		var constraint, column string
		if err := rows.Scan(&constraint, &column); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to inspect constraints")
		}
		if constraints[constraint] == nil {
			constraints[constraint] = make(map[string]bool)
		}
		constraints[constraint][column] = true
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to inspect constraints")
	}

	want := make(map[string]bool, len(d.indexColumns))
	for _, c := range d.indexColumns {
		want[c] = true
	}
	for _, columns := range constraints {
		if sameColumnSet(columns, want) {
			return nil
		}
	}

	indexColumns := strings.Join(d.indexColumns, ", ")
	suggestion := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s_%s_unique UNIQUE (%s);",
		d.tableName, d.tableName, strings.Join(d.indexColumns, "_"), indexColumns)
	d.log.Error("no unique constraint covers the index columns",
		zap.String("columns", indexColumns),
		zap.String("remediation", suggestion))
	return errors.Newf(errors.ErrorTypeConstraint,
		"ON CONFLICT requires a unique or primary-key constraint on (%s); to fix, run: %s",
		indexColumns, suggestion)
}

func sameColumnSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for col := range a {
		if !b[col] {
			return false
		}
	}
	return true
}

// Close releases the connection pool.
func (d *Destination) Close() {
	d.pool.Close()
}
