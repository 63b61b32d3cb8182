// Package job ties one source to one destination and runs the transfer:
// validate both sides, fetch the full result set, skip empty results with a
// warning, save, and report the affected row count.
package job

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dunesync/dunesync/pkg/connector/core"
	"github.com/dunesync/dunesync/pkg/errors"
	"github.com/dunesync/dunesync/pkg/logger"
	"github.com/dunesync/dunesync/pkg/metrics"
)

// Database enumerates the systems a job can read from or write to.
type Database string

const (
	DatabasePostgres Database = "postgres"
	DatabaseDune     Database = "dune"
)

// DatabaseFromString parses a config value into a Database.
func DatabaseFromString(s string) (Database, error) {
	switch Database(strings.ToLower(s)) {
	case DatabasePostgres:
		return DatabasePostgres, nil
	case DatabaseDune:
		return DatabaseDune, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unknown database type: %q", s)
	}
}

// Job is one named (source, destination) transfer. A job owns its connectors
// for its lifetime and does not share them.
type Job struct {
	Name        string
	Source      core.Source
	Destination core.Destination
}

// Run executes the job. Within a run execution is strictly sequential: the
// fetch completes fully before the save begins. An empty result set is not
// an error.
func (j *Job) Run(ctx context.Context) error {
	log := logger.ForJob(j.Name).With(zap.String("run_id", uuid.NewString()))
	start := time.Now()
	err := j.run(ctx, log)
	duration := time.Since(start)
	metrics.RecordJob(j.Name, duration, err == nil)
	if err != nil {
		log.Error("job failed", zap.Duration("duration", duration), zap.Error(err))
		return err
	}
	return nil
}

func (j *Job) run(ctx context.Context, log *zap.Logger) error {
	if err := j.Source.Validate(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid source configuration")
	}
	if err := j.Destination.Validate(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid destination configuration")
	}

	log.Info("fetching data")
	f, err := j.Source.Fetch(ctx)
	if err != nil {
		return err
	}

	if f.IsEmpty() {
		log.Warn("no query results found, skipping write")
		return nil
	}

	log.Info("saving data", zap.Int("records_fetched", f.RowCount()))
	affected, err := j.Destination.Save(ctx, f)
	if err != nil {
		return err
	}
	log.Info("job completed",
		zap.Int64("affected_rows", affected),
		zap.Int("records_fetched", f.RowCount()))
	return nil
}

// Close releases any connections the job's connectors hold.
func (j *Job) Close() {
	if c, ok := j.Source.(core.Closer); ok {
		c.Close()
	}
	if c, ok := j.Destination.(core.Closer); ok {
		c.Close()
	}
}

// String implements fmt.Stringer for log labels.
func (j *Job) String() string {
	return j.Name
}
