// Package dune implements the remote-query source: it submits a saved query
// to the Dune Analytics API, polls until the execution terminates, and
// materializes the result into a typed frame.
package dune

import (
	"context"
	"time"

	"go.uber.org/zap"

	duneapi "github.com/dunesync/dunesync/pkg/clients/dune"
	"github.com/dunesync/dunesync/pkg/connector/core"
	"github.com/dunesync/dunesync/pkg/errors"
	"github.com/dunesync/dunesync/pkg/frame"
	"github.com/dunesync/dunesync/pkg/logger"
	"github.com/dunesync/dunesync/pkg/materialize"
)

// Source reads query results from Dune Analytics.
type Source struct {
	client        *duneapi.Client
	queryID       int
	parameters    map[string]string
	pollFrequency time.Duration
	tier          duneapi.PerformanceTier
	log           *zap.Logger
}

// Config holds the settings for a Dune source.
type Config struct {
	APIKey        string
	QueryID       int
	Parameters    map[string]string
	PollFrequency time.Duration
	Tier          duneapi.PerformanceTier
}

// NewSource creates a Dune source. Parameter typing has already been
// validated by the config layer; values arrive as strings, which is the wire
// format the execute endpoint takes.
func NewSource(cfg Config, opts ...duneapi.Option) (*Source, error) {
	if cfg.QueryID <= 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "invalid query id: %d", cfg.QueryID)
	}
	tier := cfg.Tier
	if tier == "" {
		tier = duneapi.TierMedium
	}
	pollFrequency := cfg.PollFrequency
	if pollFrequency <= 0 {
		pollFrequency = time.Second
	}
	return &Source{
		client:        duneapi.NewClient(cfg.APIKey, opts...),
		queryID:       cfg.QueryID,
		parameters:    cfg.Parameters,
		pollFrequency: pollFrequency,
		tier:          tier,
		log:           logger.With(zap.String("source", "dune"), zap.Int("query_id", cfg.QueryID)),
	}, nil
}

var _ core.Source = (*Source)(nil)

// Validate implements core.Source. The query id was checked at construction
// and the API offers no cheap dry-run, so there is nothing further to verify.
func (s *Source) Validate(ctx context.Context) error {
	return nil
}

// Fetch executes the query, waits for a terminal state and materializes the
// result. A terminal execution without a result is an execution error; a
// completed execution with zero rows is a valid empty frame.
func (s *Source) Fetch(ctx context.Context) (*frame.Frame, error) {
	resp, err := s.client.RunQuery(ctx, s.queryID, s.parameters, s.tier, s.pollFrequency)
	if err != nil {
		return nil, err
	}
	if resp.Result == nil {
		err := errors.Newf(errors.ErrorTypeExecution,
			"query %d execution %s terminated without a result", s.queryID, resp.ExecutionID)
		if resp.Error != nil {
			err = err.WithDetail("error", resp.Error.Message)
		}
		return nil, err
	}
	s.log.Debug("query completed",
		zap.String("execution_id", resp.ExecutionID),
		zap.Int("rows", len(resp.Result.Rows)))
	return materialize.Materialize(resp.Result)
}
