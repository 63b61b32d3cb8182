// Package config loads the YAML runtime configuration and builds the
// configured jobs. All configuration problems surface here, at load time:
// unknown database kinds, bad conflict-policy combinations, malformed query
// parameters and missing environment variables never reach a running job.
package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	duneapi "github.com/dunesync/dunesync/pkg/clients/dune"
	"github.com/dunesync/dunesync/pkg/connector/core"
	dunedest "github.com/dunesync/dunesync/pkg/connector/destinations/dune"
	pgdest "github.com/dunesync/dunesync/pkg/connector/destinations/postgres"
	dunesrc "github.com/dunesync/dunesync/pkg/connector/sources/dune"
	pgsrc "github.com/dunesync/dunesync/pkg/connector/sources/postgres"
	"github.com/dunesync/dunesync/pkg/errors"
	"github.com/dunesync/dunesync/pkg/job"
)

// dbRefConfig is a named database reference: an API key or connection
// string, possibly containing ${VAR} environment references.
type dbRefConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Key  string `yaml:"key"`
}

// parameterConfig is one typed Dune query parameter.
type parameterConfig struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// sourceConfig configures a job's source side.
type sourceConfig struct {
	Ref           string            `yaml:"ref"`
	QueryID       int               `yaml:"query_id"`
	Parameters    []parameterConfig `yaml:"parameters"`
	PollFrequency int               `yaml:"poll_frequency"`
	QueryEngine   string            `yaml:"query_engine"`
	QueryString   string            `yaml:"query_string"`
}

// destinationConfig configures a job's destination side.
type destinationConfig struct {
	Ref          string   `yaml:"ref"`
	TableName    string   `yaml:"table_name"`
	IfExists     string   `yaml:"if_exists"`
	IndexColumns []string `yaml:"index_columns"`
}

// jobConfig is one job entry of the config file.
type jobConfig struct {
	Name        string            `yaml:"name"`
	Source      sourceConfig      `yaml:"source"`
	Destination destinationConfig `yaml:"destination"`
}

// fileConfig is the whole config file.
type fileConfig struct {
	Sources      []dbRefConfig `yaml:"sources"`
	Destinations []dbRefConfig `yaml:"destinations"`
	Jobs         []jobConfig   `yaml:"jobs"`
}

// dbRef is a resolved database reference.
type dbRef struct {
	name string
	kind job.Database
	key  string
}

// RuntimeConfig holds the fully built jobs.
type RuntimeConfig struct {
	Jobs []*job.Job
}

// Load reads and parses the config file at path and builds every configured
// job, connecting sources and destinations eagerly.
func Load(ctx context.Context, path string) (*RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file")
	}

	sources, err := resolveRefs(cfg.Sources)
	if err != nil {
		return nil, err
	}
	destinations, err := resolveRefs(cfg.Destinations)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(cfg.Jobs))
	jobs := make([]*job.Job, 0, len(cfg.Jobs))
	for i, jc := range cfg.Jobs {
		if jc.Name == "" {
			return nil, errors.Newf(errors.ErrorTypeConfig, "job %d has no name", i)
		}
		if seen[jc.Name] {
			return nil, errors.Newf(errors.ErrorTypeConfig, "duplicate job name: %q", jc.Name)
		}
		seen[jc.Name] = true

		src, err := buildSource(ctx, jc.Source, sources)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig,
				fmt.Sprintf("job %q source", jc.Name))
		}
		dst, err := buildDestination(ctx, jc.Destination, destinations)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig,
				fmt.Sprintf("job %q destination", jc.Name))
		}
		jobs = append(jobs, &job.Job{Name: jc.Name, Source: src, Destination: dst})
	}

	return &RuntimeConfig{Jobs: jobs}, nil
}

// resolveRefs interpolates environment variables into the database
// references and indexes them by name.
func resolveRefs(refs []dbRefConfig) (map[string]dbRef, error) {
	out := make(map[string]dbRef, len(refs))
	for _, r := range refs {
		kind, err := job.DatabaseFromString(r.Type)
		if err != nil {
			return nil, err
		}
		key, err := interpolate(r.Key)
		if err != nil {
			return nil, err
		}
		out[r.Name] = dbRef{name: r.Name, kind: kind, key: key}
	}
	return out, nil
}

var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}|\$(\w+)`)

// interpolate substitutes ${VAR} and $VAR references from the environment.
// A reference to an unset variable is a configuration error.
func interpolate(value string) (string, error) {
	var missing string
	expanded := envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)
		key := name[1]
		if key == "" {
			key = name[2]
		}
		v, ok := os.LookupEnv(key)
		if !ok && missing == "" {
			missing = key
		}
		return v
	})
	if missing != "" {
		return "", errors.Newf(errors.ErrorTypeConfig, "environment variable %q not found", missing)
	}
	return expanded, nil
}

// parameterTypes are the accepted Dune query parameter types. Values are
// submitted as strings regardless; the type gate exists to catch config
// typos before submission.
var parameterTypes = map[string]bool{
	"text":   true,
	"number": true,
	"date":   true,
	"enum":   true,
}

// parseQueryParameters validates the typed parameter list and flattens it to
// the name-to-value map the execute endpoint takes.
func parseQueryParameters(params []parameterConfig) (map[string]string, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(params))
	for _, p := range params {
		if !parameterTypes[p.Type] {
			return nil, errors.Newf(errors.ErrorTypeConfig,
				"unknown parameter type %q for parameter %q", p.Type, p.Name)
		}
		out[p.Name] = p.Value
	}
	return out, nil
}

// parseQueryEngine maps the config value onto a performance tier.
func parseQueryEngine(engine string) (duneapi.PerformanceTier, error) {
	switch engine {
	case "", "medium":
		return duneapi.TierMedium, nil
	case "large":
		return duneapi.TierLarge, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unknown query engine: %q", engine)
	}
}

func buildSource(ctx context.Context, sc sourceConfig, refs map[string]dbRef) (core.Source, error) {
	ref, ok := refs[sc.Ref]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown source ref: %q", sc.Ref)
	}
	switch ref.kind {
	case job.DatabaseDune:
		params, err := parseQueryParameters(sc.Parameters)
		if err != nil {
			return nil, err
		}
		tier, err := parseQueryEngine(sc.QueryEngine)
		if err != nil {
			return nil, err
		}
		return dunesrc.NewSource(dunesrc.Config{
			APIKey:        ref.key,
			QueryID:       sc.QueryID,
			Parameters:    params,
			PollFrequency: time.Duration(sc.PollFrequency) * time.Second,
			Tier:          tier,
		})
	case job.DatabasePostgres:
		query, err := interpolate(sc.QueryString)
		if err != nil {
			return nil, err
		}
		return pgsrc.NewSource(ctx, ref.key, query)
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported source type: %q", ref.kind)
}

func buildDestination(ctx context.Context, dc destinationConfig, refs map[string]dbRef) (core.Destination, error) {
	ref, ok := refs[dc.Ref]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown destination ref: %q", dc.Ref)
	}
	switch ref.kind {
	case job.DatabaseDune:
		return dunedest.NewDestination(ref.key, dc.TableName)
	case job.DatabasePostgres:
		policy, err := pgdest.ParsePolicy(dc.IfExists)
		if err != nil {
			return nil, err
		}
		return pgdest.NewDestination(ctx, ref.key, dc.TableName, policy, dc.IndexColumns)
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported destination type: %q", ref.kind)
}
