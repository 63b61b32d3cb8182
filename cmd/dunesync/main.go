package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dunesync/dunesync/pkg/config"
	"github.com/dunesync/dunesync/pkg/job"
	"github.com/dunesync/dunesync/pkg/logger"
)

var version = "0.1.0"

func main() {
	// Load .env if present; config values may reference its variables.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "dunesync",
		Short: "dunesync - move query results between Dune Analytics and PostgreSQL",
		Long: `dunesync runs configured sync jobs, each transferring one whole query
result set from Dune Analytics to PostgreSQL or the other way around.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dunesync v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var configFile, logLevel string
	var jobNames []string

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured sync jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logger.Config{Level: logLevel, Encoding: "json"}); err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runJobs(cmd.Context(), configFile, jobNames)
		},
	}
	runCmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "Path to configuration file")
	runCmd.Flags().StringSliceVar(&jobNames, "jobs", nil, "Names of specific jobs to run (default: all)")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.AddCommand(runCmd)

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and validate every job without running",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logger.Config{Level: logLevel, Encoding: "console"}); err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			cfg, err := config.Load(cmd.Context(), configFile)
			if err != nil {
				return err
			}
			for _, j := range cfg.Jobs {
				defer j.Close()
				if err := j.Source.Validate(cmd.Context()); err != nil {
					return fmt.Errorf("job %q source: %w", j.Name, err)
				}
				if err := j.Destination.Validate(cmd.Context()); err != nil {
					return fmt.Errorf("job %q destination: %w", j.Name, err)
				}
				fmt.Printf("job %q: ok\n", j.Name)
			}
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "Path to configuration file")
	validateCmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.AddCommand(validateCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runJobs loads the config and runs the selected jobs concurrently. Each job
// is internally sequential and owns its own connections, so jobs only share
// the process.
func runJobs(ctx context.Context, configFile string, jobNames []string) error {
	cfg, err := config.Load(ctx, configFile)
	if err != nil {
		return err
	}

	jobs, err := selectJobs(cfg.Jobs, jobNames)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		g.Go(func() error {
			defer j.Close()
			if err := j.Run(ctx); err != nil {
				return fmt.Errorf("job %q: %w", j.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// selectJobs filters the configured jobs down to the requested names; an
// unknown name is an error rather than a silent skip.
func selectJobs(jobs []*job.Job, names []string) ([]*job.Job, error) {
	if len(names) == 0 {
		return jobs, nil
	}
	byName := make(map[string]*job.Job, len(jobs))
	for _, j := range jobs {
		byName[j.Name] = j
	}
	selected := make([]*job.Job, 0, len(names))
	for _, name := range names {
		j, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("no job named %q in configuration", name)
		}
		selected = append(selected, j)
	}
	return selected, nil
}
