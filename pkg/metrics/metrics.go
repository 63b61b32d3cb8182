// Package metrics pushes per-job outcome metrics to a Prometheus
// pushgateway. Jobs are one-shot batch invocations, so push is the right
// direction: there is no long-lived process for a scraper to find.
package metrics

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"

	"github.com/dunesync/dunesync/pkg/logger"
)

// gatewayEnvVar names the pushgateway endpoint; metrics are disabled when it
// is unset.
const gatewayEnvVar = "PROMETHEUS_PUSHGATEWAY_URL"

// RecordJob pushes the outcome of a finished job run. It never fails the
// job: push errors are logged and swallowed.
func RecordJob(jobName string, duration time.Duration, success bool) {
	gateway := os.Getenv(gatewayEnvVar)
	if gateway == "" {
		return
	}

	registry := prometheus.NewRegistry()

	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "job_last_success_unixtime",
		Help: "Unix timestamp of job end",
	})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "job_failure_count",
		Help: "Number of failed jobs",
	})
	lastDuration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "job_last_success_duration",
		Help: "How long the job took to run, in seconds",
	})
	registry.MustRegister(lastSuccess, failures, lastDuration)

	if success {
		lastSuccess.SetToCurrentTime()
		lastDuration.Set(duration.Seconds())
	} else {
		failures.Inc()
	}

	if err := push.New(gateway, "dunesync-"+jobName).Gatherer(registry).Push(); err != nil {
		logger.Warn("failed to push job metrics",
			zap.String("job", jobName), zap.Error(err))
	}
}
