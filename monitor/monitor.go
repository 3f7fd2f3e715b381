package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/datametry/edr/alert"
	"github.com/datametry/edr/engine"
	"github.com/datametry/edr/metrics"
	"github.com/datametry/edr/notification"
	edrhttp "github.com/datametry/edr/pkg/http"
	"github.com/datametry/edr/pkg/logger"
	"github.com/google/uuid"
)

const (
	sourcesOperation = "read_configuration_to_sources_yml"
	alertsModels     = "alerts"
)

type Options struct {
	Engine  engine.Engine
	Channel notification.Channel
	Paths   Paths

	// DaysBack is the lookback window for new alerts.
	DaysBack int

	// Webhook overrides DefaultWebhook when set.
	Webhook        string
	DefaultWebhook string

	// Workflow selects the workflow webhook payload.
	Workflow bool
}

type RunOptions struct {
	// ForceUpdatePackage reinstalls the package even if it exists.
	ForceUpdatePackage bool

	// FullRefresh rebuilds incremental models from scratch.
	FullRefresh bool

	// AlertsOnly skips source configuration, the model build and the data tests.
	AlertsOnly bool
}

// DefaultRunOptions returns the options of a plain alerts-only run.
func DefaultRunOptions() RunOptions {
	return RunOptions{AlertsOnly: true}
}

// Monitor runs the alert delivery pipeline: it provisions the warehouse package, optionally builds models
// and runs data tests, aggregates alerts, delivers new alerts and marks them as sent.  A Monitor records
// the properties of a single run.
type Monitor struct {
	opts     Options
	endpoint string

	props       *Properties
	repo        *Repository
	provisioner *Provisioner
}

func New(opts Options) (*Monitor, error) {
	if opts.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if opts.DaysBack <= 0 {
		return nil, fmt.Errorf("days back must be positive, got %d", opts.DaysBack)
	}

	endpoint := opts.Webhook
	if endpoint == "" {
		endpoint = opts.DefaultWebhook
	}
	if endpoint != "" && opts.Channel == nil {
		return nil, errors.New("notification channel is required when a webhook is configured")
	}

	props := NewProperties()
	props.Set(PropInvocationID, uuid.NewString())

	return &Monitor{
		opts:        opts,
		endpoint:    endpoint,
		props:       props,
		repo:        NewRepository(opts.Engine, props),
		provisioner: NewProvisioner(opts.Engine, opts.Paths, props),
	}, nil
}

// Run executes the pipeline once.  Expected halts, such as a failed model build, are logged and
// recorded in the properties and return nil.  Filesystem errors, malformed alert rows and failed
// sent-state updates are returned.
func (m *Monitor) Run(ctx context.Context, opts RunOptions) (err error) {
	start := time.Now()
	defer func() { m.finish(start, err) }()

	logger.Infof("Starting monitoring run %s", m.invocationID())

	// Install failures are not fatal, a stale package may still run.
	m.provisioner.EnsurePackage(ctx, opts.ForceUpdatePackage).record()

	if !opts.AlertsOnly {
		res, err := m.configureSources(ctx)
		if err != nil {
			return err
		}
		if !m.proceed(res) {
			return nil
		}

		logger.Infof("Running internal dbt run to create metadata and process configuration")
		if !m.proceed(m.build(ctx, StageBuildModels, PropRunSuccess, engine.RunOptions{FullRefresh: opts.FullRefresh})) {
			return nil
		}

		logger.Infof("Running internal dbt data tests to collect metrics and calculate anomalies")
		m.runTests(ctx).record()
	}

	logger.Infof("Running internal dbt run to aggregate alerts")
	if !m.proceed(m.build(ctx, StageAggregateAlerts, PropAlertsRunSuccess, engine.RunOptions{Models: alertsModels, FullRefresh: opts.FullRefresh})) {
		return nil
	}

	alerts, err := m.repo.FetchNewAlerts(ctx, m.opts.DaysBack)
	if err != nil {
		failed(StageFetchAlerts, err.Error()).record()
		return err
	}
	succeeded(StageFetchAlerts).record()
	m.props.Set(PropAlertCount, len(alerts))

	if len(alerts) == 0 {
		logger.Infof("No new alerts found in the last %d days", m.opts.DaysBack)
		return nil
	}
	return m.deliver(ctx, alerts)
}

// Properties returns the recorded execution metrics wrapped for usage reporting.
func (m *Monitor) Properties() map[string]any {
	return map[string]any{"data_monitoring_properties": m.props.Map()}
}

// Endpoint returns the resolved notification endpoint, or an empty string when none is configured.
func (m *Monitor) Endpoint() string {
	return m.endpoint
}

func (m *Monitor) configureSources(ctx context.Context) (StageResult, error) {
	logger.Infof("Reading configuration and writing to sources.yml")
	rows, err := m.opts.Engine.RunOperation(ctx, sourcesOperation, nil)
	if err != nil {
		return failed(StageConfigureSources, err.Error()), nil
	}
	if len(rows) == 0 {
		return failed(StageConfigureSources, "no sources configuration was generated"), nil
	}

	content := strings.Join(rows, "\n")
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	if err := os.MkdirAll(m.opts.Paths.ModelsDir, 0o755); err != nil {
		metrics.Errors.WithLabelValues(metrics.WriteSourcesError).Inc()
		return StageResult{}, fmt.Errorf("create models dir: %w", err)
	}
	if err := os.WriteFile(m.opts.Paths.SourcesFile, []byte(content), 0o644); err != nil {
		metrics.Errors.WithLabelValues(metrics.WriteSourcesError).Inc()
		return StageResult{}, fmt.Errorf("write sources file: %w", err)
	}
	return succeeded(StageConfigureSources), nil
}

func (m *Monitor) build(ctx context.Context, stage Stage, prop string, opts engine.RunOptions) StageResult {
	err := m.opts.Engine.Run(ctx, opts)
	m.props.Set(prop, err == nil)
	if err != nil {
		metrics.Errors.WithLabelValues(metrics.EngineStageError).Inc()
		return failed(stage, err.Error())
	}
	return succeeded(stage)
}

func (m *Monitor) runTests(ctx context.Context) StageResult {
	err := m.opts.Engine.Test(ctx, engine.TestOptions{Select: "tag:" + m.opts.Paths.PackageName})
	m.props.Set(PropTestSuccess, err == nil)
	if err != nil {
		logger.Warnf("Data tests reported failures: %s", err)
		return failed(StageRunTests, err.Error())
	}
	return succeeded(StageRunTests)
}

func (m *Monitor) deliver(ctx context.Context, alerts []*alert.Alert) error {
	if m.endpoint == "" {
		m.props.Set(PropDeliverySkipped, true)
		logger.Infof("Alerts found but slack webhook is not configured (see documentation on how to configure a slack webhook)")
		return nil
	}

	logger.Infof("Sending %d alerts to %s", len(alerts), edrhttp.RedactURL(m.endpoint))
	sent := make([]string, 0, len(alerts))
	for i, a := range alerts {
		if ctx.Err() != nil {
			logger.Warnf("Delivery interrupted after %d/%d alerts: %s", i, len(alerts), ctx.Err())
			break
		}

		if err := m.opts.Channel.Send(ctx, m.endpoint, a, m.opts.Workflow); err != nil {
			metrics.AlertDeliveryFailures.Inc()
			metrics.Errors.WithLabelValues(metrics.DeliverAlertError).Inc()
			logger.Warnf("Failed to send alert %s (%d/%d): %s", a.ID, i+1, len(alerts), err)
			continue
		}
		metrics.AlertsSent.Inc()
		sent = append(sent, a.ID)
		logger.Infof("Sent alert %s (%d/%d)", a.ID, i+1, len(alerts))
	}

	m.props.Set(PropSentAlertCount, len(sent))
	if len(sent) == 0 {
		failed(StageDeliver, "no alert was delivered").record()
		return nil
	}
	succeeded(StageDeliver).record()

	// Alerts that reached the channel are marked even if the run was cancelled meanwhile.
	if err := m.repo.MarkSent(context.WithoutCancel(ctx), sent); err != nil {
		metrics.Errors.WithLabelValues(metrics.MarkSentError).Inc()
		return fmt.Errorf("update sent alerts: %w", err)
	}
	return nil
}

// proceed records the stage outcome and reports whether the pipeline continues.
func (m *Monitor) proceed(res StageResult) bool {
	res.record()
	if res.OK {
		return true
	}
	m.props.Set(PropHaltedAt, string(res.Stage))
	logger.Warnf("Halting monitoring run at %s: %s", res.Stage, res.Reason)
	return false
}

func (m *Monitor) finish(start time.Time, err error) {
	result := "completed"
	if err != nil {
		result = "failed"
		logger.Errorf("Monitoring run %s failed after %s: %s", m.invocationID(), time.Since(start).Round(time.Millisecond), err)
	} else if _, halted := m.props.Get(PropHaltedAt); halted {
		result = "halted"
		logger.Infof("Monitoring run %s halted after %s", m.invocationID(), time.Since(start).Round(time.Millisecond))
	} else {
		logger.Infof("Monitoring run %s completed in %s", m.invocationID(), time.Since(start).Round(time.Millisecond))
	}
	metrics.RunsTotal.WithLabelValues(result).Inc()
	metrics.LastRunTimestamp.SetToCurrentTime()
	logger.Infof("Run properties: %s", m.props)
}

func (m *Monitor) invocationID() string {
	id, _ := m.props.Get(PropInvocationID)
	s, _ := id.(string)
	return s
}
