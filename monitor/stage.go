package monitor

import (
	"github.com/datametry/edr/metrics"
)

// Stage names a step of the monitoring pipeline.
type Stage string

const (
	StageProvision        Stage = "provision"
	StageConfigureSources Stage = "configure_sources"
	StageBuildModels      Stage = "build_models"
	StageRunTests         Stage = "run_tests"
	StageAggregateAlerts  Stage = "aggregate_alerts"
	StageFetchAlerts      Stage = "fetch_alerts"
	StageDeliver          Stage = "deliver"
)

// StageResult is the outcome of a pipeline stage.  Whether a failed stage halts the pipeline is decided
// by the caller.
type StageResult struct {
	Stage  Stage
	OK     bool
	Reason string
}

func succeeded(stage Stage) StageResult {
	return StageResult{Stage: stage, OK: true}
}

func failed(stage Stage, reason string) StageResult {
	return StageResult{Stage: stage, Reason: reason}
}

func (r StageResult) record() {
	v := 0.0
	if r.OK {
		v = 1
	}
	metrics.StageSuccess.WithLabelValues(string(r.Stage)).Set(v)
}
