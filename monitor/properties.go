package monitor

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Property keys recorded during a pipeline run.
const (
	PropInvocationID       = "invocation_id"
	PropPackageExists      = "dbt_package_exists"
	PropForceUpdatePackage = "force_update_dbt_package"
	PropPackageDownloaded  = "package_downloaded"
	PropRunSuccess         = "run_success"
	PropTestSuccess        = "test_success"
	PropAlertsRunSuccess   = "alerts_run_success"
	PropAlertRows          = "alert_rows"
	PropAlertCount         = "alert_count"
	PropSentAlertCount     = "sent_alert_count"
	PropDeliverySkipped    = "delivery_skipped"
	PropHaltedAt           = "halted_at"
)

// Properties accumulates the execution metrics of a single pipeline run.  It is written only by the
// goroutine running the pipeline.
type Properties struct {
	values map[string]any
}

func NewProperties() *Properties {
	return &Properties{values: make(map[string]any)}
}

func (p *Properties) Set(key string, value any) {
	p.values[key] = value
}

func (p *Properties) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Map returns a copy of the recorded values.
func (p *Properties) Map() map[string]any {
	return maps.Clone(p.values)
}

// String renders the properties as sorted key=value pairs.
func (p *Properties) String() string {
	keys := slices.Sorted(maps.Keys(p.values))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, p.values[k]))
	}
	return strings.Join(parts, " ")
}
