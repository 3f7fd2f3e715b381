package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/datametry/edr/pkg/logger"
)

// Fake is an Engine that executes nothing and returns canned operation results.  It backs --dev runs
// on machines without a warehouse.
type Fake struct {
	Operations map[string][]string
}

func NewFake() *Fake {
	now := time.Now().UTC().Format(time.RFC3339)
	return &Fake{
		Operations: map[string][]string{
			"read_configuration_to_sources_yml": {"version: 2\nsources: []\n"},
			"get_new_alerts": {
				fmt.Sprintf(`{"alert_id": "fake-1", "detected_at": %q, "alert_type": "anomaly_detection", "sub_type": "row_count", "database_name": "fake_db", "schema_name": "public", "table_name": "orders", "alert_description": "Fake row count anomaly"}`, now),
				fmt.Sprintf(`{"alert_id": "fake-2", "detected_at": %q, "alert_type": "schema_change", "sub_type": "column_removed", "database_name": "fake_db", "schema_name": "public", "table_name": "customers", "column_name": "email"}`, now),
			},
		},
	}
}

func (f *Fake) Deps(ctx context.Context) error {
	logger.Infof("Fake engine: deps")
	return nil
}

func (f *Fake) Run(ctx context.Context, opts RunOptions) error {
	logger.Infof("Fake engine: run models=%q full-refresh=%t", opts.Models, opts.FullRefresh)
	return nil
}

func (f *Fake) Test(ctx context.Context, opts TestOptions) error {
	logger.Infof("Fake engine: test select=%q", opts.Select)
	return nil
}

func (f *Fake) RunOperation(ctx context.Context, name string, args map[string]any) ([]string, error) {
	logger.Infof("Fake engine: run-operation %s %v", name, args)
	return f.Operations[name], nil
}
