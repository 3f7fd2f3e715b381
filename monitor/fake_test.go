package monitor

import (
	"context"
	"fmt"
	"sync"

	"github.com/datametry/edr/alert"
	"github.com/datametry/edr/engine"
)

type engineCall struct {
	Method string
	Name   string
	Args   map[string]any
}

type fakeEngine struct {
	mu    sync.Mutex
	calls []engineCall

	depsFn func(ctx context.Context) error
	runFn  func(ctx context.Context, opts engine.RunOptions) error
	testFn func(ctx context.Context, opts engine.TestOptions) error
	rowsFn func(ctx context.Context, name string, args map[string]any) ([]string, error)
}

func (f *fakeEngine) record(c engineCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeEngine) Deps(ctx context.Context) error {
	f.record(engineCall{Method: "deps"})
	if f.depsFn != nil {
		return f.depsFn(ctx)
	}
	return nil
}

func (f *fakeEngine) Run(ctx context.Context, opts engine.RunOptions) error {
	f.record(engineCall{Method: "run", Name: opts.Models})
	if f.runFn != nil {
		return f.runFn(ctx, opts)
	}
	return nil
}

func (f *fakeEngine) Test(ctx context.Context, opts engine.TestOptions) error {
	f.record(engineCall{Method: "test", Name: opts.Select})
	if f.testFn != nil {
		return f.testFn(ctx, opts)
	}
	return nil
}

func (f *fakeEngine) RunOperation(ctx context.Context, name string, args map[string]any) ([]string, error) {
	f.record(engineCall{Method: "run-operation", Name: name, Args: args})
	if f.rowsFn != nil {
		return f.rowsFn(ctx, name, args)
	}
	return nil, nil
}

// methods returns the sequence of calls as "method" or "method:name".
func (f *fakeEngine) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c.Name == "" {
			out = append(out, c.Method)
			continue
		}
		out = append(out, c.Method+":"+c.Name)
	}
	return out
}

// markSentChunks returns the alert id chunks passed to update_sent_alerts.
func (f *fakeEngine) markSentChunks() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, c := range f.calls {
		if c.Name == updateSentAlertsOperation {
			out = append(out, c.Args["alert_ids"].([]string))
		}
	}
	return out
}

type fakeChannel struct {
	mu     sync.Mutex
	sent   []string
	sendFn func(ctx context.Context, endpoint string, a *alert.Alert, workflow bool) error
}

func (f *fakeChannel) Send(ctx context.Context, endpoint string, a *alert.Alert, workflow bool) error {
	if f.sendFn != nil {
		if err := f.sendFn(ctx, endpoint, a, workflow); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, a.ID)
	return nil
}

func alertRow(id string) string {
	return fmt.Sprintf(`{"alert_id": %q, "detected_at": "2024-03-01 10:00:00", "alert_type": "anomaly_detection", "sub_type": "row_count", "database_name": "db", "schema_name": "public", "table_name": "orders"}`, id)
}

func alertRows(n int) []string {
	rows := make([]string, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, alertRow(fmt.Sprintf("a-%03d", i)))
	}
	return rows
}
