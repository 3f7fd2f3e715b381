package engine

import "context"

// Engine is the external transformation and test engine that builds models, runs data tests and executes
// named operations against the warehouse.
type Engine interface {
	// Deps installs the project's package dependencies.
	Deps(ctx context.Context) error

	// Run builds models.
	Run(ctx context.Context, opts RunOptions) error

	// Test runs data tests.
	Test(ctx context.Context, opts TestOptions) error

	// RunOperation executes a named operation and returns the rows it printed, one encoded record per
	// row.  A nil slice with a nil error means the operation produced no content.
	RunOperation(ctx context.Context, name string, args map[string]any) ([]string, error)
}

type RunOptions struct {
	// Models selects the models to build.  Empty builds the whole project.
	Models string

	// FullRefresh rebuilds incremental models from scratch.
	FullRefresh bool
}

type TestOptions struct {
	// Select selects the tests to run.  Empty runs every test.
	Select string
}
