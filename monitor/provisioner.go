package monitor

import (
	"context"

	"github.com/datametry/edr/engine"
	"github.com/datametry/edr/metrics"
	"github.com/datametry/edr/pkg/logger"
)

// Provisioner makes sure the warehouse-side package is installed in the engine project.
type Provisioner struct {
	engine engine.Engine
	paths  Paths
	props  *Properties
}

func NewProvisioner(eng engine.Engine, paths Paths, props *Properties) *Provisioner {
	return &Provisioner{engine: eng, paths: paths, props: props}
}

// EnsurePackage installs the package when it is missing or when forceUpdate is set.  An install failure
// is reported in the result but is not an error; a previously installed package may still work.
func (p *Provisioner) EnsurePackage(ctx context.Context, forceUpdate bool) StageResult {
	exists := p.paths.PackageExists()
	p.props.Set(PropPackageExists, exists)
	p.props.Set(PropForceUpdatePackage, forceUpdate)

	if exists && !forceUpdate {
		return succeeded(StageProvision)
	}

	logger.Infof("Downloading edr internal %s package", p.paths.PackageName)
	err := p.engine.Deps(ctx)
	p.props.Set(PropPackageDownloaded, err == nil)
	if err != nil {
		metrics.Errors.WithLabelValues(metrics.ProvisionPackageError).Inc()
		logger.Warnf("Could not download internal %s package: %s", p.paths.PackageName, err)
		return failed(StageProvision, err.Error())
	}
	return succeeded(StageProvision)
}
