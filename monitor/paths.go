package monitor

import (
	"os"
	"path/filepath"
)

// DefaultPackageName is the name of the warehouse-side package that computes alerts.
const DefaultPackageName = "datametry"

// Paths holds the resolved filesystem locations of the engine project.
type Paths struct {
	PackageName string

	ProjectDir  string
	ModelsDir   string
	SourcesFile string

	// PackagesDir is where current engine versions install the package.
	PackagesDir string
	// LegacyModulesDir is where older engine versions installed the package.
	LegacyModulesDir string
}

func NewPaths(projectDir, packageName string) Paths {
	if packageName == "" {
		packageName = DefaultPackageName
	}
	models := filepath.Join(projectDir, "models")
	return Paths{
		PackageName:      packageName,
		ProjectDir:       projectDir,
		ModelsDir:        models,
		SourcesFile:      filepath.Join(models, "sources.yml"),
		PackagesDir:      filepath.Join(projectDir, "dbt_packages", packageName),
		LegacyModulesDir: filepath.Join(projectDir, "dbt_modules", packageName),
	}
}

// PackageExists reports whether the package is installed in either location.
func (p Paths) PackageExists() bool {
	return dirExists(p.PackagesDir) || dirExists(p.LegacyModulesDir)
}

func dirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
