package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProvisioner_EnsurePackage(t *testing.T) {
	for _, tt := range []struct {
		name         string
		installDir   func(p Paths) string
		force        bool
		depsErr      error
		wantDeps     bool
		wantOK       bool
		wantExists   bool
		wantDownload any
	}{
		{
			name:         "missing package is downloaded",
			wantDeps:     true,
			wantOK:       true,
			wantDownload: true,
		},
		{
			name:       "installed package is reused",
			installDir: func(p Paths) string { return p.PackagesDir },
			wantOK:     true,
			wantExists: true,
		},
		{
			name:       "legacy install location counts as installed",
			installDir: func(p Paths) string { return p.LegacyModulesDir },
			wantOK:     true,
			wantExists: true,
		},
		{
			name:         "force update downloads an installed package",
			installDir:   func(p Paths) string { return p.PackagesDir },
			force:        true,
			wantDeps:     true,
			wantOK:       true,
			wantExists:   true,
			wantDownload: true,
		},
		{
			name:         "download failure is reported",
			depsErr:      errors.New("network unreachable"),
			wantDeps:     true,
			wantDownload: false,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			paths := NewPaths(t.TempDir(), "")
			if tt.installDir != nil {
				require.NoError(t, os.MkdirAll(tt.installDir(paths), 0o755))
			}

			eng := &fakeEngine{depsFn: func(ctx context.Context) error { return tt.depsErr }}
			props := NewProperties()

			res := NewProvisioner(eng, paths, props).EnsurePackage(context.Background(), tt.force)
			require.Equal(t, StageProvision, res.Stage)
			require.Equal(t, tt.wantOK, res.OK)

			if tt.wantDeps {
				require.Equal(t, []string{"deps"}, eng.methods())
			} else {
				require.Empty(t, eng.methods())
			}

			exists, _ := props.Get(PropPackageExists)
			require.Equal(t, tt.wantExists, exists)
			force, _ := props.Get(PropForceUpdatePackage)
			require.Equal(t, tt.force, force)
			downloaded, _ := props.Get(PropPackageDownloaded)
			require.Equal(t, tt.wantDownload, downloaded)
		})
	}
}

func TestNewPaths(t *testing.T) {
	p := NewPaths("/proj", "")
	require.Equal(t, DefaultPackageName, p.PackageName)
	require.Equal(t, filepath.Join("/proj", "models", "sources.yml"), p.SourcesFile)
	require.Equal(t, filepath.Join("/proj", "dbt_packages", DefaultPackageName), p.PackagesDir)
	require.Equal(t, filepath.Join("/proj", "dbt_modules", DefaultPackageName), p.LegacyModulesDir)

	p = NewPaths("/proj", "custom")
	require.Equal(t, filepath.Join("/proj", "dbt_packages", "custom"), p.PackagesDir)
}
