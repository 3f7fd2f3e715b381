package version

import "fmt"

// Set at build time with -ldflags "-X github.com/datametry/edr/pkg/version.Version=...".
var (
	GitCommit string
	BuildTime string
	Version   = "dev"
)

func String() string {
	return fmt.Sprintf("%s, Commit:%s, Build-time:%s", Version, GitCommit, BuildTime)
}
