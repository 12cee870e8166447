// Package buildinfo carries version metadata stamped at link time:
//
//	go build -ldflags "-X 'github.com/vldos/telegram-survey-bot/core/buildinfo.Version=v1.0.0' \
//	  -X 'github.com/vldos/telegram-survey-bot/core/buildinfo.Commit=$(git rev-parse --short HEAD)' \
//	  -X 'github.com/vldos/telegram-survey-bot/core/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)'" ./cmd/surveybot
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = "local"
	// Date is an RFC3339 UTC timestamp; empty for local builds.
	Date = ""
)

// String renders the build metadata for --version output and the health endpoint.
func String() string {
	if Date == "" {
		return fmt.Sprintf("%s (%s)", Version, Commit)
	}
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, Date)
}
