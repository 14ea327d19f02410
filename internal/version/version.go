// Package version exposes build metadata injected through ldflags:
//
//	-X github.com/sweeney/arming-panel/internal/version.Version=1.2.0
//	-X github.com/sweeney/arming-panel/internal/version.BuildTime=2026-10-18T09:30:00Z
package version

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version of the build.
	Version = "0.1.0"
	// Commit is the short git SHA of the build.
	Commit = "none"
	// BuildTime is the UTC build timestamp in RFC 3339 form.
	BuildTime = "unknown"
)

// fallbackBuild is used when BuildTime was not injected.
var fallbackBuild = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Full returns a human-readable version line.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}

// BuildTimestamp parses BuildTime. Builds without an injected timestamp
// report a fixed date so the result is always usable as a clock seed.
func BuildTimestamp() time.Time {
	t, err := time.Parse(time.RFC3339, BuildTime)
	if err != nil {
		return fallbackBuild
	}
	return t
}

// AttachCobraVersionCommand adds a `version` subcommand to root.
func AttachCobraVersionCommand(root *cobra.Command) {
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Full())
		},
	})
}
