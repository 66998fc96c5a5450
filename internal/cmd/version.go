package cmd

import (
	"fmt"
	"io"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags at release time; otherwise filled from the module build
// info when available.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type buildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
	GoVersion string
	Modified  bool
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Print the version, git commit, build date and Go version of meetscope.`,
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd.OutOrStdout(), currentBuild())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	rootCmd.Version = currentBuild().Version
	rootCmd.SetVersionTemplate("meetscope version {{.Version}}\n")
}

func currentBuild() buildInfo {
	info, _ := debug.ReadBuildInfo()
	return resolveBuild(Version, GitCommit, BuildDate, info)
}

// resolveBuild prefers ldflags values and falls back to what the Go
// toolchain stamped into the binary.
func resolveBuild(version, commit, date string, info *debug.BuildInfo) buildInfo {
	b := buildInfo{Version: version, GitCommit: commit, BuildDate: date}
	if info == nil {
		return b
	}

	b.GoVersion = info.GoVersion
	if b.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.GitCommit == "unknown" {
				b.GitCommit = s.Value
				if len(b.GitCommit) > 12 {
					b.GitCommit = b.GitCommit[:12]
				}
			}
		case "vcs.time":
			if b.BuildDate == "unknown" {
				b.BuildDate = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}

func printVersion(w io.Writer, b buildInfo) {
	fmt.Fprintf(w, "meetscope version %s\n", b.Version)
	commit := b.GitCommit
	if b.Modified {
		commit += " (modified)"
	}
	fmt.Fprintf(w, "  Git commit: %s\n", commit)
	fmt.Fprintf(w, "  Build date: %s\n", b.BuildDate)
	if b.GoVersion != "" {
		fmt.Fprintf(w, "  Go version: %s\n", b.GoVersion)
	}
}
