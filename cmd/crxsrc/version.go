package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set through -ldflags by the stave build target.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Display the version, commit and build date of crxsrc.

Binaries installed with "go install" carry no ldflags; their version and
revision are read from the embedded module build info instead.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		info := resolveBuildInfo(debug.ReadBuildInfo)
		if versionJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}
		info.print(os.Stdout)
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print as JSON")
	rootCmd.AddCommand(versionCmd)
}

type buildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
}

// resolveBuildInfo prefers ldflags values and fills the gaps from the
// module build info.
func resolveBuildInfo(read func() (*debug.BuildInfo, bool)) buildInfo {
	info := buildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
		Go:      runtime.Version(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}

	bi, ok := read()
	if !ok || bi == nil {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "none" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Date == "unknown" {
				info.Date = s.Value
			}
		}
	}
	return info
}

func (b buildInfo) print(w io.Writer) {
	fmt.Fprintf(w, "crxsrc %s\n", b.Version)
	fmt.Fprintf(w, "  commit:  %s\n", b.Commit)
	fmt.Fprintf(w, "  built:   %s\n", b.Date)
	fmt.Fprintf(w, "  go:      %s\n", b.Go)
	fmt.Fprintf(w, "  os/arch: %s/%s\n", b.OS, b.Arch)
}
