package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

const buildImage = "gophertribe/gobuild:1.25-bookworm"

// boards maps a board name to its GOOS/GOARCH pair. The CLI links hidapi, so
// cross builds for boards run in the build image.
var boards = map[string][2]string{
	"nanopi": {"linux", "arm"},
	"rpi":    {"linux", "arm64"},
	"host":   {runtime.GOOS, runtime.GOARCH},
}

type buildFlags struct {
	version   string
	board     string
	os        string
	arch      string
	crossOS   string
	crossArch string
	noCache   bool
}

func (f *buildFlags) target() (goos, goarch string, err error) {
	goos, goarch = f.os, f.arch
	if f.board != "" {
		b, ok := boards[f.board]
		if !ok {
			return "", "", fmt.Errorf("unknown board %q, known: %s", f.board, boardNames())
		}
		goos, goarch = b[0], b[1]
	}
	return goos, goarch, nil
}

func boardNames() string {
	names := make([]string, 0, len(boards))
	for name := range boards {
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

func BuildCmd() *cobra.Command {
	var f buildFlags
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the devreg cli",
		RunE: func(cmd *cobra.Command, args []string) error {
			goos, goarch, err := f.target()
			if err != nil {
				return err
			}
			if goos != runtime.GOOS || goarch != runtime.GOARCH {
				// rerun inside the build image, which cross compiles natively
				return build.Docker(cmd.Context(), fmt.Sprintf("./dev-%s-%s", goos, goarch),
					[]string{"build", "--version", f.version, "--cross-os", goos, "--cross-arch", goarch},
					build.DockerBuildOpts{NoCache: f.noCache, Image: buildImage})
			}
			if f.crossOS != "" && f.crossArch != "" {
				goos, goarch = f.crossOS, f.crossArch
			}
			return build.GoBuild("dist/devreg", "./cmd/devreg", build.GoBuildOpts{
				Version:       f.version,
				InjectVersion: true,
				ConfigPackage: "main",
				EnableCgo:     true,
				Arch:          goarch,
				OS:            goos,
			})
		},
	}
	cmd.Flags().StringVar(&f.version, "version", "latest", "version injected into the cli")
	cmd.Flags().StringVar(&f.board, "board", "", "target board: "+boardNames())
	cmd.Flags().StringVar(&f.os, "os", runtime.GOOS, "os to build for")
	cmd.Flags().StringVar(&f.arch, "arch", runtime.GOARCH, "arch to build for")
	cmd.Flags().StringVar(&f.crossOS, "cross-os", "", "os to cross-compile for inside the build image")
	cmd.Flags().StringVar(&f.crossArch, "cross-arch", "", "arch to cross-compile for inside the build image")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "do not use the docker cache")
	return cmd
}
