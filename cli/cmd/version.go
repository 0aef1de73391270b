package cmd

import (
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/craneview/cli/render"
	"github.com/pithecene-io/craneview/types"
)

// VersionResponse is the output of the version command.
type VersionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

// VersionCommand reports the client version. It never dials the backend.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: OutputFlags(),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return usageError("%v", err)
			}
			return r.Render(VersionResponse{
				Version:   types.Version,
				Commit:    commit,
				GoVersion: runtime.Version(),
			})
		},
	}
}
