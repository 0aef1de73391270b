// Package cmd provides the commands of the craneview binary.
package cmd

import "github.com/urfave/cli/v2"

// Output flags for commands that print results.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}
)

// Connection flags. Each one overrides the matching config file value.
var (
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config file (default: ./craneview.yaml if present)",
	}

	EndpointFlag = &cli.StringFlag{
		Name:    "endpoint",
		Aliases: []string{"e"},
		Usage:   "Backend websocket URL",
		EnvVars: []string{"CRANEVIEW_ENDPOINT"},
	}

	DialectFlag = &cli.StringFlag{
		Name:  "dialect",
		Usage: "Command payload dialect: data or legacy",
	}

	ClassificationFlag = &cli.StringFlag{
		Name:  "classification",
		Usage: "Inbound frame classification: content or tagged",
	}

	DialTimeoutFlag = &cli.DurationFlag{
		Name:  "dial-timeout",
		Usage: "How long to wait for the channel to open",
	}
)

// Storage flags select where pose history is read or written.
var (
	StorageBackendFlag = &cli.StringFlag{
		Name:  "storage-backend",
		Usage: "History storage backend: fs or s3",
	}

	StoragePathFlag = &cli.StringFlag{
		Name:  "storage-path",
		Usage: "History storage path (fs: directory, s3: bucket/prefix)",
	}

	StorageRegionFlag = &cli.StringFlag{
		Name:  "storage-region",
		Usage: "AWS region for the s3 backend (default chain if empty)",
	}

	StorageEndpointFlag = &cli.StringFlag{
		Name:  "storage-endpoint",
		Usage: "Custom S3 endpoint (MinIO, LocalStack)",
	}

	DatasetFlag = &cli.StringFlag{
		Name:  "dataset",
		Usage: "History dataset ID",
	}
)

// OutputFlags returns the flags shared by commands that render results.
func OutputFlags() []cli.Flag {
	return []cli.Flag{FormatFlag, NoColorFlag}
}

// ConnectionFlags returns the flags shared by commands that open a session.
func ConnectionFlags() []cli.Flag {
	return []cli.Flag{ConfigFlag, EndpointFlag, DialectFlag, ClassificationFlag, DialTimeoutFlag}
}

// StorageFlags returns the flags shared by commands that touch history.
func StorageFlags() []cli.Flag {
	return []cli.Flag{StorageBackendFlag, StoragePathFlag, StorageRegionFlag, StorageEndpointFlag, DatasetFlag}
}

func joinFlags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
