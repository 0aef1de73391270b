package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/craneview/cli/config"
	"github.com/pithecene-io/craneview/lode"
	"github.com/pithecene-io/craneview/syncloop"
	"github.com/pithecene-io/craneview/wire"
)

// Exit codes.
const (
	exitSuccess = 0
	// exitError covers usage, config and storage failures.
	exitError = 1
	// exitConnection means the channel never opened or dropped.
	exitConnection = 2
	// exitBackendException means cancel recovery stopped the session.
	exitBackendException = 3
)

// loadConfig reads the config file and applies flag overrides.
// Precedence: flag or env var, then config file, then built-in default.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if c.IsSet(ConfigFlag.Name) {
		cfg, err = config.Load(c.String(ConfigFlag.Name))
	} else {
		cfg, err = config.LoadOptional(config.DefaultPath)
	}
	if err != nil {
		return nil, err
	}

	overrideString(c, EndpointFlag.Name, &cfg.Endpoint)
	overrideString(c, DialectFlag.Name, &cfg.Dialect)
	overrideString(c, ClassificationFlag.Name, &cfg.Classification)
	overrideString(c, "recovery", &cfg.Recovery)
	overrideString(c, "record", &cfg.Record)
	overrideString(c, StorageBackendFlag.Name, &cfg.Storage.Backend)
	overrideString(c, StoragePathFlag.Name, &cfg.Storage.Path)
	overrideString(c, StorageRegionFlag.Name, &cfg.Storage.Region)
	overrideString(c, StorageEndpointFlag.Name, &cfg.Storage.Endpoint)
	overrideString(c, DatasetFlag.Name, &cfg.Storage.Dataset)
	overrideString(c, "policy", &cfg.Policy.Name)
	if c.IsSet(DialTimeoutFlag.Name) {
		cfg.DialTimeout.Duration = c.Duration(DialTimeoutFlag.Name)
	}
	if c.IsSet("fps") {
		cfg.FPS = c.Int("fps")
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideString(c *cli.Context, name string, dst *string) {
	if c.IsSet(name) {
		*dst = c.String(name)
	}
}

func applyDefaults(cfg *config.Config) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = config.DefaultEndpoint
	}
	if cfg.FPS == 0 {
		cfg.FPS = syncloop.DefaultFrameRate
	}
	if cfg.Storage.Dataset == "" {
		cfg.Storage.Dataset = lode.DefaultDataset
	}
	if cfg.Storage.Backend == "" && cfg.Storage.Path != "" {
		cfg.Storage.Backend = "fs"
	}
	if cfg.Policy.Name == "" {
		cfg.Policy.Name = "strict"
	}
}

// newCodec builds the wire codec named by cfg.
func newCodec(cfg *config.Config) (*wire.Codec, error) {
	dialect, err := wire.ParseDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	classification, err := wire.ParseClassification(cfg.Classification)
	if err != nil {
		return nil, err
	}
	return wire.NewCodec(dialect, classification)
}

// s3Config maps the storage section onto the lode S3 settings.
func s3Config(st config.StorageConfig) lode.S3Config {
	bucket, prefix := lode.ParseS3Path(st.Path)
	return lode.S3Config{
		Bucket:       bucket,
		Prefix:       prefix,
		Region:       st.Region,
		Endpoint:     st.Endpoint,
		UsePathStyle: st.S3PathStyle,
	}
}

func usageError(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf(format, args...), exitError)
}
