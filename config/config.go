package config

import (
	"fmt"

	"github.com/coder/serpent"

	"github.com/gentoo/sandbox/namespace"
	"github.com/gentoo/sandbox/program"
)

// CliConfig is bound to the command line options.
type CliConfig struct {
	Config       serpent.String
	LogLevel     serpent.String
	LogDir       serpent.String
	OTLPEndpoint serpent.String
	RunBash      serpent.Bool
	Namespaces   namespace.Flags
}

// FileConfig is the optional YAML configuration file.
type FileConfig struct {
	LogLevel     string         `yaml:"log_level"`
	LogDir       string         `yaml:"log_dir"`
	OTLPEndpoint string         `yaml:"otlp_endpoint"`
	Namespaces   FileNamespaces `yaml:"namespaces"`
}

// FileNamespaces mirrors the --ns-* flags.
type FileNamespaces struct {
	Enabled  bool     `yaml:"enabled"`
	Disabled bool     `yaml:"disabled"`
	On       []string `yaml:"on"`
	Off      []string `yaml:"off"`
}

// Flags converts the file section into namespace flags.
func (f FileNamespaces) Flags() (namespace.Flags, error) {
	flags := namespace.Flags{On: f.Enabled, Off: f.Disabled}
	for _, name := range f.On {
		k, err := namespace.ParseKind(name)
		if err != nil {
			return namespace.Flags{}, fmt.Errorf("namespaces.on: %w", err)
		}
		flags.SetOn(k)
	}
	for _, name := range f.Off {
		k, err := namespace.ParseKind(name)
		if err != nil {
			return namespace.Flags{}, fmt.Errorf("namespaces.off: %w", err)
		}
		flags.SetOff(k)
	}
	return flags, nil
}

// AppConfig is the merged configuration used by run.
type AppConfig struct {
	ConfigPath   string
	LogLevel     string
	LogDir       string
	OTLPEndpoint string
	Run          program.RunOptions
}

// NewAppConfig merges file and command line configuration and resolves the
// launch options. Command line strings win over the file. Namespace
// switches from both sources are combined before resolution, so an off
// from either side still beats an on from the other.
func NewAppConfig(cli CliConfig, file FileConfig, filePath string, positional []string, probe program.Prober) (AppConfig, error) {
	fileFlags, err := file.Namespaces.Flags()
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid config file %s: %w", filePath, err)
	}

	flags := cli.Namespaces
	flags.Merge(fileFlags)

	run := program.FromCommandLine(positional, cli.RunBash.Value(), probe)
	run.Namespaces = namespace.Resolve(flags)

	return AppConfig{
		ConfigPath:   filePath,
		LogLevel:     firstNonEmpty(cli.LogLevel.Value(), file.LogLevel),
		LogDir:       firstNonEmpty(cli.LogDir.Value(), file.LogDir),
		OTLPEndpoint: firstNonEmpty(cli.OTLPEndpoint.Value(), file.OTLPEndpoint),
		Run:          run,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
