package cli

import (
	"context"
	"fmt"

	"github.com/coder/serpent"

	"github.com/gentoo/sandbox/config"
	"github.com/gentoo/sandbox/environment"
	"github.com/gentoo/sandbox/namespace"
	"github.com/gentoo/sandbox/program"
	"github.com/gentoo/sandbox/run"
)

// NewCommand creates and returns the root serpent command
func NewCommand() *serpent.Command {
	var cliConfig config.CliConfig

	return &serpent.Command{
		Use:   "sandbox [flags] [--] [program [args...]]",
		Short: "Start a sandbox session and execute the specified program",
		Long: `sandbox will start up a sandbox session and execute the specified program.
If no program is specified, an interactive shell is automatically launched.
You can use this to quickly test out sandbox behavior.

A program that is not executable is run through the shell instead.

Examples:
  # Interactive shell
  sandbox

  # Run a build with mount and pid namespaces
  sandbox --ns-on --ns-mnt-on --ns-pid-on -- make -j4

  # Run a command line through bash
  sandbox -c -- 'echo $HOME'`,
		Options: options(&cliConfig),
		Handler: func(inv *serpent.Invocation) error {
			return Run(inv, cliConfig)
		},
	}
}

func options(cfg *config.CliConfig) serpent.OptionSet {
	opts := serpent.OptionSet{
		{
			Name:        "config",
			Flag:        "config",
			Env:         "SANDBOX_CONFIG",
			Description: "Path to YAML config file (defaults to $XDG_CONFIG_HOME/sandbox/config.yaml when present).",
			Value:       &cfg.Config,
		},
		{
			Name:        "log-level",
			Flag:        "log-level",
			Env:         "SANDBOX_LOG_LEVEL",
			Description: "Set log level (error, warn, info, debug). Defaults to debug without a program and info otherwise.",
			Value:       &cfg.LogLevel,
		},
		{
			Name:        "log-dir",
			Flag:        "log-dir",
			Env:         "SANDBOX_LOG_DIR",
			Description: "Write logs to a file in this directory instead of stderr.",
			Value:       &cfg.LogDir,
		},
		{
			Name:        "otlp-endpoint",
			Flag:        "otlp-endpoint",
			Env:         "SANDBOX_OTLP_ENDPOINT",
			Description: "Also export logs to this OTLP/HTTP endpoint URL.",
			Value:       &cfg.OTLPEndpoint,
		},
		{
			Name:          "bash",
			Flag:          "bash",
			FlagShorthand: "c",
			Description:   "Run command through bash shell.",
			Value:         &cfg.RunBash,
		},
		{
			Name:        "ns-on",
			Flag:        "ns-on",
			Description: "Enable the use of namespaces.",
			Value:       serpent.BoolOf(&cfg.Namespaces.On),
		},
		{
			Name:        "ns-off",
			Flag:        "ns-off",
			Description: "Disable the use of namespaces.",
			Value:       serpent.BoolOf(&cfg.Namespaces.Off),
		},
	}

	for i, k := range namespace.Kinds() {
		opts = append(opts,
			serpent.Option{
				Name:        fmt.Sprintf("ns-%s-on", k),
				Flag:        fmt.Sprintf("ns-%s-on", k),
				Description: fmt.Sprintf("Enable the use of %s namespaces.", k.Description()),
				Value:       serpent.BoolOf(&cfg.Namespaces.KindOn[i]),
			},
			serpent.Option{
				Name:        fmt.Sprintf("ns-%s-off", k),
				Flag:        fmt.Sprintf("ns-%s-off", k),
				Description: fmt.Sprintf("Disable the use of %s namespaces.", k.Description()),
				Value:       serpent.BoolOf(&cfg.Namespaces.KindOff[i]),
			},
		)
	}
	return opts
}

// Run loads the config file, sets up logging and bootstraps the sandbox.
func Run(inv *serpent.Invocation, cliConfig config.CliConfig) error {
	ctx, cancel := context.WithCancel(inv.Context())
	defer cancel()

	fileConfig, filePath, err := loadConfigFile(cliConfig.Config.Value())
	if err != nil {
		return err
	}

	appConfig, err := config.NewAppConfig(cliConfig, fileConfig, filePath, inv.Args, program.AccessProber{})
	if err != nil {
		return err
	}

	logger, closeLogger, err := setupLogging(ctx, appConfig)
	if err != nil {
		return fmt.Errorf("could not set up logging: %v", err)
	}
	defer closeLogger()

	if filePath != "" {
		logger.Debug("Loaded config file", "path", filePath)
	}
	logger.Debug("Resolved run options",
		"program", appConfig.Run.Program,
		"run_via_shell", appConfig.Run.RunViaShell,
		"namespaces", appConfig.Run.Namespaces)

	return run.Run(ctx, logger, appConfig, run.Options{
		Env:    environment.OS{},
		Stdout: inv.Stdout,
	})
}
