package bootstrap

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/gentoo/sandbox/environment"
	"github.com/gentoo/sandbox/library"
)

// DefaultTmpDir is used when TMPDIR is unset.
const DefaultTmpDir = "/tmp"

// Info is everything the enforcement layer needs about the host side.
type Info struct {
	// WorkDir is empty when the package manager owns write scoping.
	WorkDir string `yaml:"work_dir,omitempty"`
	TmpDir  string `yaml:"tmp_dir"`
	HomeDir string `yaml:"home_dir"`
	Library string `yaml:"library"`
}

type Config struct {
	Env    environment.Env
	Logger *slog.Logger

	// Interactive publishes the captured working directory.
	Interactive bool

	// Getwd and Canonicalize default to the OS implementations.
	Getwd        func() (string, error)
	Canonicalize func(path string) (string, error)

	Loader      library.Loader
	OverrideDir string
}

// CheckNesting panics with *NestingError if a sandbox is already active in
// this process hierarchy, unless the testing override is on. It only reads
// the environment.
func CheckNesting(env environment.Env) {
	if !environment.IsOn(env, environment.SandboxTesting) && environment.Has(env, environment.SandboxActive) {
		panic(&NestingError{})
	}
}

// Setup resolves the directories the sandboxed process will see. Steps run
// in a fixed order and each may read what the previous ones published.
func Setup(cfg Config) (Info, error) {
	cfg = withDefaults(cfg)
	var info Info

	workDir, err := workDir(cfg)
	if err != nil {
		return Info{}, err
	}
	info.WorkDir = workDir

	info.TmpDir, err = tmpDir(cfg)
	if err != nil {
		return Info{}, err
	}

	info.HomeDir, err = homeDir(cfg, info.TmpDir)
	if err != nil {
		return Info{}, err
	}

	info.Library = library.Resolve(cfg.Loader, cfg.OverrideDir)
	cfg.Logger.Debug("Resolved enforcement library", "library", info.Library)

	return info, nil
}

func withDefaults(cfg Config) Config {
	if cfg.Env == nil {
		cfg.Env = environment.OS{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Getwd == nil {
		cfg.Getwd = os.Getwd
	}
	if cfg.Canonicalize == nil {
		cfg.Canonicalize = Canonicalize
	}
	if cfg.Loader == nil {
		cfg.Loader = library.NewSearchPathLoader(cfg.Env)
	}
	return cfg
}

func workDir(cfg Config) (string, error) {
	if environment.Has(cfg.Env, environment.PortageTmpDir) {
		// Portage handles write scoping itself.
		cfg.Logger.Debug("Skipping work dir capture", "reason", environment.PortageTmpDir+" is set")
		return "", nil
	}

	dir, err := cfg.Getwd()
	if err != nil {
		return "", &SetupError{Step: StepWorkDir, Err: err}
	}
	if cfg.Interactive {
		if err := cfg.Env.Set(environment.SandboxWorkDir, dir); err != nil {
			return "", &SetupError{Step: StepEnv, Err: err}
		}
	}
	cfg.Logger.Debug("Captured work dir", "work_dir", dir, "published", cfg.Interactive)
	return dir, nil
}

func tmpDir(cfg Config) (string, error) {
	raw, ok := cfg.Env.Lookup(environment.TmpDir)
	if !ok {
		raw = DefaultTmpDir
	}

	dir, err := cfg.Canonicalize(raw)
	if err != nil {
		return "", &SetupError{Step: StepTmpDir, Err: err}
	}
	if err := cfg.Env.Set(environment.TmpDir, dir); err != nil {
		return "", &SetupError{Step: StepEnv, Err: err}
	}
	cfg.Logger.Debug("Resolved tmp dir", "raw", raw, "tmp_dir", dir)
	return dir, nil
}

func homeDir(cfg Config, tmpDir string) (string, error) {
	if home, ok := cfg.Env.Lookup(environment.Home); ok {
		return home, nil
	}
	if err := cfg.Env.Set(environment.Home, tmpDir); err != nil {
		return "", &SetupError{Step: StepEnv, Err: err}
	}
	cfg.Logger.Debug("HOME is unset, using tmp dir", "home_dir", tmpDir)
	return tmpDir, nil
}

// Canonicalize returns the absolute, symlink free form of path. The path
// must exist.
func Canonicalize(path string) (string, error) {
	if path == "" {
		return "", &fs.PathError{Op: "canonicalize", Path: path, Err: syscall.ENOENT}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
