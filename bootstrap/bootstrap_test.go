package bootstrap

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/gentoo/sandbox/environment"
	"github.com/gentoo/sandbox/library"
)

var noLibrary = library.LoaderFunc(func(string) error { return errors.New("not found") })

func newConfig(env environment.Map) Config {
	return Config{
		Env:    env,
		Getwd:  func() (string, error) { return "/work", nil },
		Loader: noLibrary,
	}
}

func TestCheckNesting(t *testing.T) {
	tcs := []struct {
		name      string
		env       environment.Map
		wantPanic bool
	}{
		{name: "clean", env: environment.Map{}},
		{name: "active", env: environment.Map{environment.SandboxActive: "armedandready"}, wantPanic: true},
		{name: "active with empty value", env: environment.Map{environment.SandboxActive: ""}, wantPanic: true},
		{name: "active while testing", env: environment.Map{environment.SandboxActive: "1", environment.SandboxTesting: "yes"}},
		{name: "active with testing off", env: environment.Map{environment.SandboxActive: "1", environment.SandboxTesting: "no"}, wantPanic: true},
		{name: "testing alone", env: environment.Map{environment.SandboxTesting: "1"}},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			before := len(tc.env)
			if tc.wantPanic {
				require.PanicsWithError(t, (&NestingError{}).Error(), func() { CheckNesting(tc.env) })
			} else {
				require.NotPanics(t, func() { CheckNesting(tc.env) })
			}
			require.Len(t, tc.env, before, "the guard must not write")
		})
	}
}

func TestSetup(t *testing.T) {
	tmp := t.TempDir()
	canonicalTmp, err := filepath.EvalSymlinks(tmp)
	require.NoError(t, err)

	link := filepath.Join(t.TempDir(), "tmp-link")
	require.NoError(t, os.Symlink(tmp, link))

	tcs := []struct {
		name        string
		env         environment.Map
		interactive bool
		wantInfo    Info
		wantEnv     environment.Map
	}{
		{
			name:        "interactive publishes work dir",
			env:         environment.Map{environment.TmpDir: link, environment.Home: "/home/larry"},
			interactive: true,
			wantInfo:    Info{WorkDir: "/work", TmpDir: canonicalTmp, HomeDir: "/home/larry", Library: library.Filename(library.Name)},
			wantEnv: environment.Map{
				environment.TmpDir:         canonicalTmp,
				environment.Home:           "/home/larry",
				environment.SandboxWorkDir: "/work",
			},
		},
		{
			name:     "non-interactive keeps work dir private",
			env:      environment.Map{environment.TmpDir: link, environment.Home: "/home/larry"},
			wantInfo: Info{WorkDir: "/work", TmpDir: canonicalTmp, HomeDir: "/home/larry", Library: library.Filename(library.Name)},
			wantEnv: environment.Map{
				environment.TmpDir: canonicalTmp,
				environment.Home:   "/home/larry",
			},
		},
		{
			name:        "portage skips work dir",
			env:         environment.Map{environment.PortageTmpDir: "/var/tmp/portage", environment.TmpDir: tmp, environment.Home: "/home/larry"},
			interactive: true,
			wantInfo:    Info{TmpDir: canonicalTmp, HomeDir: "/home/larry", Library: library.Filename(library.Name)},
			wantEnv: environment.Map{
				environment.PortageTmpDir: "/var/tmp/portage",
				environment.TmpDir:        canonicalTmp,
				environment.Home:          "/home/larry",
			},
		},
		{
			name:     "home falls back to tmp dir",
			env:      environment.Map{environment.TmpDir: link},
			wantInfo: Info{WorkDir: "/work", TmpDir: canonicalTmp, HomeDir: canonicalTmp, Library: library.Filename(library.Name)},
			wantEnv: environment.Map{
				environment.TmpDir: canonicalTmp,
				environment.Home:   canonicalTmp,
			},
		},
		{
			name:     "explicit home is not validated",
			env:      environment.Map{environment.TmpDir: tmp, environment.Home: "/does/not/exist"},
			wantInfo: Info{WorkDir: "/work", TmpDir: canonicalTmp, HomeDir: "/does/not/exist", Library: library.Filename(library.Name)},
			wantEnv: environment.Map{
				environment.TmpDir: canonicalTmp,
				environment.Home:   "/does/not/exist",
			},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newConfig(tc.env)
			cfg.Interactive = tc.interactive

			info, err := Setup(cfg)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.wantInfo, info); diff != "" {
				t.Errorf("info mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.wantEnv, tc.env); diff != "" {
				t.Errorf("env mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSetupDefaultTmpDir(t *testing.T) {
	var canonicalized []string
	env := environment.Map{environment.Home: "/root"}
	cfg := newConfig(env)
	cfg.Canonicalize = func(path string) (string, error) {
		canonicalized = append(canonicalized, path)
		return "/private/tmp", nil
	}

	info, err := Setup(cfg)
	require.NoError(t, err)
	require.Equal(t, []string{DefaultTmpDir}, canonicalized)
	require.Equal(t, "/private/tmp", info.TmpDir)
	require.Equal(t, "/private/tmp", env[environment.TmpDir])
}

func TestSetupDefaultTmpDirMustCanonicalize(t *testing.T) {
	cfg := newConfig(environment.Map{})
	cfg.Canonicalize = func(string) (string, error) { return "", os.ErrNotExist }

	_, err := Setup(cfg)
	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	require.Equal(t, StepTmpDir, setupErr.Step)
}

func TestSetupErrors(t *testing.T) {
	t.Run("cwd", func(t *testing.T) {
		env := environment.Map{environment.TmpDir: t.TempDir()}
		cfg := newConfig(env)
		cfg.Getwd = func() (string, error) { return "", os.ErrPermission }

		_, err := Setup(cfg)
		var setupErr *SetupError
		require.ErrorAs(t, err, &setupErr)
		require.Equal(t, StepWorkDir, setupErr.Step)
		require.ErrorIs(t, err, os.ErrPermission)
		require.Contains(t, err.Error(), "failed to get current directory")
		require.NotContains(t, env, environment.Home, "later steps must not run")
	})

	t.Run("tmp", func(t *testing.T) {
		env := environment.Map{environment.TmpDir: filepath.Join(t.TempDir(), "missing")}
		_, err := Setup(newConfig(env))
		var setupErr *SetupError
		require.ErrorAs(t, err, &setupErr)
		require.Equal(t, StepTmpDir, setupErr.Step)
		require.ErrorIs(t, err, os.ErrNotExist)
		require.Contains(t, err.Error(), "failed to get tmp_dir")
		require.NotContains(t, env, environment.Home)
	})
}

func TestSetupEmptyTmpDir(t *testing.T) {
	env := environment.Map{environment.TmpDir: "", environment.Home: "/h"}
	_, err := Setup(newConfig(env))

	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	require.Equal(t, StepTmpDir, setupErr.Step)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Equal(t, "", env[environment.TmpDir], "a failed step must not publish")
}

func TestSetupLibraryOverride(t *testing.T) {
	cfg := newConfig(environment.Map{environment.TmpDir: t.TempDir(), environment.Home: "/h"})
	cfg.OverrideDir = "/opt/prefix/lib"

	info, err := Setup(cfg)
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/opt/prefix/lib", library.Filename(library.Name)), info.Library)
}

func TestCanonicalize(t *testing.T) {
	dir := t.TempDir()
	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	link := filepath.Join(t.TempDir(), "link")
	require.NoError(t, os.Symlink(dir, link))

	got, err := Canonicalize(link + "/.")
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = Canonicalize(filepath.Join(dir, "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = Canonicalize("")
	require.ErrorIs(t, err, os.ErrNotExist)
}
