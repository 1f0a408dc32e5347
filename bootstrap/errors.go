package bootstrap

import "fmt"

// Step names a bootstrap stage in errors.
type Step string

const (
	StepWorkDir Step = "cwd"
	StepTmpDir  Step = "tmp"
	StepEnv     Step = "env"
)

var stepMessages = map[Step]string{
	StepWorkDir: "failed to get current directory",
	StepTmpDir:  "failed to get tmp_dir",
	StepEnv:     "failed to publish environment",
}

// SetupError is a fatal bootstrap failure. Nothing is retried.
type SetupError struct {
	Step Step
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s: %v", stepMessages[e.Step], e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// NestingError is the panic value raised when a sandbox would start inside
// another one.
type NestingError struct{}

func (*NestingError) Error() string {
	return "not launching a new sandbox as one is already running in this process hierarchy"
}
