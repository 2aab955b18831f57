package transfer

import "fmt"

// Stage names the step of a run that failed.
type Stage string

const (
	StageSetup  Stage = "setup"
	StageSync   Stage = "sync"
	StageRecipe Stage = "recipe"
	StageProof  Stage = "proof"
	StageSubmit Stage = "submit"
)

// StageError is returned by Run for every failure.
type StageError struct {
	Stage Stage
	Err   error

	// CloseErr is set when releasing the wallet afterwards also failed. It
	// never replaces Err.
	CloseErr error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
