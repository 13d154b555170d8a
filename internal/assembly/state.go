package assembly

import "fmt"

type State int

const (
	Idle State = iota
	LoadingSources
	ComposingSheets
	ApplyingTransforms
	Serializing
	Done
	Failed
)

var stateNames = [...]string{
	Idle:               "idle",
	LoadingSources:     "loading_sources",
	ComposingSheets:    "composing_sheets",
	ApplyingTransforms: "applying_transforms",
	Serializing:        "serializing",
	Done:               "done",
	Failed:             "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// next reports whether the machine may move from s to to. Stages run in
// order; any non-terminal state may fail.
func (s State) next(to State) bool {
	if s.Terminal() {
		return false
	}
	if to == Failed {
		return true
	}
	return to == s+1
}

// AssemblyError is the single error an assembly reports once it has
// started. Stage is where it stopped.
type AssemblyError struct {
	Stage State
	Err   error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assembly failed while %s: %v", e.Stage, e.Err)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}
