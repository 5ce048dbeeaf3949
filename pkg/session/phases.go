package session

import (
	"context"
	"time"

	"github.com/looplab/fsm"
)

// Phase is the respondent-visible stage of a session.
type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhasePasswordGate       Phase = "password_gate"
	PhaseWelcome            Phase = "welcome"
	PhaseQuestion           Phase = "question"
	PhaseSubmitting         Phase = "submitting"
	PhaseSubmitted          Phase = "submitted"
	PhasePreviousSubmission Phase = "previous_submission"
	PhaseError              Phase = "error"
)

// Terminal reports whether no further navigation is possible.
func (p Phase) Terminal() bool {
	return p == PhaseSubmitted || p == PhasePreviousSubmission || p == PhaseError
}

// AutoAdvanceDelay is the pause a presentation layer should leave between an
// auto-advancing answer and the Next call it triggers.
const AutoAdvanceDelay = 400 * time.Millisecond

const (
	evRequirePassword = "require_password"
	evWelcome         = "show_welcome"
	evStart           = "start"
	evShowPrevious    = "show_previous"
	evReview          = "review"
	evResume          = "resume"
	evComplete        = "complete"
	evFail            = "fail"
)

func newPhaseMachine(onEnter func(from, to Phase)) *fsm.FSM {
	open := []string{
		string(PhaseIdle),
		string(PhasePasswordGate),
		string(PhaseWelcome),
		string(PhaseQuestion),
		string(PhaseSubmitting),
	}
	return fsm.NewFSM(
		string(PhaseIdle),
		fsm.Events{
			{Name: evRequirePassword, Src: []string{string(PhaseIdle)}, Dst: string(PhasePasswordGate)},
			{Name: evWelcome, Src: []string{string(PhaseIdle), string(PhasePasswordGate)}, Dst: string(PhaseWelcome)},
			{Name: evStart, Src: []string{string(PhaseIdle), string(PhasePasswordGate), string(PhaseWelcome)}, Dst: string(PhaseQuestion)},
			{Name: evShowPrevious, Src: []string{string(PhaseIdle)}, Dst: string(PhasePreviousSubmission)},
			{Name: evReview, Src: []string{string(PhaseQuestion)}, Dst: string(PhaseSubmitting)},
			{Name: evResume, Src: []string{string(PhaseSubmitting)}, Dst: string(PhaseQuestion)},
			{Name: evComplete, Src: []string{string(PhaseSubmitting)}, Dst: string(PhaseSubmitted)},
			{Name: evFail, Src: open, Dst: string(PhaseError)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if onEnter != nil {
					onEnter(Phase(e.Src), Phase(e.Dst))
				}
			},
		},
	)
}

// LoadState is the re-entrancy guard around Load.
type LoadState string

const (
	LoadIdle    LoadState = "idle"
	LoadLoading LoadState = "loading"
	LoadLoaded  LoadState = "loaded"
	LoadFailed  LoadState = "failed"
)

const (
	evLoad   = "load"
	evLoaded = "done"
	evFailed = "abort"
)

func newLoadGuard() *fsm.FSM {
	return fsm.NewFSM(
		string(LoadIdle),
		fsm.Events{
			{Name: evLoad, Src: []string{string(LoadIdle)}, Dst: string(LoadLoading)},
			{Name: evLoaded, Src: []string{string(LoadLoading)}, Dst: string(LoadLoaded)},
			{Name: evFailed, Src: []string{string(LoadLoading)}, Dst: string(LoadFailed)},
		},
		fsm.Callbacks{},
	)
}
