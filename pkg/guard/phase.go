package guard

import (
	"context"

	"github.com/looplab/fsm"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	mdwlog "github.com/msto63/guardian/foundation/core/log"
	"github.com/msto63/guardian/pkg/metadata"
)

// Phases of a guarded call
const (
	PhaseReady     = "ready"
	PhaseChecked   = "checked"
	PhaseCompleted = "completed"
	PhaseAborted   = "aborted"
)

const (
	eventCheck    = "check"
	eventComplete = "complete"
	eventAbort    = "abort"
)

// phaseMachine enforces pre, call, post ordering for one guarded call
type phaseMachine struct {
	fsm *fsm.FSM
}

func newPhaseMachine(m metadata.Method, logger *mdwlog.Logger) *phaseMachine {
	return &phaseMachine{
		fsm: fsm.NewFSM(
			PhaseReady,
			fsm.Events{
				{Name: eventCheck, Src: []string{PhaseReady}, Dst: PhaseChecked},
				{Name: eventComplete, Src: []string{PhaseChecked}, Dst: PhaseCompleted},
				{Name: eventAbort, Src: []string{PhaseReady, PhaseChecked}, Dst: PhaseAborted},
			},
			fsm.Callbacks{
				"enter_state": func(_ context.Context, e *fsm.Event) {
					logger.Trace("guarded call phase", mdwlog.Fields{
						"method": m.String(),
						"from":   e.Src,
						"to":     e.Dst,
					})
				},
			},
		),
	}
}

func (p *phaseMachine) Current() string { return p.fsm.Current() }

func (p *phaseMachine) fire(event string) error {
	if err := p.fsm.Event(context.Background(), event); err != nil {
		return mdwerror.Wrap(err, "guarded call phases out of order").
			WithCode(mdwerror.CodeInvalidSequence).
			WithDetail("phase", p.fsm.Current()).
			WithDetail("event", event)
	}
	return nil
}

// abort moves the machine to aborted unless it already finished
func (p *phaseMachine) abort() {
	if p.fsm.Can(eventAbort) {
		_ = p.fsm.Event(context.Background(), eventAbort)
	}
}
