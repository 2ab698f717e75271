package agent

import (
	"context"

	"github.com/qmuntal/stateless"

	"github.com/comigor/interview-bot/internal/logger"
)

// Pipeline states
type stage string

const (
	stageReceived     stage = "Received"
	stageTranscribing stage = "Transcribing"
	stageCompleting   stage = "Completing"
	stagePersisting   stage = "Persisting"
	stageSynthesizing stage = "Synthesizing"
	stageDone         stage = "Done"   // Terminal: successful interaction
	stageFailed       stage = "Failed" // Terminal: error in any stage
)

// Pipeline triggers
type trigger string

const (
	triggerAudioReceived trigger = "AudioReceived"
	triggerTextReceived  trigger = "TextReceived"
	triggerTranscribed   trigger = "Transcribed"
	triggerCompleted     trigger = "Completed"
	triggerPersisted     trigger = "Persisted"
	triggerSynthesized   trigger = "Synthesized"
	triggerFinished      trigger = "Finished" // the mode needs no further stage
	triggerErrorOccurred trigger = "ErrorOccurred"
)

// newPipeline builds the state machine for one interaction:
//
//	Received -> Transcribing -> Completing -> Persisting -> Synthesizing -> Done
//
// Text input enters at Completing. Transcribing and Persisting may finish
// early depending on the mode. Every working stage can fail.
func (a *Agent) newPipeline(t *turn) *stateless.StateMachine {
	fsm := stateless.NewStateMachine(stageReceived)

	enter := func(st stage) func(context.Context, ...any) error {
		return func(_ context.Context, _ ...any) error {
			logger.L.Debug("pipeline: entering stage", "request_id", t.id, "stage", st)
			return nil
		}
	}

	fsm.Configure(stageReceived).
		Permit(triggerAudioReceived, stageTranscribing).
		Permit(triggerTextReceived, stageCompleting)

	fsm.Configure(stageTranscribing).
		OnEntry(enter(stageTranscribing)).
		Permit(triggerTranscribed, stageCompleting).
		Permit(triggerFinished, stageDone).
		Permit(triggerErrorOccurred, stageFailed)

	fsm.Configure(stageCompleting).
		OnEntry(enter(stageCompleting)).
		Permit(triggerCompleted, stagePersisting).
		Permit(triggerErrorOccurred, stageFailed)

	fsm.Configure(stagePersisting).
		OnEntry(enter(stagePersisting)).
		Permit(triggerPersisted, stageSynthesizing).
		Permit(triggerFinished, stageDone).
		Permit(triggerErrorOccurred, stageFailed)

	fsm.Configure(stageSynthesizing).
		OnEntry(enter(stageSynthesizing)).
		Permit(triggerSynthesized, stageDone).
		Permit(triggerErrorOccurred, stageFailed)

	fsm.Configure(stageDone).OnEntry(enter(stageDone))
	fsm.Configure(stageFailed).OnEntry(enter(stageFailed))

	return fsm
}
