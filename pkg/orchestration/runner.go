package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/servicemanager"
	"github.com/rs/zerolog"
)

// StepState is the lifecycle of a single step as seen by an observer.
type StepState string

const (
	StepStarted   StepState = "STARTED"
	StepSucceeded StepState = "SUCCEEDED"
	StepFailed    StepState = "FAILED"
	StepSkipped   StepState = "SKIPPED"
)

// Step is one named unit of the deployment workflow.
type Step struct {
	Name string
	Run  func(ctx context.Context) ([]servicemanager.Outcome, error)
	// Skip marks a step that is reported but not executed.
	Skip bool
}

// StepError identifies the step that stopped a run.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// StepReport records what one step did.
type StepReport struct {
	Name     string
	State    StepState
	Duration time.Duration
	Outcomes []servicemanager.Outcome
	Err      error
}

// StepEvent is sent to the observer whenever a step changes state.
type StepEvent struct {
	RunID  string
	Step   string
	State  StepState
	Report *StepReport
}

// Report is the result of a whole run.
type Report struct {
	RunID string
	Steps []StepReport
}

// Count returns how many outcomes of the given kind the run produced.
func (r *Report) Count(kind servicemanager.OutcomeKind) int {
	n := 0
	for _, step := range r.Steps {
		for _, o := range step.Outcomes {
			if o.Kind == kind {
				n++
			}
		}
	}
	return n
}

// Runner executes steps strictly in order and stops at the first failure.
// Nothing that already succeeded is rolled back.
type Runner struct {
	logger   zerolog.Logger
	observer func(StepEvent)
}

// NewRunner creates a Runner. observer may be nil.
func NewRunner(logger zerolog.Logger, observer func(StepEvent)) *Runner {
	return &Runner{
		logger:   logger.With().Str("component", "Runner").Logger(),
		observer: observer,
	}
}

// Run executes the steps. On failure the returned report covers every step up to and
// including the failing one, and the error is a *StepError.
func (r *Runner) Run(ctx context.Context, runID string, steps []Step) (*Report, error) {
	report := &Report{RunID: runID}
	log := r.logger.With().Str("run_id", runID).Logger()

	for _, step := range steps {
		stepLog := log.With().Str("step", step.Name).Logger()
		if step.Skip {
			stepLog.Info().Msg("Step skipped.")
			report.Steps = append(report.Steps, StepReport{Name: step.Name, State: StepSkipped})
			r.notify(runID, step.Name, StepSkipped, &report.Steps[len(report.Steps)-1])
			continue
		}
		if err := ctx.Err(); err != nil {
			report.Steps = append(report.Steps, StepReport{Name: step.Name, State: StepFailed, Err: err})
			r.notify(runID, step.Name, StepFailed, &report.Steps[len(report.Steps)-1])
			return report, &StepError{Step: step.Name, Err: err}
		}

		stepLog.Info().Msg("Step started.")
		r.notify(runID, step.Name, StepStarted, nil)
		start := time.Now()
		outcomes, err := step.Run(ctx)
		sr := StepReport{Name: step.Name, Duration: time.Since(start), Outcomes: outcomes, State: StepSucceeded}

		if err != nil {
			sr.State = StepFailed
			sr.Err = err
			report.Steps = append(report.Steps, sr)
			stepLog.Error().Err(err).Dur("duration", sr.Duration).Msg("Step failed, stopping run.")
			r.notify(runID, step.Name, StepFailed, &report.Steps[len(report.Steps)-1])
			return report, &StepError{Step: step.Name, Err: err}
		}
		report.Steps = append(report.Steps, sr)
		stepLog.Info().Dur("duration", sr.Duration).Int("outcomes", len(outcomes)).Msg("Step completed.")
		r.notify(runID, step.Name, StepSucceeded, &report.Steps[len(report.Steps)-1])
	}
	return report, nil
}

func (r *Runner) notify(runID, step string, state StepState, sr *StepReport) {
	if r.observer == nil {
		return
	}
	r.observer(StepEvent{RunID: runID, Step: step, State: state, Report: sr})
}
