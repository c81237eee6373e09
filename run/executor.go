package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hexlight/docuflow/admission"
	"github.com/hexlight/docuflow/constraint"
	"github.com/hexlight/docuflow/plan"
	"github.com/hexlight/docuflow/session"
)

// ErrChannelFailure marks a run aborted because the decision channel
// broke underneath it.
var ErrChannelFailure = errors.New("decision channel failure")

// Executor drives validated plans. One Executor serves many runs; all
// per-run state lives in the running value created by Execute.
type Executor struct {
	catalog   *constraint.Catalog
	evaluator *admission.Evaluator
	generator Generator
	policy    Policy
	logger    *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(catalog *constraint.Catalog, evaluator *admission.Evaluator, generator Generator, policy Policy, logger *slog.Logger) *Executor {
	return &Executor{
		catalog:   catalog,
		evaluator: evaluator,
		generator: generator,
		policy:    policy.normalize(),
		logger:    logger,
	}
}

// Execute runs the plan over the channel. Admission is re-checked
// against live project state before every document, so uploads that
// arrive mid-run count immediately. The channel receives every event
// in order, ends with exactly one terminal event, and is closed here
// regardless of outcome.
//
// The returned state reflects the run at its terminal event. The error
// is non-nil only for infrastructure failures and invalid decisions;
// stop, timeout, and per-document failures are normal outcomes.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan, ch session.Channel, opts admission.Options) (*RunState, error) {
	if err := p.CheckShape(); err != nil {
		return nil, err
	}

	runsStarted.Inc()
	r := &running{
		exec:  e,
		plan:  p,
		ch:    ch,
		opts:  opts,
		state: newRunState(p),
		inSet: make(map[constraint.DocType]bool),
	}

	err := r.run(ctx)
	if closeErr := ch.Close(); closeErr != nil {
		e.logger.Warn("Failed to close session channel", "error", closeErr)
	}
	runsFinished.WithLabelValues(string(r.state.Terminal)).Inc()
	return r.state, err
}

// running is the mutable state of one run in flight.
type running struct {
	exec  *Executor
	plan  *plan.Plan
	ch    session.Channel
	opts  admission.Options
	state *RunState
	inSet map[constraint.DocType]bool
}

func (r *running) run(ctx context.Context) error {
	total := len(r.plan.Steps)

	i := 0
	for i < total {
		if ctx.Err() != nil {
			return r.terminate(ctx, &session.RunCancelled{Reason: ctx.Err().Error()}, ctx.Err())
		}

		stepFailed, err := r.runStep(ctx, i, r.plan.Steps[i].Docs)
		if err != nil {
			return r.fatal(ctx, err)
		}

		// The final step completes the run without a gate unless the
		// policy asks for one or the step failed; a failed final step
		// still needs its retry/stop opportunity.
		if i+1 >= total && !r.exec.policy.GateAfterFinalStep && !stepFailed {
			i++
			continue
		}

		next, err := r.gate(ctx, i)
		if next < 0 {
			return err
		}
		i = next
	}

	return r.terminate(ctx, &session.RunCompleted{}, nil)
}

// runStep executes the given documents of one step serially and closes
// the step with step_completed or step_failed. Retry re-enters here
// with the retry target plus any documents an aborted pass never
// reached. The bool reports whether the step closed failed.
func (r *running) runStep(ctx context.Context, stepIdx int, docs []plan.DocRequest) (bool, error) {
	index := stepIdx + 1
	r.state.Steps[stepIdx].Status = StatusRunning
	if err := r.ch.Send(ctx, &session.StepStart{Index: index, Total: len(r.plan.Steps)}); err != nil {
		return false, err
	}

	for _, doc := range docs {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		ok, err := r.runDoc(ctx, stepIdx, doc)
		if err != nil {
			return false, err
		}
		if !ok && r.exec.policy.OnDocFailure == AbortStep {
			break
		}
	}

	failed := 0
	for _, d := range r.state.Steps[stepIdx].Docs {
		if d.Status == StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		r.state.Steps[stepIdx].Status = StatusFailed
		summary := fmt.Sprintf("%d of %d documents failed", failed, len(r.state.Steps[stepIdx].Docs))
		return true, r.ch.Send(ctx, &session.StepFailed{Index: index, Summary: summary})
	}
	r.state.Steps[stepIdx].Status = StatusCompleted
	return false, r.ch.Send(ctx, &session.StepCompleted{Index: index})
}

// runDoc admits and generates one document. The bool reports document
// success; the error reports infrastructure failure or cancellation.
func (r *running) runDoc(ctx context.Context, stepIdx int, doc plan.DocRequest) (bool, error) {
	ds := r.state.docState(stepIdx, doc.Type)
	ds.Status = StatusRunning

	if err := r.ch.Send(ctx, &session.DocStart{
		DocType:     doc.Type,
		DisplayName: r.exec.catalog.DisplayName(doc.Type),
	}); err != nil {
		return false, err
	}

	docOpts := r.opts
	docOpts.AdditionalAvailable = r.state.Generated
	verdict, err := r.exec.evaluator.Evaluate(ctx, doc.Type, r.plan.ProjectID, docOpts)
	if err != nil {
		return false, fmt.Errorf("admission check for %s: %w", doc.Type, err)
	}

	if !admission.Decide(verdict, r.opts.AllowOverride) {
		docsFailed.Inc()
		ds.Status = StatusFailed
		ds.Reason = verdict.ErrorMessage
		r.exec.logger.Info("Document denied admission",
			"doc_type", doc.Type,
			"missing_required", verdict.MissingRequired)
		return false, r.ch.Send(ctx, &session.DocFailed{
			DocType: doc.Type,
			Reason:  verdict.ErrorMessage,
			Verdict: verdict,
		})
	}

	req := GenerateRequest{
		ProjectID:    r.plan.ProjectID,
		DocType:      doc.Type,
		Message:      doc.Message,
		ContextPaths: verdict.ContextPaths,
		OnProgress: func(percent int) {
			if percent < 0 {
				percent = 0
			} else if percent > 100 {
				percent = 100
			}
			if err := r.ch.Send(ctx, &session.DocProgress{DocType: doc.Type, Percent: percent}); err != nil {
				r.exec.logger.Debug("Failed to send progress", "doc_type", doc.Type, "error", err)
			}
		},
	}

	result, err := r.exec.generator.Generate(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		docsFailed.Inc()
		ds.Status = StatusFailed
		ds.Reason = err.Error()
		r.exec.logger.Warn("Document generation failed", "doc_type", doc.Type, "error", err)
		return false, r.ch.Send(ctx, &session.DocFailed{DocType: doc.Type, Reason: err.Error()})
	}

	docsCompleted.Inc()
	ds.Status = StatusCompleted
	ds.ArtifactID = result.ArtifactID
	ds.StoragePath = result.StoragePath
	r.addGenerated(doc.Type)

	return true, r.ch.Send(ctx, &session.DocCompleted{
		DocType:     doc.Type,
		ArtifactID:  result.ArtifactID,
		StoragePath: result.StoragePath,
	})
}

// gate asks for a decision after step stepIdx. It returns the 0-based
// index of the next step to execute, or -1 when the run ended at the
// gate (terminal event already sent).
func (r *running) gate(ctx context.Context, stepIdx int) (int, error) {
	total := len(r.plan.Steps)
	next := stepIdx + 1

	for {
		if err := r.ch.Send(ctx, &session.AwaitDecision{NextIndex: next + 1}); err != nil {
			return -1, r.fatal(ctx, err)
		}

		d, err := r.receive(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return -1, r.terminate(ctx, &session.RunCancelled{Reason: ctx.Err().Error()}, ctx.Err())
			case errors.Is(err, context.DeadlineExceeded):
				decisionsReceived.WithLabelValues("timeout").Inc()
				return -1, r.terminate(ctx, &session.RunStopped{Reason: "decision timeout"}, nil)
			default:
				return -1, r.terminate(ctx,
					&session.RunFailed{Reason: "decision channel failure: " + err.Error()},
					fmt.Errorf("%w: %v", ErrChannelFailure, err))
			}
		}
		decisionsReceived.WithLabelValues(string(d.Type)).Inc()

		if err := d.Validate(); err != nil {
			return -1, r.invalid(ctx, err.Error())
		}

		switch d.Type {
		case session.DecisionContinue:
			return next, nil

		case session.DecisionStop:
			return -1, r.terminate(ctx, &session.RunStopped{}, nil)

		case session.DecisionSkip:
			if next >= total {
				return -1, r.invalid(ctx, "skip with no next step")
			}
			r.markSkipped(next)
			return next + 1, nil

		case session.DecisionRetry:
			docReq, ok := r.findDoc(stepIdx, d.DocType)
			if !ok {
				return -1, r.invalid(ctx, fmt.Sprintf("retry target %s is not in step %d", d.DocType, stepIdx+1))
			}
			if _, err := r.runStep(ctx, stepIdx, r.resumeDocs(stepIdx, docReq)); err != nil {
				return -1, r.fatal(ctx, err)
			}
			// Gate again after the retry.

		default:
			return -1, r.invalid(ctx, fmt.Sprintf("unknown type %q", d.Type))
		}
	}
}

// receive applies the decision timeout, when configured.
func (r *running) receive(ctx context.Context) (session.Decision, error) {
	if r.exec.policy.DecisionTimeout > 0 {
		tctx, cancel := context.WithTimeout(ctx, r.exec.policy.DecisionTimeout)
		defer cancel()
		return r.ch.Receive(tctx)
	}
	return r.ch.Receive(ctx)
}

// fatal resolves a runStep error into its terminal event: cancellation
// when the run context ended, run_failed otherwise.
func (r *running) fatal(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return r.terminate(ctx, &session.RunCancelled{Reason: ctx.Err().Error()}, ctx.Err())
	}
	return r.terminate(ctx, &session.RunFailed{Reason: err.Error()}, err)
}

// invalid ends the run on a decision the executor cannot honor.
func (r *running) invalid(ctx context.Context, reason string) error {
	return r.terminate(ctx,
		&session.RunFailed{Reason: "invalid decision: " + reason},
		fmt.Errorf("%w: %s", session.ErrInvalidDecision, reason))
}

// terminate records and sends the terminal event. The send is detached
// from the run context so cancellation still reaches the user.
func (r *running) terminate(ctx context.Context, e session.Event, err error) error {
	r.state.Terminal = e.EventType()
	if sendErr := r.ch.Send(context.WithoutCancel(ctx), e); sendErr != nil {
		r.exec.logger.Warn("Failed to send terminal event", "event", e.EventType(), "error", sendErr)
	}
	return err
}

// markSkipped flags a step the user chose to jump over. Its doc types
// do not join the generated set.
func (r *running) markSkipped(stepIdx int) {
	r.state.Steps[stepIdx].Status = StatusSkipped
	for j := range r.state.Steps[stepIdx].Docs {
		r.state.Steps[stepIdx].Docs[j].Status = StatusSkipped
	}
}

// resumeDocs builds the document list for a retry: the target first,
// then any sibling documents an aborted pass never reached, in plan
// order. A step only closes completed once every document has run.
func (r *running) resumeDocs(stepIdx int, target plan.DocRequest) []plan.DocRequest {
	docs := []plan.DocRequest{target}
	for j, d := range r.plan.Steps[stepIdx].Docs {
		if d.Type != target.Type && r.state.Steps[stepIdx].Docs[j].Status == StatusPending {
			docs = append(docs, d)
		}
	}
	return docs
}

// findDoc locates a retry target within the most recent step.
func (r *running) findDoc(stepIdx int, docType constraint.DocType) (plan.DocRequest, bool) {
	for _, d := range r.plan.Steps[stepIdx].Docs {
		if d.Type == docType {
			return d, true
		}
	}
	return plan.DocRequest{}, false
}

// addGenerated unions a doc type into the set available to later
// admission checks.
func (r *running) addGenerated(d constraint.DocType) {
	if !r.inSet[d] {
		r.inSet[d] = true
		r.state.Generated = append(r.state.Generated, d)
	}
}
