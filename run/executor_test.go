package run

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hexlight/docuflow/admission"
	"github.com/hexlight/docuflow/constraint"
	"github.com/hexlight/docuflow/plan"
	"github.com/hexlight/docuflow/project"
	"github.com/hexlight/docuflow/session"
)

var testCatalog = constraint.MustLoad(constraint.VariantEnhanced)

type fakeInspector struct {
	state *project.State
	err   error
}

func (f *fakeInspector) Inspect(_ context.Context, projectID int) (*project.State, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.state != nil {
		return f.state, nil
	}
	return &project.State{ProjectID: projectID, Paths: map[constraint.DocType]string{}}, nil
}

type fakeGenerator struct {
	calls         []constraint.DocType
	failRemaining map[constraint.DocType]int
	blockOnCtx    bool
}

func (g *fakeGenerator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	g.calls = append(g.calls, req.DocType)
	if g.blockOnCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if g.failRemaining[req.DocType] > 0 {
		g.failRemaining[req.DocType]--
		return nil, errors.New("llm unavailable")
	}
	if req.OnProgress != nil {
		req.OnProgress(50)
	}
	return &GenerateResult{
		ArtifactID:  "art-" + string(req.DocType),
		StoragePath: "/files/1/" + string(req.DocType) + ".md",
	}, nil
}

func newTestExecutor(insp *fakeInspector, gen Generator, policy Policy) *Executor {
	evaluator := admission.NewEvaluator(testCatalog, insp)
	return NewExecutor(testCatalog, evaluator, gen, policy, slog.Default())
}

func step(types ...constraint.DocType) plan.Step {
	s := plan.Step{}
	for _, t := range types {
		s.Docs = append(s.Docs, plan.DocRequest{Type: t, Message: "draft " + string(t)})
	}
	return s
}

// recorder drains events from an in-process channel and answers each
// await_decision from a scripted queue. Unanswered awaits are left to
// the decision timeout.
type recorder struct {
	ch        *session.InProc
	decisions []session.Decision
	onEvent   func(session.Event)
	events    []session.Event
	done      chan struct{}
}

func record(ch *session.InProc, decisions ...session.Decision) *recorder {
	r := &recorder{ch: ch, decisions: decisions, done: make(chan struct{})}
	go r.loop()
	return r
}

func (r *recorder) loop() {
	defer close(r.done)
	idx := 0
	for {
		var e session.Event
		select {
		case e = <-r.ch.Events():
		case <-time.After(5 * time.Second):
			return
		}
		r.events = append(r.events, e)
		if r.onEvent != nil {
			r.onEvent(e)
		}
		if session.IsTerminal(e) {
			return
		}
		if e.EventType() == session.EventAwaitDecision && idx < len(r.decisions) {
			if err := r.ch.Submit(context.Background(), r.decisions[idx]); err != nil {
				return
			}
			idx++
		}
	}
}

func (r *recorder) wait(t *testing.T) []session.Event {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(10 * time.Second):
		t.Fatal("run did not reach a terminal event")
	}
	return r.events
}

func eventTypes(events []session.Event) []session.EventType {
	out := make([]session.EventType, len(events))
	for i, e := range events {
		out[i] = e.EventType()
	}
	return out
}

// assertGrammar checks the structural rules every event stream must
// obey: doc events only inside an open step, awaits only after a step
// closes, exactly one terminal event and it comes last.
func assertGrammar(t *testing.T, events []session.Event) {
	t.Helper()
	inStep := false
	for i, e := range events {
		terminal := session.IsTerminal(e)
		if terminal && i != len(events)-1 {
			t.Fatalf("terminal %s at position %d of %d", e.EventType(), i, len(events))
		}
		switch e.EventType() {
		case session.EventStepStart:
			if inStep {
				t.Fatalf("step_start inside an open step at position %d", i)
			}
			inStep = true
		case session.EventDocStart, session.EventDocProgress, session.EventDocCompleted, session.EventDocFailed:
			if !inStep {
				t.Fatalf("%s outside a step at position %d", e.EventType(), i)
			}
		case session.EventStepCompleted, session.EventStepFailed:
			if !inStep {
				t.Fatalf("%s without step_start at position %d", e.EventType(), i)
			}
			inStep = false
		case session.EventAwaitDecision:
			if inStep {
				t.Fatalf("await_decision inside an open step at position %d", i)
			}
		}
	}
	if len(events) == 0 || !session.IsTerminal(events[len(events)-1]) {
		t.Fatalf("stream does not end in a terminal event: %v", eventTypes(events))
	}
}

func TestExecuteHappyPath(t *testing.T) {
	gen := &fakeGenerator{}
	exec := newTestExecutor(&fakeInspector{}, gen, Policy{})
	ch := session.NewInProc(32)
	rec := record(ch, session.Decision{Type: session.DecisionContinue})

	p := &plan.Plan{
		ProjectID: 1,
		Steps: []plan.Step{
			step(constraint.StakeholderRegister, constraint.HighLevelRequirements),
			step(constraint.BusinessCase),
		},
	}

	state, err := exec.Execute(context.Background(), p, ch, admission.Options{Mode: admission.ModeStrict})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	events := rec.wait(t)
	assertGrammar(t, events)

	want := []session.EventType{
		session.EventStepStart,
		session.EventDocStart, session.EventDocProgress, session.EventDocCompleted,
		session.EventDocStart, session.EventDocProgress, session.EventDocCompleted,
		session.EventStepCompleted,
		session.EventAwaitDecision,
		session.EventStepStart,
		session.EventDocStart, session.EventDocProgress, session.EventDocCompleted,
		session.EventStepCompleted,
		session.EventRunCompleted,
	}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event[%d] = %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}

	if state.Terminal != session.EventRunCompleted {
		t.Errorf("terminal = %s", state.Terminal)
	}
	wantGen := []constraint.DocType{constraint.StakeholderRegister, constraint.HighLevelRequirements, constraint.BusinessCase}
	if len(state.Generated) != len(wantGen) {
		t.Fatalf("generated = %v", state.Generated)
	}
	for i, d := range wantGen {
		if state.Generated[i] != d {
			t.Errorf("generated[%d] = %s, want %s", i, state.Generated[i], d)
		}
	}

	await := events[8].(*session.AwaitDecision)
	if await.NextIndex != 2 {
		t.Errorf("await nextIndex = %d, want 2", await.NextIndex)
	}
	done := events[3].(*session.DocCompleted)
	if done.ArtifactID == "" || done.StoragePath == "" {
		t.Errorf("doc_completed missing artifact fields: %+v", done)
	}
}

// Later steps see what earlier steps produced: business-case needs the
// stakeholder-register generated in step 1, with the project itself
// still empty.
func TestExecuteLaterStepsSeeEarlierOutput(t *testing.T) {
	gen := &fakeGenerator{}
	exec := newTestExecutor(&fakeInspector{}, gen, Policy{})
	ch := session.NewInProc(32)
	rec := record(ch, session.Decision{Type: session.DecisionContinue})

	p := &plan.Plan{
		ProjectID: 1,
		Steps: []plan.Step{
			step(constraint.StakeholderRegister),
			step(constraint.BusinessCase),
		},
	}
	state, err := exec.Execute(context.Background(), p, ch, admission.Options{Mode: admission.ModeStrict})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	rec.wait(t)
	if state.Terminal != session.EventRunCompleted {
		t.Fatalf("terminal = %s", state.Terminal)
	}
}

func TestExecuteStopDecision(t *testing.T) {
	gen := &fakeGenerator{}
	exec := newTestExecutor(&fakeInspector{}, gen, Policy{})
	ch := session.NewInProc(32)
	rec := record(ch, session.Decision{Type: session.DecisionStop})

	p := &plan.Plan{
		ProjectID: 1,
		Steps: []plan.Step{
			step(constraint.StakeholderRegister),
			step(constraint.BusinessCase),
		},
	}
	state, err := exec.Execute(context.Background(), p, ch, admission.Options{})
	if err != nil {
		t.Fatalf("Execute() error = %v, stop is a normal outcome", err)
	}
	events := rec.wait(t)
	assertGrammar(t, events)

	if state.Terminal != session.EventRunStopped {
		t.Errorf("terminal = %s", state.Terminal)
	}
	if state.Steps[1].Status != StatusPending {
		t.Errorf("step 2 status = %s, want pending", state.Steps[1].Status)
	}
	if len(gen.calls) != 1 {
		t.Errorf("generator calls = %v", gen.calls)
	}
}

// A document failure closes the step as failed, the gate opens, and
// retry re-runs just that document before gating again.
func TestExecuteRetryAfterFailure(t *testing.T) {
	gen := &fakeGenerator{failRemaining: map[constraint.DocType]int{constraint.BusinessCase: 1}}
	exec := newTestExecutor(&fakeInspector{}, gen, Policy{})
	ch := session.NewInProc(64)
	rec := record(ch,
		session.Decision{Type: session.DecisionContinue},
		session.Decision{Type: session.DecisionRetry, DocType: constraint.BusinessCase},
		session.Decision{Type: session.DecisionContinue},
	)

	p := &plan.Plan{
		ProjectID: 1,
		Steps: []plan.Step{
			step(constraint.StakeholderRegister),
			step(constraint.BusinessCase),
		},
	}
	state, err := exec.Execute(context.Background(), p, ch, admission.Options{Mode: admission.ModeStrict})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	events := rec.wait(t)
	assertGrammar(t, events)

	want := []session.EventType{
		session.EventStepStart,
		session.EventDocStart, session.EventDocProgress, session.EventDocCompleted,
		session.EventStepCompleted,
		session.EventAwaitDecision,
		session.EventStepStart,
		session.EventDocStart, session.EventDocFailed,
		session.EventStepFailed,
		session.EventAwaitDecision,
		session.EventStepStart,
		session.EventDocStart, session.EventDocProgress, session.EventDocCompleted,
		session.EventStepCompleted,
		session.EventAwaitDecision,
		session.EventRunCompleted,
	}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event[%d] = %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}

	if state.Terminal != session.EventRunCompleted {
		t.Errorf("terminal = %s", state.Terminal)
	}
	if ds := state.Steps[1].Docs[0]; ds.Status != StatusCompleted {
		t.Errorf("business-case status = %s after retry", ds.Status)
	}
	// Two generation attempts for business-case, one for the register.
	if len(gen.calls) != 3 {
		t.Errorf("generator calls = %v", gen.calls)
	}
}

// Under abort-step, a failure leaves sibling documents pending. A
// successful retry must pick those up too: the step only closes
// completed once every document in it has been stored.
func TestExecuteRetryResumesPendingDocs(t *testing.T) {
	gen := &fakeGenerator{failRemaining: map[constraint.DocType]int{constraint.StakeholderRegister: 1}}
	exec := newTestExecutor(&fakeInspector{}, gen, Policy{OnDocFailure: AbortStep})
	ch := session.NewInProc(64)
	rec := record(ch,
		session.Decision{Type: session.DecisionRetry, DocType: constraint.StakeholderRegister},
		session.Decision{Type: session.DecisionContinue},
	)

	p := &plan.Plan{
		ProjectID: 1,
		Steps:     []plan.Step{step(constraint.StakeholderRegister, constraint.HighLevelRequirements)},
	}
	state, err := exec.Execute(context.Background(), p, ch, admission.Options{Mode: admission.ModeStrict})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	events := rec.wait(t)
	assertGrammar(t, events)

	want := []session.EventType{
		session.EventStepStart,
		session.EventDocStart, session.EventDocFailed,
		session.EventStepFailed,
		session.EventAwaitDecision,
		session.EventStepStart,
		session.EventDocStart, session.EventDocProgress, session.EventDocCompleted,
		session.EventDocStart, session.EventDocProgress, session.EventDocCompleted,
		session.EventStepCompleted,
		session.EventAwaitDecision,
		session.EventRunCompleted,
	}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event[%d] = %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}

	for j, ds := range state.Steps[0].Docs {
		if ds.Status != StatusCompleted {
			t.Errorf("doc[%d] %s status = %s after retry", j, ds.Type, ds.Status)
		}
	}
	// One failed and one successful attempt for the register, exactly
	// one for the requirements doc the aborted pass never reached.
	wantCalls := []constraint.DocType{
		constraint.StakeholderRegister,
		constraint.StakeholderRegister,
		constraint.HighLevelRequirements,
	}
	if len(gen.calls) != len(wantCalls) {
		t.Fatalf("generator calls = %v, want %v", gen.calls, wantCalls)
	}
	for i, d := range wantCalls {
		if gen.calls[i] != d {
			t.Errorf("call[%d] = %s, want %s", i, gen.calls[i], d)
		}
	}
}

func TestExecuteAdmissionDenied(t *testing.T) {
	gen := &fakeGenerator{}
	exec := newTestExecutor(&fakeInspector{}, gen, Policy{})
	ch := session.NewInProc(32)
	rec := record(ch, session.Decision{Type: session.DecisionStop})

	p := &plan.Plan{ProjectID: 1, Steps: []plan.Step{step(constraint.UIUXMockup)}}
	state, err := exec.Execute(context.Background(), p, ch, admission.Options{Mode: admission.ModeStrict})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	events := rec.wait(t)
	assertGrammar(t, events)

	if len(gen.calls) != 0 {
		t.Errorf("generator called for a denied document: %v", gen.calls)
	}
	var failedEvt *session.DocFailed
	for _, e := range events {
		if f, ok := e.(*session.DocFailed); ok {
			failedEvt = f
		}
	}
	if failedEvt == nil {
		t.Fatal("no doc_failed event")
	}
	if failedEvt.Verdict == nil || failedEvt.Verdict.Satisfied {
		t.Errorf("doc_failed verdict = %+v", failedEvt.Verdict)
	}
	if failedEvt.Reason == "" {
		t.Error("doc_failed has no reason")
	}
	if state.Terminal != session.EventRunStopped {
		t.Errorf("terminal = %s", state.Terminal)
	}
}

func TestExecuteFailurePolicies(t *testing.T) {
	// Both documents are denied in strict mode on an empty project.
	p := &plan.Plan{
		ProjectID: 1,
		Steps:     []plan.Step{step(constraint.BusinessCase, constraint.ScopeStatement)},
	}

	tests := []struct {
		name        string
		policy      FailurePolicy
		wantStarts  int
		wantSummary string
	}{
		{"abort-step stops at first failure", AbortStep, 1, "1 of 2 documents failed"},
		{"continue-step attempts all", ContinueStep, 2, "2 of 2 documents failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newTestExecutor(&fakeInspector{}, &fakeGenerator{}, Policy{OnDocFailure: tt.policy})
			ch := session.NewInProc(32)
			rec := record(ch, session.Decision{Type: session.DecisionStop})

			if _, err := exec.Execute(context.Background(), p, ch, admission.Options{Mode: admission.ModeStrict}); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			events := rec.wait(t)
			assertGrammar(t, events)

			starts := 0
			var summary string
			for _, e := range events {
				switch v := e.(type) {
				case *session.DocStart:
					starts++
				case *session.StepFailed:
					summary = v.Summary
				}
			}
			if starts != tt.wantStarts {
				t.Errorf("doc_start count = %d, want %d", starts, tt.wantStarts)
			}
			if summary != tt.wantSummary {
				t.Errorf("summary = %q, want %q", summary, tt.wantSummary)
			}
		})
	}
}

func TestExecuteSkip(t *testing.T) {
	gen := &fakeGenerator{}
	exec := newTestExecutor(&fakeInspector{}, gen, Policy{})
	ch := session.NewInProc(32)
	rec := record(ch,
		session.Decision{Type: session.DecisionSkip},
		session.Decision{Type: session.DecisionContinue},
	)

	p := &plan.Plan{
		ProjectID: 1,
		Steps: []plan.Step{
			step(constraint.StakeholderRegister),
			step(constraint.BusinessCase),
			step(constraint.HighLevelRequirements),
		},
	}
	state, err := exec.Execute(context.Background(), p, ch, admission.Options{Mode: admission.ModeStrict})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	events := rec.wait(t)
	assertGrammar(t, events)

	if state.Terminal != session.EventRunCompleted {
		t.Fatalf("terminal = %s", state.Terminal)
	}
	if state.Steps[1].Status != StatusSkipped {
		t.Errorf("step 2 status = %s, want skipped", state.Steps[1].Status)
	}
	for _, d := range state.Generated {
		if d == constraint.BusinessCase {
			t.Error("skipped step contributed to the generated set")
		}
	}
	// Step 2 never opened: the stream jumps from await to step_start(3).
	for _, e := range events {
		if ss, ok := e.(*session.StepStart); ok && ss.Index == 2 {
			t.Error("skipped step emitted step_start")
		}
	}
}

func TestExecuteDecisionTimeout(t *testing.T) {
	gen := &fakeGenerator{}
	exec := newTestExecutor(&fakeInspector{}, gen, Policy{DecisionTimeout: 25 * time.Millisecond})
	ch := session.NewInProc(32)
	rec := record(ch) // never answers

	p := &plan.Plan{
		ProjectID: 1,
		Steps: []plan.Step{
			step(constraint.StakeholderRegister),
			step(constraint.BusinessCase),
		},
	}
	state, err := exec.Execute(context.Background(), p, ch, admission.Options{})
	if err != nil {
		t.Fatalf("Execute() error = %v, timeout resolves to stop", err)
	}
	events := rec.wait(t)
	assertGrammar(t, events)

	if state.Terminal != session.EventRunStopped {
		t.Errorf("terminal = %s", state.Terminal)
	}
	stopped := events[len(events)-1].(*session.RunStopped)
	if stopped.Reason != "decision timeout" {
		t.Errorf("reason = %q", stopped.Reason)
	}
}

func TestExecuteInvalidRetryTarget(t *testing.T) {
	gen := &fakeGenerator{}
	exec := newTestExecutor(&fakeInspector{}, gen, Policy{})
	ch := session.NewInProc(32)
	rec := record(ch, session.Decision{Type: session.DecisionRetry, DocType: constraint.SRS})

	p := &plan.Plan{
		ProjectID: 1,
		Steps: []plan.Step{
			step(constraint.StakeholderRegister),
			step(constraint.BusinessCase),
		},
	}
	state, err := exec.Execute(context.Background(), p, ch, admission.Options{})
	if !errors.Is(err, session.ErrInvalidDecision) {
		t.Fatalf("Execute() error = %v, want ErrInvalidDecision", err)
	}
	events := rec.wait(t)
	assertGrammar(t, events)

	if state.Terminal != session.EventRunFailed {
		t.Errorf("terminal = %s", state.Terminal)
	}
}

func TestExecuteSkipWithNoNextStep(t *testing.T) {
	gen := &fakeGenerator{}
	exec := newTestExecutor(&fakeInspector{}, gen, Policy{GateAfterFinalStep: true})
	ch := session.NewInProc(32)
	rec := record(ch, session.Decision{Type: session.DecisionSkip})

	p := &plan.Plan{ProjectID: 1, Steps: []plan.Step{step(constraint.StakeholderRegister)}}
	state, err := exec.Execute(context.Background(), p, ch, admission.Options{})
	if !errors.Is(err, session.ErrInvalidDecision) {
		t.Fatalf("Execute() error = %v, want ErrInvalidDecision", err)
	}
	rec.wait(t)
	if state.Terminal != session.EventRunFailed {
		t.Errorf("terminal = %s", state.Terminal)
	}
}

func TestExecuteGateAfterFinalStep(t *testing.T) {
	gen := &fakeGenerator{}
	exec := newTestExecutor(&fakeInspector{}, gen, Policy{GateAfterFinalStep: true})
	ch := session.NewInProc(32)
	rec := record(ch, session.Decision{Type: session.DecisionContinue})

	p := &plan.Plan{ProjectID: 1, Steps: []plan.Step{step(constraint.StakeholderRegister)}}
	state, err := exec.Execute(context.Background(), p, ch, admission.Options{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	events := rec.wait(t)
	assertGrammar(t, events)

	awaits := 0
	for _, e := range events {
		if e.EventType() == session.EventAwaitDecision {
			awaits++
		}
	}
	if awaits != 1 {
		t.Errorf("awaits = %d, want gate after the final step", awaits)
	}
	if state.Terminal != session.EventRunCompleted {
		t.Errorf("terminal = %s", state.Terminal)
	}
}

func TestExecuteCancellation(t *testing.T) {
	gen := &fakeGenerator{blockOnCtx: true}
	exec := newTestExecutor(&fakeInspector{}, gen, Policy{})
	ch := session.NewInProc(32)

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{ch: ch, done: make(chan struct{}), onEvent: func(e session.Event) {
		if e.EventType() == session.EventDocStart {
			cancel()
		}
	}}
	go rec.loop()

	p := &plan.Plan{ProjectID: 1, Steps: []plan.Step{step(constraint.StakeholderRegister)}}
	state, err := exec.Execute(ctx, p, ch, admission.Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	events := rec.wait(t)

	if state.Terminal != session.EventRunCancelled {
		t.Errorf("terminal = %s", state.Terminal)
	}
	if last := events[len(events)-1]; last.EventType() != session.EventRunCancelled {
		t.Errorf("last event = %s", last.EventType())
	}
}

func TestExecuteChannelClosedAtGate(t *testing.T) {
	gen := &fakeGenerator{}
	exec := newTestExecutor(&fakeInspector{}, gen, Policy{})
	ch := session.NewInProc(32)

	p := &plan.Plan{
		ProjectID: 1,
		Steps: []plan.Step{
			step(constraint.StakeholderRegister),
			step(constraint.BusinessCase),
		},
	}

	errCh := make(chan error, 1)
	stateCh := make(chan *RunState, 1)
	go func() {
		state, err := exec.Execute(context.Background(), p, ch, admission.Options{})
		stateCh <- state
		errCh <- err
	}()

	// Drain until the gate, then close the channel underneath the run.
	for {
		e := <-ch.Events()
		if e.EventType() == session.EventAwaitDecision {
			_ = ch.Close()
			break
		}
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrChannelFailure) {
			t.Errorf("Execute() error = %v, want ErrChannelFailure", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Execute did not return after channel close")
	}
	if state := <-stateCh; state.Terminal != session.EventRunFailed {
		t.Errorf("terminal = %s", state.Terminal)
	}
}

func TestExecuteInspectorFailure(t *testing.T) {
	wantErr := errors.New("bucket offline")
	exec := newTestExecutor(&fakeInspector{err: wantErr}, &fakeGenerator{}, Policy{})
	ch := session.NewInProc(32)
	rec := record(ch)

	p := &plan.Plan{ProjectID: 1, Steps: []plan.Step{step(constraint.StakeholderRegister)}}
	state, err := exec.Execute(context.Background(), p, ch, admission.Options{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Execute() error = %v, want wrapped inspector failure", err)
	}
	rec.wait(t)
	if state.Terminal != session.EventRunFailed {
		t.Errorf("terminal = %s", state.Terminal)
	}
}

func TestExecuteShapeError(t *testing.T) {
	exec := newTestExecutor(&fakeInspector{}, &fakeGenerator{}, Policy{})
	ch := session.NewInProc(1)

	if _, err := exec.Execute(context.Background(), &plan.Plan{ProjectID: 1}, ch, admission.Options{}); !errors.Is(err, plan.ErrNoSteps) {
		t.Errorf("Execute() error = %v, want ErrNoSteps", err)
	}
}
