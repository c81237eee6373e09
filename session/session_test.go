package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hexlight/docuflow/admission"
	"github.com/hexlight/docuflow/constraint"
)

func TestEventRoundTrip(t *testing.T) {
	events := []Event{
		&StepStart{Index: 1, Total: 3},
		&DocStart{DocType: constraint.BusinessCase, DisplayName: "Business Case"},
		&DocProgress{DocType: constraint.BusinessCase, Percent: 40},
		&DocCompleted{DocType: constraint.BusinessCase, ArtifactID: "a1", StoragePath: "/files/1/business-case.md"},
		&DocFailed{DocType: constraint.SRS, Reason: "missing prerequisites", Verdict: &admission.Verdict{
			DocType:   constraint.SRS,
			Mode:      admission.ModeStrict,
			Satisfied: false,
		}},
		&StepCompleted{Index: 1},
		&StepFailed{Index: 2, Summary: "1 of 2 documents failed"},
		&AwaitDecision{NextIndex: 2},
		&RunCompleted{},
		&RunStopped{Reason: "decision timeout"},
		&RunCancelled{},
		&RunFailed{Reason: "decision channel failure"},
	}

	for _, e := range events {
		data, err := EncodeEvent(e)
		if err != nil {
			t.Fatalf("EncodeEvent(%s) error = %v", e.EventType(), err)
		}
		decoded, err := DecodeEvent(data)
		if err != nil {
			t.Fatalf("DecodeEvent(%s) error = %v", e.EventType(), err)
		}
		if decoded.EventType() != e.EventType() {
			t.Errorf("round trip changed type: %s -> %s", e.EventType(), decoded.EventType())
		}
	}
}

func TestDecodeEventUnknownType(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{"type":"warp_drive"}`)); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("error = %v, want ErrUnknownEvent", err)
	}
}

func TestEnvelopeFieldNames(t *testing.T) {
	data, err := EncodeEvent(&AwaitDecision{NextIndex: 4})
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}

	var env struct {
		Type    string `json:"type"`
		Payload struct {
			NextIndex int `json:"nextIndex"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != "await_decision" || env.Payload.NextIndex != 4 {
		t.Errorf("wire form = %s", data)
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(&StepCompleted{Index: 1}) {
		t.Error("step_completed marked terminal")
	}
	for _, e := range []Event{&RunCompleted{}, &RunStopped{}, &RunCancelled{}, &RunFailed{}} {
		if !IsTerminal(e) {
			t.Errorf("%s not marked terminal", e.EventType())
		}
	}
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Decision
		wantErr bool
	}{
		{"continue", `{"type":"continue"}`, Decision{Type: DecisionContinue}, false},
		{"stop", `{"type":"stop"}`, Decision{Type: DecisionStop}, false},
		{"skip", `{"type":"skip"}`, Decision{Type: DecisionSkip}, false},
		{"retry with target", `{"type":"retry","docType":"srs"}`, Decision{Type: DecisionRetry, DocType: constraint.SRS}, false},
		{"case and space tolerated", `{"type":" Continue "}`, Decision{Type: DecisionContinue}, false},
		{"retry without target", `{"type":"retry"}`, Decision{}, true},
		{"continue with target", `{"type":"continue","docType":"srs"}`, Decision{}, true},
		{"unknown type", `{"type":"pause"}`, Decision{}, true},
		{"not json", `resume please`, Decision{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecision([]byte(tt.input))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDecision) {
					t.Errorf("error = %v, want ErrInvalidDecision", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDecision() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("decision = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeDecisionMessageWrapped(t *testing.T) {
	// Decisions may arrive wrapped in a message envelope.
	wrapped := []byte(`{"type":"docflow.run.decision","payload":{"type":"retry","docType":"hld-arch"},"source":"plan-api"}`)
	d, err := decodeDecisionMessage(wrapped)
	if err != nil {
		t.Fatalf("decodeDecisionMessage() error = %v", err)
	}
	if d.Type != DecisionRetry || d.DocType != constraint.HLDArchitecture {
		t.Errorf("decision = %+v", d)
	}

	if _, err := decodeDecisionMessage([]byte(`{"source":"nobody"}`)); !errors.Is(err, ErrInvalidDecision) {
		t.Errorf("error = %v, want ErrInvalidDecision", err)
	}
}

func TestInProcSendReceive(t *testing.T) {
	ch := NewInProc(4)
	ctx := context.Background()

	if err := ch.Send(ctx, &StepStart{Index: 1, Total: 1}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	e := <-ch.Events()
	if e.EventType() != EventStepStart {
		t.Errorf("event = %s", e.EventType())
	}

	go func() {
		_ = ch.Submit(ctx, Decision{Type: DecisionContinue})
	}()
	d, err := ch.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if d.Type != DecisionContinue {
		t.Errorf("decision = %+v", d)
	}
}

func TestInProcClose(t *testing.T) {
	ch := NewInProc(1)
	ctx := context.Background()

	if err := ch.Send(ctx, &RunCompleted{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if err := ch.Send(ctx, &StepStart{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after close = %v, want ErrClosed", err)
	}
	if _, err := ch.Receive(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Receive after close = %v, want ErrClosed", err)
	}
	if err := ch.Submit(ctx, Decision{Type: DecisionStop}); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit after close = %v, want ErrClosed", err)
	}

	// Buffered events stay drainable after close.
	if e := <-ch.Events(); e.EventType() != EventRunCompleted {
		t.Errorf("drained event = %s", e.EventType())
	}
}

func TestInProcReceiveHonorsDeadline(t *testing.T) {
	ch := NewInProc(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := ch.Receive(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Receive() error = %v, want deadline exceeded", err)
	}
}

func TestSubjects(t *testing.T) {
	if got := EventsSubject("abc"); got != "docflow.run.abc.events" {
		t.Errorf("EventsSubject = %q", got)
	}
	if got := DecisionSubject("abc"); got != "docflow.run.abc.decision" {
		t.Errorf("DecisionSubject = %q", got)
	}
}
