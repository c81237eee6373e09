package session

import "fmt"

// StreamName is the JetStream stream that carries run traffic.
const StreamName = "DOCFLOW"

// StreamSubjects is the subject space the stream must bind.
const StreamSubjects = "docflow.>"

// EventsSubject returns the subject run events are published to.
func EventsSubject(sessionID string) string {
	return fmt.Sprintf("docflow.run.%s.events", sessionID)
}

// DecisionSubject returns the subject decisions arrive on.
func DecisionSubject(sessionID string) string {
	return fmt.Sprintf("docflow.run.%s.decision", sessionID)
}
