package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/ShayCichocki/foreman/internal/state"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// agentStateKey is the session-variable key holding the orchestration
// state document.
const agentStateKey = "orchestration_agents"

// loadAgentState reads the orchestration state document for a session.
// A session with no document yet yields a fresh empty state at version 0,
// so the first save creates the document.
func loadAgentState(docs state.DocumentStore, sessionID string) (*models.OrchestrationState, *state.Document, error) {
	doc, err := docs.GetDocument(sessionID, agentStateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("load orchestration state: %w", err)
	}
	if len(doc.Data) == 0 {
		return models.NewOrchestrationState(sessionID), doc, nil
	}
	var st models.OrchestrationState
	if err := json.Unmarshal(doc.Data, &st); err != nil {
		return nil, nil, fmt.Errorf("decode orchestration state for session %s: %w", sessionID, err)
	}
	st.SessionID = sessionID
	return &st, doc, nil
}

// AgentState returns a copy of the session's orchestration state document.
func (o *Orchestrator) AgentState(parentSessionID string) (*models.OrchestrationState, error) {
	if parentSessionID == "" {
		return nil, fmt.Errorf("parent session id is required")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	st, _, err := loadAgentState(o.docs, parentSessionID)
	if err != nil {
		return nil, err
	}
	return st.Clone(), nil
}

// saveAgentState writes the orchestration state back through the versioned
// document, failing with state.ErrVersionConflict on a concurrent write.
func saveAgentState(docs state.DocumentStore, doc *state.Document, st *models.OrchestrationState) error {
	st.Version = doc.Version + 1
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode orchestration state: %w", err)
	}
	doc.Data = data
	if err := docs.SaveDocument(doc); err != nil {
		return fmt.Errorf("save orchestration state: %w", err)
	}
	return nil
}
