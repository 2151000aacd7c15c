package conversation

import (
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/qa-router/pkg/memory"
)

// serializedState mirrors WorkflowState for JSON persistence, with
// QueryResultMemory flattened to its serializable form (spec.md §9
// "serialize it as part of the checkpoint payload").
type serializedState struct {
	Question            string                  `json:"question"`
	Messages            []Message               `json:"messages"`
	NextStep            Step                    `json:"next_step"`
	SQLResult           string                  `json:"sql_result,omitempty"`
	RAGResult           string                  `json:"rag_result,omitempty"`
	GeneralResult       string                  `json:"general_result,omitempty"`
	SQLStructuredResult []memory.Row            `json:"sql_structured_result,omitempty"`
	FinalAnswer         string                  `json:"final_answer,omitempty"`
	FinalStructuredData []memory.Row            `json:"final_structured_data,omitempty"`
	QueryResultMemory   memory.SerializedMemory `json:"query_result_memory"`
}

// MarshalCheckpoint serializes a WorkflowState to the JSON blob stored
// in the checkpoints table.
func MarshalCheckpoint(state *WorkflowState) ([]byte, error) {
	if state == nil {
		return nil, fmt.Errorf("marshal checkpoint: nil state")
	}

	qrm := memory.SerializedMemory{}
	if state.QueryResultMemory != nil {
		qrm = state.QueryResultMemory.ToSerializable()
	}

	data, err := json.Marshal(serializedState{
		Question:            state.Question,
		Messages:            state.Messages,
		NextStep:            state.NextStep,
		SQLResult:           state.SQLResult,
		RAGResult:           state.RAGResult,
		GeneralResult:       state.GeneralResult,
		SQLStructuredResult: state.SQLStructuredResult,
		FinalAnswer:         state.FinalAnswer,
		FinalStructuredData: state.FinalStructuredData,
		QueryResultMemory:   qrm,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal checkpoint: %w", err)
	}
	return data, nil
}

// UnmarshalCheckpoint reconstructs a WorkflowState from its persisted
// JSON blob.
func UnmarshalCheckpoint(data []byte) (*WorkflowState, error) {
	var s serializedState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}

	capacity := s.QueryResultMemory.Capacity
	if capacity == 0 {
		capacity = memory.DefaultCapacity
	}
	s.QueryResultMemory.Capacity = capacity

	return &WorkflowState{
		Question:            s.Question,
		Messages:            s.Messages,
		NextStep:            s.NextStep,
		SQLResult:           s.SQLResult,
		RAGResult:           s.RAGResult,
		GeneralResult:       s.GeneralResult,
		SQLStructuredResult: s.SQLStructuredResult,
		FinalAnswer:         s.FinalAnswer,
		FinalStructuredData: s.FinalStructuredData,
		QueryResultMemory:   memory.FromSerializable(s.QueryResultMemory),
	}, nil
}
