package model

import (
	"encoding/json"
	"fmt"
)

// ListState is the scroll position of a rendered list. Callers treat the
// encoded form as an opaque blob.
type ListState struct {
	Cursor int `json:"cursor"`
	Offset int `json:"offset"`
}

func (s ListState) Encode() []byte {
	data, _ := json.Marshal(s)
	return data
}

// DecodeListState parses a blob produced by Encode. An empty blob yields
// the zero state.
func DecodeListState(blob []byte) (ListState, error) {
	var s ListState
	if len(blob) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(blob, &s); err != nil {
		return ListState{}, fmt.Errorf("decoding list state: %w", err)
	}
	if s.Cursor < 0 || s.Offset < 0 {
		return ListState{}, fmt.Errorf("decoding list state: negative position")
	}
	return s, nil
}

// Clamp fits the state to a list of n items showing visible rows.
func (s ListState) Clamp(n, visible int) ListState {
	if n == 0 {
		return ListState{}
	}
	if visible < 1 {
		visible = 1
	}
	if s.Cursor >= n {
		s.Cursor = n - 1
	}
	maxOffset := n - visible
	if maxOffset < 0 {
		maxOffset = 0
	}
	if s.Offset > maxOffset {
		s.Offset = maxOffset
	}
	if s.Cursor < s.Offset {
		s.Offset = s.Cursor
	}
	if s.Cursor >= s.Offset+visible {
		s.Offset = s.Cursor - visible + 1
	}
	return s
}
