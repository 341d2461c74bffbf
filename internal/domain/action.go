package domain

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusFailed     Status = "failed"
)

type ActionType string

const (
	TypeLike          ActionType = "like"
	TypePass          ActionType = "pass"
	TypeMessage       ActionType = "message"
	TypeUpload        ActionType = "upload"
	TypeUpdateProfile ActionType = "update_profile"
	TypeDelete        ActionType = "delete"
)

// Types lists every action type the queue accepts, in a stable order.
func Types() []ActionType {
	return []ActionType{TypeLike, TypePass, TypeMessage, TypeUpload, TypeUpdateProfile, TypeDelete}
}

// ValidType reports whether t is one of the known action types.
func ValidType(t ActionType) bool {
	switch t {
	case TypeLike, TypePass, TypeMessage, TypeUpload, TypeUpdateProfile, TypeDelete:
		return true
	}
	return false
}

// Action is a single queued side effect awaiting delivery to the backend.
// The payload is opaque to the queue; only the executor for the action's
// type knows its shape.
type Action struct {
	ID         string          `json:"id"`
	Type       ActionType      `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
	Retries    int             `json:"retries"`
	MaxRetries int             `json:"max_retries"`
	Status     Status          `json:"status"`
}

// State is the full persisted snapshot of the queue: pending and failed
// actions in insertion order, plus the drain re-entrancy guard.
// Successfully delivered actions are removed, never persisted.
type State struct {
	Actions    []Action `json:"actions"`
	Processing bool     `json:"processing"`
}

func EmptyState() State {
	return State{Actions: []Action{}}
}

// Clone returns a deep copy so callers can mutate freely.
func (s State) Clone() State {
	out := State{Processing: s.Processing, Actions: make([]Action, len(s.Actions))}
	copy(out.Actions, s.Actions)
	return out
}

// StatusCounts summarizes the queue for callers. Pending includes
// actions currently being processed.
type StatusCounts struct {
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}

func (s State) Counts() StatusCounts {
	var c StatusCounts
	for _, a := range s.Actions {
		switch a.Status {
		case StatusFailed:
			c.Failed++
		default:
			c.Pending++
		}
	}
	c.Total = len(s.Actions)
	return c
}
