// Package confirm holds the single destructive action waiting for the
// user's go-ahead.
//
// There is exactly one slot. Registering a new action replaces whatever
// was pending, so only the most recent request can be confirmed.
package confirm

import (
	"fmt"

	"cadastro/internal/core"
)

// Kind tags the pending action.
type Kind int

const (
	None Kind = iota
	Delete
	Restore
)

func (k Kind) String() string {
	switch k {
	case Delete:
		return "delete"
	case Restore:
		return "restore"
	}
	return "none"
}

// Action is a tagged value: RecordID is set for Delete, Records for
// Restore.
type Action struct {
	Kind     Kind
	RecordID string
	Records  []core.Record
}

// DeleteAction asks to remove one record.
func DeleteAction(id string) Action {
	return Action{Kind: Delete, RecordID: id}
}

// RestoreAction asks to replace the whole store with recs.
func RestoreAction(recs []core.Record) Action {
	if recs == nil {
		recs = []core.Record{}
	}
	return Action{Kind: Restore, Records: recs}
}

// Prompt is the question shown to the user before confirming a.
func (a Action) Prompt() string {
	switch a.Kind {
	case Delete:
		return "Tem certeza que deseja excluir este cliente?"
	case Restore:
		return fmt.Sprintf("Tem certeza que deseja restaurar %d registros? Isso substituirá todos os dados atuais.", len(a.Records))
	}
	return ""
}

// State is what the slot exposes to the presentation layer.
type State int

const (
	Idle State = iota
	AwaitingConfirmation
)

func (s State) String() string {
	if s == AwaitingConfirmation {
		return "awaiting_confirmation"
	}
	return "idle"
}

// Slot is not safe for concurrent use; it lives behind the same lock as
// the record store.
type Slot struct {
	pending Action
}

// Register makes a the pending action and returns the one it replaced
// (Kind None when the slot was idle).
func (s *Slot) Register(a Action) Action {
	prev := s.pending
	s.pending = a
	return prev
}

// Pending returns the current action without clearing it.
func (s *Slot) Pending() Action {
	return s.pending
}

// Take returns the pending action and empties the slot.
func (s *Slot) Take() Action {
	a := s.pending
	s.pending = Action{}
	return a
}

// Discard empties the slot.
func (s *Slot) Discard() {
	s.pending = Action{}
}

func (s *Slot) State() State {
	if s.pending.Kind == None {
		return Idle
	}
	return AwaitingConfirmation
}
