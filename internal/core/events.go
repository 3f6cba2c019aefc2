package core

import (
	"errors"
	"time"
)

// ChangeOp names the kind of write that produced a ChangeEvent.
type ChangeOp string

const (
	OpInserted ChangeOp = "insert"
	OpUpdated  ChangeOp = "update"
	OpDeleted  ChangeOp = "delete"
	// OpReplaced covers bulk writes such as a push of local data.
	OpReplaced ChangeOp = "replace"
)

func (o ChangeOp) Valid() bool {
	switch o {
	case OpInserted, OpUpdated, OpDeleted, OpReplaced:
		return true
	}
	return false
}

// ChangeEvent tells listeners that a duo's ledger changed. It carries no
// record data: receivers refetch the full snapshot.
type ChangeEvent struct {
	DuoID     string    `json:"duoId"`
	Op        ChangeOp  `json:"op"`
	ExpenseID string    `json:"expenseId,omitempty"`
	At        time.Time `json:"at"`
	// Source identifies the process that made the write.
	Source    string    `json:"source,omitempty"`
}

var ErrInvalidEvent = errors.New("invalid change event")

func NewChangeEvent(duoID string, op ChangeOp, expenseID string) ChangeEvent {
	return ChangeEvent{DuoID: duoID, Op: op, ExpenseID: expenseID, At: time.Now().UTC()}
}

func (e ChangeEvent) Validate() error {
	if e.DuoID == "" || !e.Op.Valid() {
		return ErrInvalidEvent
	}
	return nil
}
