package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Participant is one of the two fixed members of a duo. The balance sign
// convention is defined relative to the order Martin (A) then Josephine (B).
type Participant uint8

const (
	Martin Participant = iota + 1
	Josephine
)

// Category is the closed set of expense tags.
type Category uint8

const (
	Food Category = iota + 1
	Transport
	Housing
	Leisure
	Health
	Shopping
	Reimbursement
	Other
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Expense is a single ledger record. ID is assigned by the store and is
	// empty for a record that has not been persisted yet.
	Expense struct {
		ID       string      `json:"id"`
		Label    string      `json:"label"`
		Amount   Money       `json:"amount"`
		Date     Date        `json:"date"`
		PaidBy   Participant `json:"paidBy"`
		Category Category    `json:"category"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyLabel         = errors.New("empty label")
	ErrLabelTooLong       = errors.New("label too long (max 200 characters)")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrUnknownCategory    = errors.New("unknown category")
)

const maxLabelLength = 200

const dateLayout = "2006-01-02"

var participantNames = map[Participant]string{
	Martin:    "Martin",
	Josephine: "Joséphine",
}

var categoryNames = map[Category]string{
	Food:          "Alimentation",
	Transport:     "Transport",
	Housing:       "Logement",
	Leisure:       "Loisirs",
	Health:        "Santé",
	Shopping:      "Shopping",
	Reimbursement: "Remboursement",
	Other:         "Autres",
}

// Participants returns both members in sign-convention order.
func Participants() []Participant {
	return []Participant{Martin, Josephine}
}

// ParseParticipant maps a wire name to a Participant. "Josephine" without the
// accent is accepted too.
func ParseParticipant(s string) (Participant, error) {
	s = strings.TrimSpace(s)
	for p, name := range participantNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	if strings.EqualFold(s, "Josephine") {
		return Josephine, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownParticipant, s)
}

func (p Participant) Valid() bool {
	return p == Martin || p == Josephine
}

// Other returns the counterpart of p.
func (p Participant) Other() Participant {
	switch p {
	case Martin:
		return Josephine
	case Josephine:
		return Martin
	}
	return 0
}

func (p Participant) String() string {
	if name, ok := participantNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Participant(%d)", uint8(p))
}

func (p Participant) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return nil, ErrUnknownParticipant
	}
	return json.Marshal(p.String())
}

func (p *Participant) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownParticipant, err)
	}
	v, err := ParseParticipant(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Categories returns every category in display order.
func Categories() []Category {
	return []Category{Food, Transport, Housing, Leisure, Health, Shopping, Reimbursement, Other}
}

func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for c, name := range categoryNames {
		if strings.EqualFold(s, name) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// IsSettlementTransfer reports whether records of this category are direct
// repayments between the two participants rather than shared purchases.
func (c Category) IsSettlementTransfer() bool {
	return c == Reimbursement
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

func (c Category) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, ErrUnknownCategory
	}
	return json.Marshal(c.String())
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownCategory, err)
	}
	v, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD date. A full RFC 3339 timestamp is accepted
// and truncated to its calendar date; any other trailing text is rejected.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		return NewDate(ts.Year(), int(ts.Month()), ts.Day()), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// IsPersisted reports whether the store has assigned an identifier.
func (e Expense) IsPersisted() bool {
	return strings.TrimSpace(e.ID) != ""
}

func (e Expense) Validate() error {
	label := strings.TrimSpace(e.Label)
	if label == "" {
		return ErrEmptyLabel
	}
	if len([]rune(label)) > maxLabelLength {
		return ErrLabelTooLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if !e.PaidBy.Valid() {
		return ErrUnknownParticipant
	}
	if !e.Category.Valid() {
		return ErrUnknownCategory
	}
	return nil
}
