package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ChangeKind identifies which durable budget field changed.
type ChangeKind string

const (
	ChangeCategoryTarget ChangeKind = "category_target"
	ChangeBudgetGroup    ChangeKind = "budget_group"
	ChangePlannedIncome  ChangeKind = "planned_income"
)

// BudgetChangedMessage announces a committed budget mutation. It carries
// identifiers only; consumers reload state from storage.
//
// Month and Year are zero for budget group changes, which affect every month
// of the owner.
type BudgetChangedMessage struct {
	Kind       ChangeKind `json:"kind"`
	OwnerID    string     `json:"owner_id"`
	CategoryID int64      `json:"category_id,omitempty"`
	Month      int        `json:"month,omitempty"`
	Year       int        `json:"year,omitempty"`
	Version    int64      `json:"version"`
	Timestamp  time.Time  `json:"timestamp"`
}

// NewBudgetChangedMessage creates a message stamped with the current time
func NewBudgetChangedMessage(kind ChangeKind, owner string, categoryID int64, month, year int, version int64) *BudgetChangedMessage {
	return &BudgetChangedMessage{
		Kind:       kind,
		OwnerID:    owner,
		CategoryID: categoryID,
		Month:      month,
		Year:       year,
		Version:    version,
		Timestamp:  time.Now().UTC(),
	}
}

// AllMonths reports whether the change is not tied to a single month.
func (m *BudgetChangedMessage) AllMonths() bool {
	return m.Month == 0 && m.Year == 0
}

// Validate checks the fields a consumer relies on.
func (m *BudgetChangedMessage) Validate() error {
	if m.OwnerID == "" {
		return errors.New("owner_id is required")
	}
	switch m.Kind {
	case ChangeCategoryTarget:
		if m.CategoryID == 0 || m.AllMonths() {
			return fmt.Errorf("%s change needs category_id, month and year", m.Kind)
		}
	case ChangeBudgetGroup:
		if m.CategoryID == 0 {
			return fmt.Errorf("%s change needs category_id", m.Kind)
		}
	case ChangePlannedIncome:
		if m.AllMonths() {
			return fmt.Errorf("%s change needs month and year", m.Kind)
		}
	default:
		return fmt.Errorf("unknown change kind %q", m.Kind)
	}
	if !m.AllMonths() && (m.Month < 1 || m.Month > 12) {
		return fmt.Errorf("month %d out of range", m.Month)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *BudgetChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BudgetChangedMessageFromJSON decodes and validates a message
func BudgetChangedMessageFromJSON(data []byte) (*BudgetChangedMessage, error) {
	var msg BudgetChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
