package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message kinds carried on the budget events queue.
const (
	KindAssignmentChanged = "assignment.changed"
	KindMonthInitialized  = "month.initialized"
)

// Envelope wraps every published message so consumers can dispatch on kind.
type Envelope struct {
	Kind      string          `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// AssignmentChangedMessage signals that one category's assigned amount for
// one period was updated. Consumers fetch the current triad from storage, so
// the message stays small and stale copies are harmless.
type AssignmentChangedMessage struct {
	CategoryID    string `json:"categoryId"`
	Month         int    `json:"month"`
	Year          int    `json:"year"`
	AssignedCents int64  `json:"assignedCents"`
}

// MonthInitializedMessage signals that assignment rows were created for a
// budget's period.
type MonthInitializedMessage struct {
	BudgetID string `json:"budgetId"`
	Month    int    `json:"month"`
	Year     int    `json:"year"`
	Created  int    `json:"created"`
}

func wrap(kind string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return json.Marshal(Envelope{
		Kind:      kind,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// ParseEnvelope decodes a raw delivery body into its envelope.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Kind == "" {
		return nil, fmt.Errorf("envelope missing kind")
	}
	return &env, nil
}
