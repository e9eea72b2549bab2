package mq

import (
	"context"
	"fmt"

	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
)

// Notifier publishes alert notifications keyed by rule id, so every
// notification for one rule lands on the same partition in order.
type Notifier struct {
	writer MessageWriter
}

func NewNotifier(writer MessageWriter) *Notifier {
	return &Notifier{writer: writer}
}

func (n *Notifier) Notify(ctx context.Context, note contracts.AlertNotification) error {
	if err := PublishJSON(ctx, n.writer, note.RuleID, note); err != nil {
		return fmt.Errorf("publish alert notification %s: %w", note.ID, err)
	}
	return nil
}
