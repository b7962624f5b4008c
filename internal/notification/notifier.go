// Package notification delivers operator alerts for trades, execution
// failures and halt transitions.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"

	"alphabot/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi sends to every backend and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TradeExecuted describes a completed trade.
func TradeExecuted(tr model.TradeRecord) Alert {
	title := fmt.Sprintf("%s executed", tr.Action)
	if tr.Forced {
		title = fmt.Sprintf("forced %s executed", tr.Action)
	}
	return Alert{
		Level: AlertInfo,
		Title: title,
		Message: fmt.Sprintf("amount %s at %.2f (rsi %.2f), ref %s: %s",
			tr.Amount, tr.Price, tr.RSIAtTrade, tr.ResultRef, tr.Rationale),
	}
}

// ExecutionFailed describes a trade the executor could not complete.
func ExecutionFailed(action model.Action, err error) Alert {
	return Alert{
		Level:   AlertCritical,
		Title:   fmt.Sprintf("%s failed", action),
		Message: err.Error(),
	}
}

// HaltChanged describes a halt flag transition.
func HaltChanged(halted bool) Alert {
	if halted {
		return Alert{Level: AlertWarning, Title: "trading halted", Message: "evaluation paused until the halt clears"}
	}
	return Alert{Level: AlertInfo, Title: "trading resumed", Message: "halt cleared"}
}
