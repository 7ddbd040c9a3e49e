package campaign

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Transport delivers prepared messages. Implementations open a fresh
// connection per call.
type Transport interface {
	// Send delivers one message and returns its message id.
	Send(ctx context.Context, from string, msg *Message) (string, error)
	// Verify checks that the transport is reachable and authenticated
	// without sending anything.
	Verify(ctx context.Context) error
}

// ItemResult is the outcome of one message delivery attempt
type ItemResult struct {
	Success   bool   `json:"success"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Result is the aggregate outcome of a bulk run. Success+Failed always
// equals Total.
type Result struct {
	Total   int          `json:"total"`
	Success int          `json:"success"`
	Failed  int          `json:"failed"`
	Details []ItemResult `json:"details"`
}

// Progress reports one completed delivery attempt during a bulk run
type Progress struct {
	Current int
	Total   int
	Result  ItemResult
}

// Dispatcher sends prepared messages one at a time, waiting a fixed delay
// between sends. Delivery failures are isolated per message: one bad
// address never stops the rest of the run.
type Dispatcher struct {
	transport  Transport
	logger     *slog.Logger
	onProgress func(Progress)
	sleep      func(ctx context.Context, d time.Duration)
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(transport Transport, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		transport: transport,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// OnProgress registers a callback invoked after every delivery attempt.
func (d *Dispatcher) OnProgress(fn func(Progress)) {
	d.onProgress = fn
}

// SendBulk sends the messages sequentially in input order. After every
// message except the last, the loop pauses for the given delay. If the
// context is cancelled mid-run, the remaining messages are recorded as
// failed so the aggregate still accounts for every input.
func (d *Dispatcher) SendBulk(ctx context.Context, from string, messages []Message, delay time.Duration) *Result {
	result := &Result{
		Total:   len(messages),
		Details: make([]ItemResult, 0, len(messages)),
	}

	for i := range messages {
		msg := &messages[i]

		if err := ctx.Err(); err != nil {
			d.logger.Warn("bulk send cancelled", "sent", i, "total", len(messages))
			for _, rest := range messages[i:] {
				result.Failed++
				result.Details = append(result.Details, ItemResult{
					To:      rest.To,
					Subject: rest.Subject,
					Error:   err.Error(),
				})
			}
			break
		}

		item := ItemResult{To: msg.To, Subject: msg.Subject}

		id, err := d.transport.Send(ctx, from, msg)
		if err != nil {
			result.Failed++
			item.Error = err.Error()
			d.logger.Warn("delivery failed", "to", msg.To, "error", err)
		} else {
			result.Success++
			item.Success = true
			item.MessageID = id
			d.logger.Debug("message delivered", "to", msg.To, "message_id", id)
		}
		result.Details = append(result.Details, item)

		if d.onProgress != nil {
			d.onProgress(Progress{Current: i + 1, Total: len(messages), Result: item})
		}

		if i < len(messages)-1 && delay > 0 {
			d.sleep(ctx, delay)
		}
	}

	return result
}

// Verify checks transport connectivity without sending a message.
func (d *Dispatcher) Verify(ctx context.Context) error {
	return d.transport.Verify(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
