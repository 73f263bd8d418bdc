package notify

import (
	"context"
	"log/slog"
)

// Notifier announces newly queued attempts so idle workers can wake early. Delivery is
// best effort; the job table stays the only source of truth for ownership.
type Notifier interface {
	Notify(ctx context.Context, attemptID string) error
	// Subscribe returns a channel of attempt ids that is closed when ctx ends.
	Subscribe(ctx context.Context) (<-chan string, error)
	Close() error
}

// Nop drops notifications. Workers then rely on polling alone.
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }

func (Nop) Subscribe(ctx context.Context) (<-chan string, error) {
	ch := make(chan string)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (Nop) Close() error { return nil }

// Local fans notifications out in process. Used by single-binary runs and tests.
type Local struct {
	ch  chan string
	log *slog.Logger
}

func NewLocal(buffer int, logger *slog.Logger) *Local {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{ch: make(chan string, buffer), log: logger}
}

func (l *Local) Notify(_ context.Context, attemptID string) error {
	select {
	case l.ch <- attemptID:
	default:
		l.log.Debug("notify.local.dropped", "attempt_id", attemptID)
	}
	return nil
}

func (l *Local) Subscribe(ctx context.Context) (<-chan string, error) {
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case id := <-l.ch:
				select {
				case out <- id:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (l *Local) Close() error { return nil }
