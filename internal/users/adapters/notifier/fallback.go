package notifier

import (
	"context"
	"errors"
	"log/slog"

	"usermgmt/pkg/platform/circuit"
)

type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// FallbackNotifier always tries the primary. Once the breaker has opened, a
// failed primary send is redirected to the fallback instead of failing, and
// primary successes count toward closing the breaker again.
type FallbackNotifier struct {
	primary  Sender
	fallback Sender
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFallback(primary, fallback Sender, breaker *circuit.Breaker, logger *slog.Logger) *FallbackNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackNotifier{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (n *FallbackNotifier) Send(ctx context.Context, to, subject, htmlBody string) error {
	err := n.primary.Send(ctx, to, subject, htmlBody)
	if err == nil {
		if _, change := n.breaker.RecordSuccess(); change.Closed {
			n.logger.InfoContext(ctx, "notifier circuit closed", "breaker", n.breaker.Name())
		}
		return nil
	}

	useFallback, change := n.breaker.RecordFailure()
	if change.Opened {
		n.logger.WarnContext(ctx, "notifier circuit opened", "breaker", n.breaker.Name(), "error", err)
	}
	if !useFallback {
		return err
	}
	if ferr := n.fallback.Send(ctx, to, subject, htmlBody); ferr != nil {
		return errors.Join(err, ferr)
	}
	return nil
}
