package notifier

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to the log. Used in development and as the
// fallback while the broker is unavailable.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, to, subject, htmlBody string) error {
	n.logger.InfoContext(ctx, "notification",
		"to", to,
		"subject", subject,
		"body_bytes", len(htmlBody),
	)
	return nil
}
