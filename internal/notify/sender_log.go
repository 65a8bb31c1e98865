package notify

import (
	"context"
	"log/slog"
)

// LogSender writes notifications to the log instead of a broker. Used when no
// Kafka brokers are configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "notification",
		"template_id", req.TemplateID,
		"artifact_id", req.ArtifactID.String(),
		"recipients", req.Recipients,
	)
	return nil
}
