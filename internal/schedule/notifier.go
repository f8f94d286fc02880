package schedule

import (
	"time"

	"go.uber.org/zap"
)

// logNotifier records notification requests to the log without delivering
// anything. It stands in wherever no platform notification service is wired,
// keeping the scheduling path observable.
type logNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a Notifier that only logs requests.
func NewLogNotifier(logger *zap.Logger) Notifier {
	if logger == nil {
		logger = noOpLogger
	}
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Schedule(id string, fireAt time.Time, title, body string) error {
	n.logger.Info("notification scheduled",
		zap.String("id", id),
		zap.Time("fire_at", fireAt),
		zap.String("title", title),
		zap.String("body", body))
	return nil
}

func (n *logNotifier) Cancel(ids []string) {
	n.logger.Info("notifications cancelled", zap.Strings("ids", ids))
}
