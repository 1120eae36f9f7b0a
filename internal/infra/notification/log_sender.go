package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/arklim/access-platform-auth/internal/core/domain"
	"github.com/arklim/access-platform-auth/internal/core/port"
	"github.com/arklim/access-platform-auth/internal/infra/logger"
)

// LogSender records code deliveries in the service log instead of sending
// them. Deployments plug a real email or SMS gateway in its place. The code
// itself is never logged.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender constructs a log-backed notification sender.
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendCode(_ context.Context, user domain.User, method domain.TwoFactorMethod, _ string) error {
	s.log.Info("login code delivery requested",
		zap.String("user_id", user.ID),
		zap.String("method", string(method)),
		zap.String("recipient", logger.MaskEmail(user.Email)),
	)
	return nil
}

var _ port.NotificationSender = (*LogSender)(nil)
