package otp

import (
	"context"

	"github.com/richxcame/pizzaguard/pkg/logger"
	"go.uber.org/zap"
)

// LogSender writes codes to the debug log instead of sending them. It is used
// when no SMS provider is configured.
type LogSender struct{}

// SendOTP logs the code at debug level.
func (LogSender) SendOTP(ctx context.Context, to, code string) error {
	logger.WithContext(ctx).Debug("OTP not sent, no SMS provider configured",
		zap.String("destination", maskPhone(to)),
		zap.String("code", code),
	)
	return nil
}
