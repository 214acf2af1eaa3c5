package command

import (
	"context"
	"strings"

	"fulfillment/entities"
	"fulfillment/metrics"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"
)

// SendEmail hands the email to the mail service. Invalid requests and
// failures after the retry policy is exhausted are logged and dropped.
func (h Handler) SendEmail(ctx context.Context, cmd *entities.SendEmail_v1) error {
	logger := log.FromContext(ctx).WithFields(logrus.Fields{
		"to":      cmd.To,
		"subject": cmd.Subject,
	})

	if strings.TrimSpace(cmd.To) == "" || strings.TrimSpace(cmd.Subject) == "" || strings.TrimSpace(cmd.Body) == "" {
		metrics.EmailsSent.WithLabelValues("invalid").Inc()
		logger.Error("Invalid email request, dropping")
		return nil
	}

	err := h.mailPolicy.Do(ctx, "send email", func(ctx context.Context) error {
		return h.mailer.SendEmail(ctx, cmd.To, cmd.Subject, cmd.Body)
	})
	if err != nil {
		metrics.EmailsSent.WithLabelValues("failed").Inc()
		logger.WithError(err).Error("Could not send email, dropping")
		return nil
	}

	metrics.EmailsSent.WithLabelValues("sent").Inc()
	logger.Info("Email sent")

	return nil
}
