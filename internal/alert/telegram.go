package alert

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"quoteaudit/internal/certification"
	"quoteaudit/internal/config"
)

// Notifier pushes certification events to a Telegram chat. A nil Notifier
// is valid and silently drops everything, so callers never need to branch
// on whether alerting is configured.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewNotifier creates the notifier, or returns (nil, nil) when alerting is
// disabled in the configuration.
func NewNotifier(cfg *config.Config, logger *zap.Logger) (*Notifier, error) {
	if !cfg.Alerts.Enabled || cfg.Alerts.TelegramBotToken == "" {
		logger.Info("Telegram alerting is disabled (alerts.enabled=false or token is empty)")
		return nil, nil
	}

	api, err := tgbotapi.NewBotAPI(cfg.Alerts.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram alerting authorized", zap.String("username", api.Self.UserName))

	return &Notifier{api: api, chatID: cfg.Alerts.TelegramChatID, logger: logger}, nil
}

// CertificationIssued alerts on newly issued grade-E certificates. Lower
// grades are routine and not worth a notification.
func (n *Notifier) CertificationIssued(record *certification.Record) {
	if n == nil || record == nil || record.Grade != "E" {
		return
	}
	n.send(fmt.Sprintf(
		"Grade E certification issued\nProject: %s\nCertificate: %s\nScore: %.1f\nRisk level: %s",
		record.ProjectID, record.ID, record.FinalScore, record.RiskLevel))
}

// CertificationRevoked alerts on every revocation.
func (n *Notifier) CertificationRevoked(projectID, certID string) {
	if n == nil {
		return
	}
	n.send(fmt.Sprintf("Certification revoked\nProject: %s\nCertificate: %s", projectID, certID))
}

// send delivers one message. Delivery failures are logged and swallowed:
// alerting must never degrade the operation that triggered it.
func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		n.logger.Warn("Failed to send Telegram alert", zap.Error(err))
	}
}
