// Package services реализует отправку почтовых уведомлений о биллинговых
// событиях. Сервис живёт в отдельном процессе и получает события из очереди
// RabbitMQ, письма уходят на служебный ящик поддержки.
package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/salonbook/billing-engine/internal/lib/money"
	"github.com/salonbook/billing-engine/internal/lib/sl"
	"github.com/salonbook/billing-engine/internal/lib/smtp"
	"github.com/salonbook/billing-engine/internal/models"
)

// SenderService отправляет письма по биллинговым событиям.
type SenderService struct {
	transport smtp.TransportInterface
	notifyTo  string
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(transport smtp.TransportInterface, notifyTo string, log *slog.Logger) *SenderService {
	return &SenderService{
		transport: transport,
		notifyTo:  notifyTo,
		log:       log,
	}
}

// HandleBillingEvent разбирает сообщение очереди и отправляет уведомление.
// Неизвестный тип события не считается ошибкой доставки.
func (s *SenderService) HandleBillingEvent(body []byte) error {
	var event models.BillingEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal billing event", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	subject, bodyText, ok := composeNotification(event)
	if !ok {
		s.log.Warn("skipping unknown billing event", slog.String("type", event.Type))
		return nil
	}

	return s.sendEmail([]string{s.notifyTo}, subject, bodyText)
}

// composeNotification собирает тему и текст письма по типу события.
func composeNotification(event models.BillingEvent) (subject, body string, ok bool) {
	date := event.Date.Format("2006-01-02")
	switch event.Type {
	case models.EventChargeFailed:
		subject = "Подписка приостановлена: не прошло ежедневное списание"
		body = fmt.Sprintf(
			"Счёт %s: списание %s за %s не прошло, на балансе %s. Подписка %d приостановлена до пополнения.",
			event.AccountID, money.Display(event.Amount), date,
			money.Display(event.Balance), event.SubscriptionID)
	case models.EventLowBalance:
		subject = "Низкий баланс счёта"
		body = fmt.Sprintf(
			"Счёт %s: после списания за %s остаток %s. Средств хватит менее чем на неделю.",
			event.AccountID, date, money.Display(event.Balance))
	case models.EventRenewalCompleted:
		subject = "Подписка продлена"
		body = fmt.Sprintf(
			"Счёт %s: подписка %d продлена на следующий период, стоимость %s.",
			event.AccountID, event.SubscriptionID, money.Display(event.Amount))
	case models.EventRenewalFailed:
		subject = "Автопродление не выполнено"
		body = fmt.Sprintf(
			"Счёт %s: автопродление подписки %d за %s отклонено, требуется %s доступных средств.",
			event.AccountID, event.SubscriptionID, date, money.Display(event.Amount))
	default:
		return "", "", false
	}
	return subject, body, true
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			s.log.Debug("failed to close SMTP client", sl.Err(closeErr))
		}
	}()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", sl.Err(err))
		return err
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get data writer", sl.Err(err))
		return err
	}
	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}
	if err = wc.Close(); err != nil {
		s.log.Error("failed to close data writer", sl.Err(err))
		return err
	}
	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("notification sent", slog.String("subject", subject))
	return nil
}
