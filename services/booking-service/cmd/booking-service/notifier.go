package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/md-rashed-zaman/slotbook/libs/amqpx"
	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	"github.com/md-rashed-zaman/slotbook/libs/mail"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/notify"
)

type senderSetup struct {
	sender notify.Sender
	checks []runtime.ReadyCheck
	close  func()
}

// openSender picks the delivery channel named by NOTIFIER: log, smtp, kafka or amqp.
func openSender(logger *slog.Logger) (*senderSetup, error) {
	kind := strings.ToLower(config.String("NOTIFIER", "log"))
	switch kind {
	case "log":
		return &senderSetup{sender: notify.LogSender{Logger: logger}, close: func() {}}, nil

	case "smtp":
		host, err := config.RequiredString("SMTP_HOST")
		if err != nil {
			return nil, err
		}
		mailer := mail.NewSMTPSender(mail.SMTPConfig{
			Host:     host,
			Port:     config.String("SMTP_PORT", "1025"),
			From:     config.String("SMTP_FROM", "no-reply@slotbook.local"),
			Username: config.String("SMTP_USERNAME", ""),
			Password: config.String("SMTP_PASSWORD", ""),
		})
		return &senderSetup{sender: notify.MailSender{Mailer: mailer}, close: func() {}}, nil

	case "kafka":
		raw, err := config.RequiredString("KAFKA_BROKERS")
		if err != nil {
			return nil, err
		}
		w := kafkax.NewWriter(kafkax.SplitBrokers(raw))
		return &senderSetup{
			sender: notify.NewKafkaSender(w),
			checks: []runtime.ReadyCheck{{Name: "kafka", Check: kafkax.ReadyCheck(raw)}},
			close: func() {
				if err := w.Close(); err != nil {
					logger.Error("kafka writer close failed", "err", err)
				}
			},
		}, nil

	case "amqp":
		url, err := config.RequiredString("AMQP_URL")
		if err != nil {
			return nil, err
		}
		ch, err := amqpx.Dial(url, config.String("AMQP_QUEUE", "booking.notifications"))
		if err != nil {
			return nil, fmt.Errorf("amqp dial failed: %w", err)
		}
		return &senderSetup{
			sender: notify.NewAMQPSender(ch),
			checks: []runtime.ReadyCheck{{Name: "amqp", Check: ch.ReadyCheck()}},
			close: func() {
				if err := ch.Close(); err != nil {
					logger.Error("amqp close failed", "err", err)
				}
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown NOTIFIER %q", kind)
}
