// Package mailer verschickt Benachrichtigungen über neue Paper per SMTP.
package mailer

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"paper-scout/config"
)

// Mailer kapselt den SMTP-Versand. Jeder Empfänger bekommt eine eigene
// Mail; scheitert ein Empfänger, laufen die übrigen trotzdem durch.
type Mailer struct {
	Config *config.Config
	Logger *zap.Logger
}

// New erstellt einen neuen Mailer.
func New(cfg *config.Config, logger *zap.Logger) *Mailer {
	return &Mailer{Config: cfg, Logger: logger}
}

// Configured meldet, ob der Versand vollständig konfiguriert ist.
func (m *Mailer) Configured() bool {
	return m.Config.MailConfigured()
}

// Send verschickt Betreff und Text an alle Empfänger, optional mit der
// Arbeitsmappe als Anhang. Zurück kommt die Anzahl erfolgreich
// zugestellter Mails; ein Fehler nur, wenn gar nichts zugestellt wurde.
func (m *Mailer) Send(recipients []string, subject, body, attachment string) (int, error) {
	if len(recipients) == 0 {
		return 0, fmt.Errorf("keine empfänger konfiguriert")
	}

	d := gomail.NewDialer(m.Config.SMTPHost, m.Config.SMTPPort, m.Config.SenderEmail, m.Config.SenderPassword)
	sender, err := d.Dial()
	if err != nil {
		return 0, fmt.Errorf("smtp-verbindung fehlgeschlagen: %w", err)
	}
	defer sender.Close()

	sent := 0
	for _, recipient := range recipients {
		msg := gomail.NewMessage()
		msg.SetHeader("From", m.Config.SenderEmail)
		msg.SetHeader("To", recipient)
		msg.SetHeader("Subject", subject)
		msg.SetBody("text/plain", body)
		if attachment != "" {
			msg.Attach(attachment)
		}

		if err := gomail.Send(sender, msg); err != nil {
			m.Logger.Warn("Mail-Versand an Empfänger fehlgeschlagen",
				zap.String("recipient", recipient), zap.Error(err))
			continue
		}
		sent++
		m.Logger.Info("Mail verschickt", zap.String("recipient", recipient))
	}

	if sent == 0 {
		return 0, fmt.Errorf("mail-versand an alle %d empfänger fehlgeschlagen", len(recipients))
	}
	return sent, nil
}
