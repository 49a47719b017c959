package mail

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"

	"github.com/StreamPassApp/StreamPass/internal/pkg/env"
)

// SendMail sends an HTML email via SMTP
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
		return err
	}
	return nil
}

// SendPaymentConfirmation emails the subscriber after an entitlement grant.
// Checkouts without a real email address are skipped silently.
func SendPaymentConfirmation(to, planName string, subscriptionEnd time.Time) error {
	if !strings.Contains(to, "@") {
		return nil
	}
	if env.GetEnv("SMTP_HOST", "") == "" {
		return nil
	}

	appName := env.GetEnv("APP_NAME", "StreamPass")
	subject := fmt.Sprintf("%s: your %s subscription is active", appName, planName)
	body := fmt.Sprintf(
		"<p>Thanks for your payment!</p>"+
			"<p>Your <strong>%s</strong> subscription is active until <strong>%s</strong>.</p>"+
			"<p>— The %s team</p>",
		planName, subscriptionEnd.Format("January 2, 2006"), appName,
	)
	return SendMail(to, subject, body)
}
