// Package notify delivers security alerts and access notifications over
// SMTP. Without credentials the mailer runs in simulation mode and only logs
// what it would have sent, so local setups never need a mail server.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends plain-text mail via SMTP with STARTTLS.
type Mailer struct {
	cfg    Config
	logger *slog.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer creates a mailer. Missing credentials enable simulation mode.
func NewMailer(cfg Config, logger *slog.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger, send: smtp.SendMail}
}

func (m *Mailer) simulated() bool {
	return m.cfg.Username == "" || m.cfg.Password == ""
}

// SendSecurityAlert mails a high-priority alert to all administrators.
func (m *Mailer) SendSecurityAlert(_ context.Context, adminEmails []string, targetUser string, riskScore float64, details string) error {
	subject := fmt.Sprintf("CRITICAL SECURITY ALERT: High Risk Detected for %s", targetUser)
	body := fmt.Sprintf(
		"HIGH RISK SECURITY ALERT\n"+
			"========================\n\n"+
			"The Zero Trust risk engine has detected critical activity.\n\n"+
			"Target User: %s\n"+
			"Risk Score: %.1f/100\n\n"+
			"Details:\n%s\n\n"+
			"Please log in to the admin dashboard immediately to investigate and take action.\n",
		targetUser, riskScore, details)

	if m.simulated() {
		m.logger.Info("security alert simulated",
			"admins", strings.Join(adminEmails, ","),
			"target_user", targetUser,
			"risk_score", riskScore,
		)
		return nil
	}
	return m.deliver(adminEmails, subject, body)
}

// SendAccessNotification mails a user when they are granted access to an
// application.
func (m *Mailer) SendAccessNotification(_ context.Context, userEmail, userName, appName, username string) error {
	subject := fmt.Sprintf("Access Granted: %s", appName)
	body := fmt.Sprintf(
		"Hello %s,\n\n"+
			"You have been granted access to the following application:\n\n"+
			"Application: %s\n"+
			"Access Username: %s\n\n"+
			"Please log in to the portal to view your access window and security guidelines.\n",
		userName, appName, username)

	if m.simulated() {
		m.logger.Info("access notification simulated",
			"to", userEmail, "app", appName, "username", username)
		return nil
	}
	return m.deliver([]string{userEmail}, subject, body)
}

func (m *Mailer) deliver(to []string, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.cfg.From, strings.Join(to, ", "), subject, body)
	if err := m.send(addr, auth, m.cfg.From, to, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
