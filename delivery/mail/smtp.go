// Package mail delivers email messages over SMTP.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	gomail "github.com/go-mail/mail"
	"go.uber.org/zap"

	"github.com/MrEthical07/goIdentity/delivery"
)

// Config describes the SMTP relay.
type Config struct {
	Host               string `yaml:"host" env:"HOST"`
	Port               int    `yaml:"port" env:"PORT" envDefault:"587"`
	From               string `yaml:"from" env:"FROM"`
	User               string `yaml:"user" env:"USER"`
	Pass               string `yaml:"pass" env:"PASS"`
	TLSMode            string `yaml:"tls_mode" env:"TLS_MODE" envDefault:"auto"` // auto | starttls | ssl | none
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" env:"INSECURE_SKIP_VERIFY"`
	Product            string `yaml:"product" env:"PRODUCT"`
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Sender is a delivery.Sender for the email channel.
type Sender struct {
	cfg    Config
	dialer dialer
	logger *zap.Logger
}

// NewSender validates cfg and prepares a dialer.
func NewSender(cfg Config, logger *zap.Logger) (*Sender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("mail: host and from are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, InsecureSkipVerify: cfg.InsecureSkipVerify} //nolint:gosec // opt-in for local relays
	switch cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify} //nolint:gosec
	}

	return &Sender{cfg: cfg, dialer: d, logger: logger.Named("smtp")}, nil
}

// Send renders msg and hands it to the relay.
func (s *Sender) Send(ctx context.Context, msg delivery.Message) error {
	if msg.Channel != delivery.ChannelEmail {
		return fmt.Errorf("mail: cannot send over %q", msg.Channel)
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	content := delivery.Render(s.cfg.Product, msg)
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", content.Subject)
	m.SetBody("text/plain", content.Text)
	if content.HTML != "" {
		m.AddAlternative("text/html", content.HTML)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Warn("smtp send failed",
			zap.String("kind", string(msg.Kind)),
			zap.String("user_id", msg.UserID),
			zap.Error(err),
		)
		return fmt.Errorf("smtp send: %w", err)
	}
	s.logger.Debug("smtp send ok", zap.String("kind", string(msg.Kind)), zap.String("user_id", msg.UserID))
	return nil
}
