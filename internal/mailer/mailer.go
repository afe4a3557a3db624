package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/maine/news_digest/internal/formatter"
	"github.com/maine/news_digest/internal/logger"
	"github.com/maine/news_digest/internal/retry"
)

const (
	DefaultHost       = "smtp.gmail.com"
	DefaultPort       = 587
	DefaultTimeout    = 30 * time.Second
	DefaultAttempts   = 3
	DefaultRetryDelay = 5 * time.Second
)

// Sender отправляет готовые письма. *mail.Client реализует этот интерфейс.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Config - параметры SMTP-доставки.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Timeout  time.Duration

	MaxAttempts int
	RetryDelay  time.Duration
	// Sleep подменяется в тестах.
	Sleep retry.SleepFunc
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.From == "" {
		c.From = c.Username
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	return c
}

// NewClient создаёт SMTP-клиента go-mail: STARTTLS обязателен, авторизация PLAIN.
func NewClient(cfg Config) (*mail.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("smtp credentials missing; set GMAIL_ADDRESS and GMAIL_APP_PASSWORD")
	}

	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return client, nil
}

// Mailer - канал доставки дайджеста по электронной почте.
type Mailer struct {
	sender Sender
	cfg    Config
	logger *slog.Logger
}

// New создаёт почтовый канал.
func New(sender Sender, cfg Config, log *slog.Logger) *Mailer {
	return &Mailer{
		sender: sender,
		cfg:    cfg.withDefaults(),
		logger: logger.OrDefault(log),
	}
}

// Name реализует delivery.Channel.
func (m *Mailer) Name() string { return "email" }

// BuildMessage собирает письмо: текстовая часть - Markdown, альтернатива - HTML.
func (m *Mailer) BuildMessage(doc formatter.Document) (*mail.Msg, error) {
	if len(m.cfg.To) == 0 {
		return nil, errors.New("no email recipients configured")
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(m.cfg.To...); err != nil {
		return nil, fmt.Errorf("set recipients: %w", err)
	}
	msg.Subject(doc.Subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, doc.Markdown)
	if doc.HTML != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, doc.HTML)
	}
	return msg, nil
}

// Send реализует delivery.Channel: до MaxAttempts попыток с фиксированной паузой.
func (m *Mailer) Send(ctx context.Context, doc formatter.Document) error {
	msg, err := m.BuildMessage(doc)
	if err != nil {
		return err
	}

	policy := retry.Policy{
		MaxAttempts: m.cfg.MaxAttempts,
		Delay:       m.cfg.RetryDelay,
		Backoff:     retry.Fixed,
		Sleep:       m.cfg.Sleep,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			m.logger.Warn("email send failed, retrying",
				"attempt", attempt, "max_attempts", m.cfg.MaxAttempts, "delay", delay, "err", err)
		},
	}

	err = policy.Do(ctx, func(ctx context.Context, attempt int) error {
		return m.sender.DialAndSendWithContext(ctx, msg)
	})
	if err != nil {
		m.logger.Error("email delivery failed", "recipients", len(m.cfg.To), "err", err)
		return fmt.Errorf("send email: %w", err)
	}

	m.logger.Info("email sent", "recipients", len(m.cfg.To), "subject", doc.Subject)
	return nil
}
