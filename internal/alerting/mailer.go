package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const mailerSendPath = "/v1/send"

// Mailer 定义邮件投递接口。投递结果按整批返回。
type Mailer interface {
	Send(ctx context.Context, recipients []string, subject, body string) error
}

// MailerOptions parameterise the HTTP mail provider client.
type MailerOptions struct {
	BaseURL string
	APIKey  string
	From    string
	Timeout time.Duration
}

// HTTPMailer 通过邮件服务商的 HTTP API 发送通知。
type HTTPMailer struct {
	opts    MailerOptions
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewHTTPMailer 构造邮件发送器。
func NewHTTPMailer(opts MailerOptions, logger zerolog.Logger) *HTTPMailer {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPMailer{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		logger:  logger.With().Str("component", "alert_mailer").Logger(),
	}
}

type mailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// Send 发送一封邮件给全部收件人。
func (m *HTTPMailer) Send(ctx context.Context, recipients []string, subject, body string) error {
	if len(recipients) == 0 {
		return nil
	}
	if m.baseURL == "" {
		return errors.New("mailer base url not configured")
	}
	if m.opts.From == "" {
		return errors.New("mailer from address not configured")
	}

	payload, err := json.Marshal(mailRequest{
		From:    m.opts.From,
		To:      recipients,
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("marshal mail payload: %w", err)
	}

	endpoint := m.baseURL + mailerSendPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.opts.APIKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		if len(raw) > 0 {
			return fmt.Errorf("mail api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return fmt.Errorf("mail api error (%d)", resp.StatusCode)
	}

	m.logger.Info().Int("recipients", len(recipients)).Str("subject", subject).Msg("邮件已发送")
	return nil
}

var _ Mailer = (*HTTPMailer)(nil)
