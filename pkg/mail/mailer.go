package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	nmail "net/mail"
	"strings"
	"time"
)

// ErrMailDisabled signals that outbound email is disabled via configuration.
var ErrMailDisabled = errors.New("mail: delivery disabled")

// Message represents an outbound templated email.
type Message struct {
	To         string
	Subject    string
	TemplateID string
	Variables  map[string]any
}

// Mailer defines behaviour for sending templated email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Settings capture the runtime configuration required by the template mailer.
type Settings struct {
	Enabled  bool
	APIURL   string
	APIKey   string
	From     string
	FromName string
	Timeout  time.Duration
}

type templateMailer struct {
	cfg    Settings
	client *http.Client
}

// NewTemplateMailer builds a Mailer that delivers through a transactional
// template API (ZeptoMail wire format).
func NewTemplateMailer(cfg Settings) (Mailer, error) {
	if err := validateSettings(cfg); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &templateMailer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type apiAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type apiRecipient struct {
	EmailAddress apiAddress `json:"email_address"`
}

type apiPayload struct {
	From        apiAddress     `json:"from"`
	To          []apiRecipient `json:"to"`
	Subject     string         `json:"subject"`
	TemplateKey string         `json:"template_key"`
	MergeInfo   map[string]any `json:"merge_info"`
}

func (m *templateMailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.Enabled {
		return ErrMailDisabled
	}

	to := strings.TrimSpace(msg.To)
	if to == "" {
		return errors.New("mail: recipient is required")
	}
	if _, err := nmail.ParseAddress(to); err != nil {
		return fmt.Errorf("mail: invalid recipient address %q: %w", to, err)
	}
	if strings.TrimSpace(msg.TemplateID) == "" {
		return errors.New("mail: template id is required")
	}

	variables := msg.Variables
	if variables == nil {
		variables = map[string]any{}
	}

	payload := apiPayload{
		From:        apiAddress{Address: m.cfg.From, Name: m.cfg.FromName},
		To:          []apiRecipient{{EmailAddress: apiAddress{Address: to}}},
		Subject:     msg.Subject,
		TemplateKey: msg.TemplateID,
		MergeInfo:   variables,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mail: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mail: build request: %w", err)
	}
	req.Header.Set("Authorization", "Zoho-enczapikey "+m.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mail: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail: template api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return nil
}

func validateSettings(cfg Settings) error {
	if !cfg.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.APIURL) == "" {
		return errors.New("mail: api url is required when enabled")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return errors.New("mail: api key is required when enabled")
	}
	if _, err := nmail.ParseAddress(cfg.From); err != nil {
		return fmt.Errorf("mail: invalid from address: %w", err)
	}
	return nil
}
