// Package relay delivers contact form submissions to an email relay.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/Zachkp/folio/internal/contact"
)

// DefaultEmailJSURL is the EmailJS REST send endpoint.
const DefaultEmailJSURL = "https://api.emailjs.com/api/v1.0/email/send"

// EmailJSConfig holds the EmailJS identifiers. None of them are secret
// except the optional access token.
type EmailJSConfig struct {
	ServiceID   string
	TemplateID  string
	PublicKey   string
	AccessToken string
	BaseURL     string
}

// EmailJS sends submissions through the EmailJS REST API.
type EmailJS struct {
	cfg        EmailJSConfig
	baseURL    string
	httpClient *http.Client
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// NewEmailJS creates an EmailJS client.
func NewEmailJS(cfg EmailJSConfig) (*EmailJS, error) {
	if cfg.ServiceID == "" || cfg.TemplateID == "" || cfg.PublicKey == "" {
		return nil, errors.New("emailjs service id, template id and public key are required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultEmailJSURL
	}

	return &EmailJS{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Dispatch implements contact.Dispatcher.
func (e *EmailJS) Dispatch(ctx context.Context, f contact.Fields) error {
	payload := emailJSRequest{
		ServiceID:   e.cfg.ServiceID,
		TemplateID:  e.cfg.TemplateID,
		UserID:      e.cfg.PublicKey,
		AccessToken: e.cfg.AccessToken,
		TemplateParams: map[string]string{
			"from_name":  f.Name,
			"from_email": f.Email,
			"subject":    f.Subject,
			"message":    f.Message,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to encode emailjs request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Newf("emailjs error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return nil
}
