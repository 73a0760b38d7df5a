package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"bookclub-notify/pkg/log"
)

var errWebhookRequired = errors.New("discord webhook id and token are required")

const colorWarning = 0xE67E22

// DefaultConfig returns the default webhook client config.
func DefaultConfig() Config {
	return Config{
		Timeout:    defaultTimeout,
		RetryCount: defaultRetryCount,
		RetryDelay: defaultRetryDelay,
		Username:   defaultUsername,
	}
}

// New builds an Alerter for the given webhook id and token.
func New(l log.Logger, id, token string) (*Alerter, error) {
	if id == "" || token == "" {
		return nil, errWebhookRequired
	}
	cfg := DefaultConfig()
	return &Alerter{
		l:      l,
		id:     id,
		token:  token,
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}, nil
}

func (a *Alerter) webhookURL() string {
	return fmt.Sprintf(webhookURLTemplate, a.id, a.token)
}

// Alert posts a warning embed to the ops channel.
func (a *Alerter) Alert(ctx context.Context, title, description string) error {
	payload := &webhookPayload{
		Username: a.config.Username,
		Embeds: []embed{{
			Title:       title,
			Description: description,
			Color:       colorWarning,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	}
	return a.sendWithRetry(ctx, payload)
}

// Close releases idle connections.
func (a *Alerter) Close() error {
	if a.client != nil {
		a.client.CloseIdleConnections()
	}
	return nil
}

func (a *Alerter) sendWithRetry(ctx context.Context, payload *webhookPayload) error {
	var lastErr error
	for attempt := 0; attempt <= a.config.RetryCount; attempt++ {
		if attempt > 0 {
			a.l.Infof(ctx, "pkg.discord.sendWithRetry: retrying attempt %d/%d", attempt, a.config.RetryCount)
			time.Sleep(a.config.RetryDelay)
		}
		err := a.sendRequest(ctx, payload)
		if err == nil {
			return nil
		}
		lastErr = err
		a.l.Warnf(ctx, "pkg.discord.sendWithRetry: attempt %d failed: %v", attempt+1, err)
	}
	return fmt.Errorf("failed after %d attempts, last error: %w", a.config.RetryCount+1, lastErr)
}

func (a *Alerter) sendRequest(ctx context.Context, payload *webhookPayload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL(), bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
