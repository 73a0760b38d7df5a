package discord

import (
	"net/http"
	"time"

	"bookclub-notify/pkg/log"
)

const (
	webhookURLTemplate = "https://discord.com/api/webhooks/%s/%s"

	defaultTimeout    = 10 * time.Second
	defaultRetryCount = 2
	defaultRetryDelay = 2 * time.Second
	defaultUsername   = "bookclub-notify"
)

// Config holds webhook client configuration.
type Config struct {
	Timeout    time.Duration
	RetryCount int
	RetryDelay time.Duration
	Username   string
}

// Alerter posts operational alerts to a Discord webhook.
type Alerter struct {
	l      log.Logger
	id     string
	token  string
	config Config
	client *http.Client
}

// webhookPayload is the Discord webhook request body.
type webhookPayload struct {
	Username string  `json:"username,omitempty"`
	Content  string  `json:"content,omitempty"`
	Embeds   []embed `json:"embeds,omitempty"`
}

type embed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}
