package push

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"

	"bookclub-notify/internal/model"
	"bookclub-notify/pkg/log"
)

// fcmBatchLimit is the provider-imposed ceiling on messages per batch call.
const fcmBatchLimit = 500

// Sender is the subset of the FCM messaging client the gateway uses.
// *messaging.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SendEach(ctx context.Context, messages []*messaging.Message) (*messaging.BatchResponse, error)
}

// TokenStore is the device-token store boundary.
type TokenStore interface {
	ResolveEnabled(ctx context.Context, recipientIDs []string) ([]model.DeviceToken, error)
	Delete(ctx context.Context, token string) error
}

// classification is the closed result set of per-message error inspection.
type classification int

const (
	classTransient classification = iota
	classPermanent
)

// Hooks carries optional metric callbacks.
type Hooks struct {
	OnSent   func(count int)
	OnFailed func(count int)
	OnPruned func(count int)
}

func (h *Hooks) fill() {
	if h.OnSent == nil {
		h.OnSent = func(int) {}
	}
	if h.OnFailed == nil {
		h.OnFailed = func(int) {}
	}
	if h.OnPruned == nil {
		h.OnPruned = func(int) {}
	}
}

// Gateway delivers a title/body/link to every enabled device token of a set
// of recipients via FCM, in size-bounded batches, and prunes tokens the
// provider reports as permanently invalid.
type Gateway struct {
	sender    Sender
	tokens    TokenStore
	chunkSize int
	l         log.Logger
	hooks     Hooks

	// classify maps a per-message provider error to permanent or transient.
	// Overridable in tests; FCM errors cannot be constructed outside the SDK.
	classify func(error) classification
}

// NewGateway creates a Gateway. chunkSize is clamped to the provider limit.
func NewGateway(sender Sender, tokens TokenStore, chunkSize int, l log.Logger, hooks Hooks) *Gateway {
	hooks.fill()
	if chunkSize <= 0 || chunkSize > fcmBatchLimit {
		chunkSize = fcmBatchLimit
	}
	return &Gateway{
		sender:    sender,
		tokens:    tokens,
		chunkSize: chunkSize,
		l:         l,
		hooks:     hooks,
		classify:  classifyFCM,
	}
}

// classifyFCM treats unregistered and malformed tokens as permanently
// invalid; everything else is transient.
func classifyFCM(err error) classification {
	if messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err) {
		return classPermanent
	}
	return classTransient
}

// SendToRecipients resolves the recipients' enabled tokens and pushes the
// notification to all of them. Zero tokens is a no-op. Partial failures are
// classified per message and never abort the remaining batches.
func (g *Gateway) SendToRecipients(ctx context.Context, recipientIDs []string, title, body, linkPath string) error {
	tokens, err := g.tokens.ResolveEnabled(ctx, recipientIDs)
	if err != nil {
		return fmt.Errorf("resolve device tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	if len(tokens) == 1 {
		g.sendSingle(ctx, tokens[0], title, body, linkPath)
		return nil
	}

	var invalid []model.DeviceToken
	for start := 0; start < len(tokens); start += g.chunkSize {
		end := start + g.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		invalid = append(invalid, g.sendChunk(ctx, tokens[start:end], title, body, linkPath)...)
	}

	g.cleanup(ctx, invalid)
	return nil
}

// sendSingle sends one message directly, with platform-specific alert and
// sound metadata the batch path does not carry.
func (g *Gateway) sendSingle(ctx context.Context, token model.DeviceToken, title, body, linkPath string) {
	msg := g.buildMessage(token.Token, title, body, linkPath)
	msg.Android = &messaging.AndroidConfig{
		Priority: "high",
		Notification: &messaging.AndroidNotification{
			Sound: "default",
		},
	}
	msg.APNS = &messaging.APNSConfig{
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{Sound: "default"},
		},
	}

	if _, err := g.sender.Send(ctx, msg); err != nil {
		g.l.Warnf(ctx, "internal.push.sendSingle: send to recipient %s failed: %v", token.RecipientID, err)
		g.hooks.OnFailed(1)
		if g.classify(err) == classPermanent {
			g.cleanup(ctx, []model.DeviceToken{token})
		}
		return
	}
	g.hooks.OnSent(1)
}

// sendChunk submits one batch call and returns the tokens whose per-message
// result was permanently invalid. A batch-level transport failure is logged
// and returns nothing; the remaining chunks still run.
func (g *Gateway) sendChunk(ctx context.Context, chunk []model.DeviceToken, title, body, linkPath string) []model.DeviceToken {
	msgs := make([]*messaging.Message, len(chunk))
	for i, token := range chunk {
		msgs[i] = g.buildMessage(token.Token, title, body, linkPath)
	}

	resp, err := g.sender.SendEach(ctx, msgs)
	if err != nil {
		g.l.Errorf(ctx, "internal.push.sendChunk: batch call failed for %d token(s): %v", len(chunk), err)
		g.hooks.OnFailed(len(chunk))
		return nil
	}

	var invalid []model.DeviceToken
	for i, r := range resp.Responses {
		if r.Success {
			continue
		}
		switch g.classify(r.Error) {
		case classPermanent:
			g.l.Infof(ctx, "internal.push.sendChunk: token for recipient %s permanently invalid: %v", chunk[i].RecipientID, r.Error)
			invalid = append(invalid, chunk[i])
		case classTransient:
			g.l.Warnf(ctx, "internal.push.sendChunk: transient failure for recipient %s: %v", chunk[i].RecipientID, r.Error)
		}
	}

	g.hooks.OnSent(resp.SuccessCount)
	g.hooks.OnFailed(resp.FailureCount)
	return invalid
}

func (g *Gateway) buildMessage(token, title, body, linkPath string) *messaging.Message {
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	}
	if linkPath != "" {
		msg.Data = map[string]string{"linkPath": linkPath}
	}
	return msg
}

// cleanup deletes every permanently invalid token from the store. Absence is
// not an error; the deletion is idempotent.
func (g *Gateway) cleanup(ctx context.Context, invalid []model.DeviceToken) {
	pruned := 0
	for _, token := range invalid {
		if err := g.tokens.Delete(ctx, token.Token); err != nil {
			g.l.Errorf(ctx, "internal.push.cleanup: delete token for recipient %s: %v", token.RecipientID, err)
			continue
		}
		pruned++
	}
	if pruned > 0 {
		g.hooks.OnPruned(pruned)
		g.l.Infof(ctx, "internal.push.cleanup: pruned %d invalid token(s)", pruned)
	}
}
