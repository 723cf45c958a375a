// Package fcm delivers notifications to android installs via Firebase Cloud Messaging.
package fcm

import (
	"context"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/messaging"
	"github.com/wanderly/pushgate/internal/logger"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// This interface allows mocking the client for unit tests.
type MessagingClient interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type Dispatcher struct {
	client MessagingClient
	logger *logger.Logger
}

// NewDispatcher accepts the concrete client but stores it as the interface.
// *messaging.Client satisfies MessagingClient.
func NewDispatcher(client MessagingClient, logger *logger.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		logger: logger.WithComponent("fcm-dispatcher"),
	}
}

// Dispatch sends one notification to a batch of FCM tokens and reports
// per-token success and failure counts. A transport-level failure counts the
// whole batch as failed; it never propagates as a request-level error.
func (d *Dispatcher) Dispatch(ctx context.Context, tokens []string, title, body string) (successful, failed int, err error) {
	if len(tokens) == 0 {
		return 0, 0, nil
	}

	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	}

	br, err := d.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		d.logger.Error("FCM transport failed",
			slog.Int("tokens", len(tokens)),
			slog.String("error", err.Error()))
		return 0, len(tokens), fmt.Errorf("fcm transport failed: %w", err)
	}

	for _, resp := range br.Responses {
		if resp.Success {
			successful++
			continue
		}
		failed++
		if resp.Error != nil {
			d.logger.Warn("FCM rejected notification", slog.String("error", resp.Error.Error()))
		}
	}

	return successful, failed, nil
}
