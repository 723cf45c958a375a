// Package dispatch fans a notification out to every device registered for a user.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wanderly/pushgate/internal/apns"
	"github.com/wanderly/pushgate/internal/logger"
	"github.com/wanderly/pushgate/internal/metrics"
	"github.com/wanderly/pushgate/internal/tokens"
)

// Pusher delivers one alert to one device endpoint via a gateway environment.
type Pusher interface {
	Push(ctx context.Context, env apns.Environment, deviceToken, assertion string, alert apns.Alert) error
}

// AssertionSigner produces the signed gateway authentication assertion.
type AssertionSigner interface {
	Assertion() (string, error)
}

// FCMDispatcher delivers a notification to a batch of android tokens.
type FCMDispatcher interface {
	Dispatch(ctx context.Context, tokens []string, title, body string) (successful, failed int, err error)
}

// Service is the notification dispatcher: token resolution, one assertion
// per invocation, then a concurrent per-token fan-out with a join-all
// barrier. Per-token failures are contained; only resolution and signing
// failures abort the request.
type Service struct {
	store  tokens.Store
	signer AssertionSigner
	pusher Pusher
	fcm    FCMDispatcher // nil when Firebase is not configured
	logger *logger.Logger
}

// NewService assembles the dispatcher. fcm may be nil; android tokens are
// then counted as failures rather than silently dropped.
func NewService(store tokens.Store, signer AssertionSigner, pusher Pusher, fcm FCMDispatcher, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		signer: signer,
		pusher: pusher,
		fcm:    fcm,
		logger: log,
	}
}

// Send resolves the user's device tokens and delivers the notification to
// every one of them, returning aggregate counts. The returned error is
// non-nil only for storage or signing failures, which map to a 500; a batch
// where every delivery failed still returns a nil error.
func (s *Service) Send(ctx context.Context, req Request) (Summary, error) {
	log := s.logger.WithContext(ctx).WithComponent("dispatcher")

	devices, err := s.store.GetTokens(ctx, req.UserID)
	if err != nil {
		metrics.DispatchRequests.WithLabelValues("storage_error").Inc()
		return Summary{}, fmt.Errorf("failed to load device tokens: %w", err)
	}

	if len(devices) == 0 {
		log.Info("no device tokens registered, nothing to deliver",
			slog.String("user_id", req.UserID))
		metrics.DispatchRequests.WithLabelValues("no_tokens").Inc()
		return Summary{Message: MessageNoTokens}, nil
	}

	var apnsTokens, fcmTokens []string
	for _, d := range devices {
		if d.Platform == tokens.PlatformAndroid {
			fcmTokens = append(fcmTokens, d.Token)
		} else {
			apnsTokens = append(apnsTokens, d.Token)
		}
	}

	// Sign exactly once per invocation; every APNs delivery in this batch
	// reuses the same assertion. Signing failures are fatal for the whole
	// request and happen before any network call.
	var assertion string
	if len(apnsTokens) > 0 {
		assertion, err = s.signer.Assertion()
		if err != nil {
			metrics.DispatchRequests.WithLabelValues("config_error").Inc()
			return Summary{}, err
		}
	}

	summary := Summary{Message: MessageSent, Total: len(devices)}
	alert := apns.Alert{Title: req.Title, Body: req.Body}

	for _, o := range s.fanOut(ctx, apnsTokens, assertion, alert) {
		if o.Succeeded {
			summary.Successful++
			metrics.Deliveries.WithLabelValues("ios", "success").Inc()
		} else {
			summary.Failed++
			metrics.Deliveries.WithLabelValues("ios", "failure").Inc()
		}
	}

	if len(fcmTokens) > 0 {
		ok, bad := s.dispatchFCM(ctx, fcmTokens, req)
		summary.Successful += ok
		summary.Failed += bad
	}

	log.Info("dispatch complete",
		slog.String("user_id", req.UserID),
		slog.Int("successful", summary.Successful),
		slog.Int("failed", summary.Failed),
		slog.Int("total", summary.Total))
	metrics.DispatchRequests.WithLabelValues("ok").Inc()

	return summary, nil
}

// fanOut issues one concurrent delivery attempt per token and joins on all
// outcomes. Failures stay inside their branch as result values; one failing
// token never cancels its siblings.
func (s *Service) fanOut(ctx context.Context, toks []string, assertion string, alert apns.Alert) []Outcome {
	if len(toks) == 0 {
		return nil
	}

	results := make(chan Outcome, len(toks))

	var wg sync.WaitGroup
	for _, t := range toks {
		wg.Add(1)
		go func(deviceToken string) {
			defer wg.Done()
			results <- Outcome{
				Token:     deviceToken,
				Succeeded: s.deliver(ctx, deviceToken, assertion, alert),
			}
		}(t)
	}
	wg.Wait()
	close(results)

	outcomes := make([]Outcome, 0, len(toks))
	for o := range results {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// deliver tries the gateway environments in their fixed fallback order,
// stopping at the first success. Two attempts at most; a token failing both
// is dropped for this invocation.
func (s *Service) deliver(ctx context.Context, deviceToken, assertion string, alert apns.Alert) bool {
	log := s.logger.WithContext(ctx).WithComponent("dispatcher")

	for _, env := range apns.DeliveryOrder {
		err := s.pusher.Push(ctx, env, deviceToken, assertion, alert)
		if err == nil {
			log.Debug("delivery succeeded",
				slog.String("environment", env.Name),
				slog.String("token_prefix", tokenPrefix(deviceToken)))
			return true
		}
		log.Warn("delivery attempt failed",
			slog.String("environment", env.Name),
			slog.String("token_prefix", tokenPrefix(deviceToken)),
			slog.String("error", err.Error()))
	}

	return false
}

func (s *Service) dispatchFCM(ctx context.Context, toks []string, req Request) (successful, failed int) {
	log := s.logger.WithContext(ctx).WithComponent("dispatcher")

	if s.fcm == nil {
		log.Warn("android tokens present but FCM is not configured",
			slog.Int("tokens", len(toks)))
		metrics.Deliveries.WithLabelValues("android", "failure").Add(float64(len(toks)))
		return 0, len(toks)
	}

	successful, failed, err := s.fcm.Dispatch(ctx, toks, req.Title, req.Body)
	if err != nil {
		// Contained like any other delivery failure; counts already reflect it.
		log.LogError(ctx, err, "FCM dispatch failed")
	}
	metrics.Deliveries.WithLabelValues("android", "success").Add(float64(successful))
	metrics.Deliveries.WithLabelValues("android", "failure").Add(float64(failed))

	return successful, failed
}

func tokenPrefix(token string) string {
	if len(token) > 10 {
		return token[:10] + "..."
	}
	return token
}
