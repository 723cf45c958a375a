package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/wanderly/pushgate/internal/apns"
	"github.com/wanderly/pushgate/internal/logger"
	"github.com/wanderly/pushgate/internal/tokens"
)

// mockStore implements the subset of tokens.Store needed for dispatch tests.
type mockStore struct {
	getTokensFunc func(ctx context.Context, userID string) ([]tokens.DeviceToken, error)
	getCalls      int
}

func (m *mockStore) GetTokens(ctx context.Context, userID string) ([]tokens.DeviceToken, error) {
	m.getCalls++
	if m.getTokensFunc != nil {
		return m.getTokensFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockStore) Register(ctx context.Context, userID string, token tokens.DeviceToken) error {
	return nil
}

func (m *mockStore) Unregister(ctx context.Context, userID, token string) error {
	return nil
}

// mockSigner produces a canned assertion.
type mockSigner struct {
	assertion string
	err       error
	calls     int
}

func (m *mockSigner) Assertion() (string, error) {
	m.calls++
	return m.assertion, m.err
}

// mockPusher records every attempt and fails per a configurable table.
// It must be safe for concurrent use since the fan-out runs one goroutine
// per token.
type mockPusher struct {
	mu sync.Mutex
	// failures maps "env/token" to an error to return.
	failures map[string]error
	// attempts counts pushes per "env/token".
	attempts map[string]int
	// assertions records each assertion presented.
	assertions []string
}

func newMockPusher() *mockPusher {
	return &mockPusher{
		failures: make(map[string]error),
		attempts: make(map[string]int),
	}
}

func (m *mockPusher) fail(env apns.Environment, token string) {
	m.failures[env.Name+"/"+token] = errors.New("gateway rejected delivery")
}

func (m *mockPusher) Push(ctx context.Context, env apns.Environment, deviceToken, assertion string, alert apns.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := env.Name + "/" + deviceToken
	m.attempts[key]++
	m.assertions = append(m.assertions, assertion)
	return m.failures[key]
}

func (m *mockPusher) attemptsFor(env apns.Environment, token string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[env.Name+"/"+token]
}

func (m *mockPusher) totalAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.attempts {
		n += c
	}
	return n
}

// mockFCM implements FCMDispatcher.
type mockFCM struct {
	successful, failed int
	err                error
	gotTokens          []string
}

func (m *mockFCM) Dispatch(ctx context.Context, toks []string, title, body string) (int, int, error) {
	m.gotTokens = toks
	return m.successful, m.failed, m.err
}

func iosTokens(toks ...string) []tokens.DeviceToken {
	out := make([]tokens.DeviceToken, 0, len(toks))
	for _, t := range toks {
		out = append(out, tokens.DeviceToken{Token: t, Platform: tokens.PlatformIOS})
	}
	return out
}

func newTestService(store *mockStore, signer *mockSigner, pusher *mockPusher, fcm FCMDispatcher) *Service {
	log := logger.New(logger.Config{})
	return NewService(store, signer, pusher, fcm, log)
}

func TestSend(t *testing.T) {
	ctx := context.Background()
	req := Request{UserID: "u1", Title: "Hi", Body: "there"}

	t.Run("zero tokens is a success with zero deliveries", func(t *testing.T) {
		store := &mockStore{}
		signer := &mockSigner{assertion: "jwt"}
		pusher := newMockPusher()

		summary, err := newTestService(store, signer, pusher, nil).Send(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Message != MessageNoTokens {
			t.Errorf("expected %q, got %q", MessageNoTokens, summary.Message)
		}
		if summary.Successful != 0 || summary.Failed != 0 || summary.Total != 0 {
			t.Errorf("expected zero counts, got %+v", summary)
		}
		if signer.calls != 0 {
			t.Error("signer must not run for an empty batch")
		}
		if pusher.totalAttempts() != 0 {
			t.Error("no delivery may be attempted for an empty batch")
		}
	})

	t.Run("storage failure aborts before signing", func(t *testing.T) {
		store := &mockStore{
			getTokensFunc: func(ctx context.Context, userID string) ([]tokens.DeviceToken, error) {
				return nil, errors.New("connection refused")
			},
		}
		signer := &mockSigner{assertion: "jwt"}
		pusher := newMockPusher()

		_, err := newTestService(store, signer, pusher, nil).Send(ctx, req)
		if err == nil {
			t.Fatal("expected error")
		}
		if signer.calls != 0 || pusher.totalAttempts() != 0 {
			t.Error("no signing or delivery may happen after a storage failure")
		}
	})

	t.Run("signing failure aborts before any delivery", func(t *testing.T) {
		store := &mockStore{
			getTokensFunc: func(ctx context.Context, userID string) ([]tokens.DeviceToken, error) {
				return iosTokens("tokA", "tokB"), nil
			},
		}
		signer := &mockSigner{err: errors.New("missing APNs private key")}
		pusher := newMockPusher()

		_, err := newTestService(store, signer, pusher, nil).Send(ctx, req)
		if err == nil {
			t.Fatal("expected error")
		}
		if pusher.totalAttempts() != 0 {
			t.Error("no delivery may be attempted after a signing failure")
		}
	})

	t.Run("one assertion reused across the whole batch", func(t *testing.T) {
		store := &mockStore{
			getTokensFunc: func(ctx context.Context, userID string) ([]tokens.DeviceToken, error) {
				return iosTokens("tokA", "tokB", "tokC"), nil
			},
		}
		signer := &mockSigner{assertion: "the-one-jwt"}
		pusher := newMockPusher()

		if _, err := newTestService(store, signer, pusher, nil).Send(ctx, req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if signer.calls != 1 {
			t.Errorf("expected exactly one signing, got %d", signer.calls)
		}
		for _, a := range pusher.assertions {
			if a != "the-one-jwt" {
				t.Errorf("delivery used a different assertion: %q", a)
			}
		}
	})

	t.Run("all sandbox successes never touch production", func(t *testing.T) {
		store := &mockStore{
			getTokensFunc: func(ctx context.Context, userID string) ([]tokens.DeviceToken, error) {
				return iosTokens("tokA", "tokB", "tokC"), nil
			},
		}
		signer := &mockSigner{assertion: "jwt"}
		pusher := newMockPusher()

		summary, err := newTestService(store, signer, pusher, nil).Send(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Successful != 3 || summary.Failed != 0 || summary.Total != 3 {
			t.Errorf("unexpected summary: %+v", summary)
		}
		for _, tok := range []string{"tokA", "tokB", "tokC"} {
			if n := pusher.attemptsFor(apns.Production, tok); n != 0 {
				t.Errorf("production contacted %d times for %s", n, tok)
			}
		}
	})

	t.Run("sandbox failure falls back to production once", func(t *testing.T) {
		store := &mockStore{
			getTokensFunc: func(ctx context.Context, userID string) ([]tokens.DeviceToken, error) {
				return iosTokens("tokA"), nil
			},
		}
		signer := &mockSigner{assertion: "jwt"}
		pusher := newMockPusher()
		pusher.fail(apns.Sandbox, "tokA")

		summary, err := newTestService(store, signer, pusher, nil).Send(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Successful != 1 || summary.Failed != 0 {
			t.Errorf("unexpected summary: %+v", summary)
		}
		if n := pusher.attemptsFor(apns.Sandbox, "tokA"); n != 1 {
			t.Errorf("sandbox contacted %d times", n)
		}
		if n := pusher.attemptsFor(apns.Production, "tokA"); n != 1 {
			t.Errorf("production contacted %d times", n)
		}
	})

	t.Run("both environments failing drops the token without failing the request", func(t *testing.T) {
		store := &mockStore{
			getTokensFunc: func(ctx context.Context, userID string) ([]tokens.DeviceToken, error) {
				return iosTokens("tokA", "tokB"), nil
			},
		}
		signer := &mockSigner{assertion: "jwt"}
		pusher := newMockPusher()
		pusher.fail(apns.Sandbox, "tokB")
		pusher.fail(apns.Production, "tokB")

		summary, err := newTestService(store, signer, pusher, nil).Send(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Message != MessageSent {
			t.Errorf("expected %q, got %q", MessageSent, summary.Message)
		}
		if summary.Successful != 1 || summary.Failed != 1 || summary.Total != 2 {
			t.Errorf("unexpected summary: %+v", summary)
		}
	})

	t.Run("every delivery failing still returns a summary", func(t *testing.T) {
		store := &mockStore{
			getTokensFunc: func(ctx context.Context, userID string) ([]tokens.DeviceToken, error) {
				return iosTokens("tokA", "tokB"), nil
			},
		}
		signer := &mockSigner{assertion: "jwt"}
		pusher := newMockPusher()
		for _, tok := range []string{"tokA", "tokB"} {
			pusher.fail(apns.Sandbox, tok)
			pusher.fail(apns.Production, tok)
		}

		summary, err := newTestService(store, signer, pusher, nil).Send(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Successful != 0 || summary.Failed != 2 || summary.Total != 2 {
			t.Errorf("unexpected summary: %+v", summary)
		}
	})

	t.Run("android tokens go through FCM", func(t *testing.T) {
		store := &mockStore{
			getTokensFunc: func(ctx context.Context, userID string) ([]tokens.DeviceToken, error) {
				return []tokens.DeviceToken{
					{Token: "ios1", Platform: tokens.PlatformIOS},
					{Token: "droid1", Platform: tokens.PlatformAndroid},
					{Token: "droid2", Platform: tokens.PlatformAndroid},
				}, nil
			},
		}
		signer := &mockSigner{assertion: "jwt"}
		pusher := newMockPusher()
		fcm := &mockFCM{successful: 1, failed: 1}

		summary, err := newTestService(store, signer, pusher, fcm).Send(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(fcm.gotTokens) != 2 {
			t.Errorf("expected 2 android tokens, got %v", fcm.gotTokens)
		}
		if summary.Successful != 2 || summary.Failed != 1 || summary.Total != 3 {
			t.Errorf("unexpected summary: %+v", summary)
		}
	})

	t.Run("android tokens without FCM configured count as failures", func(t *testing.T) {
		store := &mockStore{
			getTokensFunc: func(ctx context.Context, userID string) ([]tokens.DeviceToken, error) {
				return []tokens.DeviceToken{
					{Token: "droid1", Platform: tokens.PlatformAndroid},
				}, nil
			},
		}
		signer := &mockSigner{assertion: "jwt"}
		pusher := newMockPusher()

		summary, err := newTestService(store, signer, pusher, nil).Send(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Successful != 0 || summary.Failed != 1 || summary.Total != 1 {
			t.Errorf("unexpected summary: %+v", summary)
		}
		if signer.calls != 0 {
			t.Error("signer must not run when no ios tokens exist")
		}
	})
}
