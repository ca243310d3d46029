package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func startServer(t *testing.T, state string) (*CallbackServer, string) {
	t.Helper()

	srv := NewCallbackServer("127.0.0.1:0", state)
	if err := srv.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	return srv, fmt.Sprintf("http://%s/callback", srv.Addr())
}

func TestCallbackServer(t *testing.T) {
	t.Run("Delivers Code", func(t *testing.T) {
		srv, base := startServer(t, "state-1")

		go func() {
			time.Sleep(50 * time.Millisecond)
			http.Get(fmt.Sprintf("%s?state=state-1&code=auth-code-9", base))
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		result, err := srv.Wait(ctx)
		if err != nil {
			t.Fatalf("wait failed: %v", err)
		}
		if result.Code != "auth-code-9" {
			t.Errorf("expected auth-code-9, got %s", result.Code)
		}
	})

	t.Run("Rejects Bad State", func(t *testing.T) {
		srv, base := startServer(t, "state-1")

		go func() {
			time.Sleep(50 * time.Millisecond)
			http.Get(fmt.Sprintf("%s?state=wrong&code=x", base))
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := srv.Wait(ctx); err == nil {
			t.Error("expected error for mismatched state")
		}
	})

	t.Run("Denied Authorization", func(t *testing.T) {
		srv, base := startServer(t, "state-1")

		go func() {
			time.Sleep(50 * time.Millisecond)
			http.Get(fmt.Sprintf("%s?state=state-1&error=access_denied", base))
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := srv.Wait(ctx); err == nil {
			t.Error("expected error for denied authorization")
		}
	})

	t.Run("Context Expiry", func(t *testing.T) {
		srv, _ := startServer(t, "state-1")

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		if _, err := srv.Wait(ctx); err == nil {
			t.Error("expected context expiry error")
		}
	})
}
