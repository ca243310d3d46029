// package server hosts the loopback HTTP listener that catches the
// sign-in redirect during the CLI auth flow.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// CallbackResult carries the authorization code (or failure) delivered
// to the redirect endpoint.
type CallbackResult struct {
	Code string
	Err  error
}

// CallbackServer serves a single OAuth redirect on localhost and hands
// the authorization code back to the waiting CLI command.
type CallbackServer struct {
	state      string
	addr       string
	boundAddr  string
	resultChan chan CallbackResult
	once       sync.Once
	srv        *http.Server
}

// NewCallbackServer creates a server expecting the given CSRF state
// token on addr (e.g. "localhost:8080").
func NewCallbackServer(addr, state string) *CallbackServer {
	return &CallbackServer{
		state:      state,
		addr:       addr,
		resultChan: make(chan CallbackResult, 1),
	}
}

// Start begins listening. It returns immediately; use [Wait] to block
// for the redirect.
func (s *CallbackServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.boundAddr = ln.Addr().String()

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handleCallback)
	s.srv = &http.Server{Handler: mux}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.deliver(CallbackResult{Err: err})
		}
	}()
	return nil
}

// Addr returns the address the server is actually listening on, useful
// when constructed with port 0.
func (s *CallbackServer) Addr() string {
	return s.boundAddr
}

// Wait blocks until the redirect arrives or ctx expires, then shuts the
// listener down.
func (s *CallbackServer) Wait(ctx context.Context) (CallbackResult, error) {
	defer s.shutdown()

	select {
	case result := <-s.resultChan:
		if result.Err != nil {
			return result, result.Err
		}
		return result, nil
	case <-ctx.Done():
		return CallbackResult{}, ctx.Err()
	}
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	if got := r.URL.Query().Get("state"); got != s.state {
		err := fmt.Errorf("invalid state parameter")
		s.deliver(CallbackResult{Err: err})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		err := fmt.Errorf("authorization denied: %s", errMsg)
		s.deliver(CallbackResult{Err: err})
		http.Error(w, "Authorization denied", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		err := fmt.Errorf("missing authorization code")
		s.deliver(CallbackResult{Err: err})
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	s.deliver(CallbackResult{Code: code})
	fmt.Fprint(w, "Signed in. You can close this window and return to the terminal.")
}

// deliver sends the result exactly once; later callback hits are ignored.
func (s *CallbackServer) deliver(result CallbackResult) {
	s.once.Do(func() {
		s.resultChan <- result
	})
}

func (s *CallbackServer) shutdown() {
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.srv.Shutdown(ctx)
}
