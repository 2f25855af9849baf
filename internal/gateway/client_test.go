package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type stubProtocol struct{}

func (stubProtocol) Name() string                     { return "stub" }
func (stubProtocol) Scheme() string                   { return "http" }
func (stubProtocol) Hosts() []string                  { return nil }
func (stubProtocol) NeedsBootstrap(acct Account) bool { return false }

func (stubProtocol) BuildRequest(op Operation, acct Account, msg *OutgoingMessage) (*Request, error) {
	return &Request{Method: http.MethodGet, Path: "/probe"}, nil
}

func (stubProtocol) ClassifyResponse(op Operation, resp *Response) (*Result, error) {
	return &Result{Code: 0, Balance: string(resp.Body)}, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveAttempt(protocol string, op Operation, host, outcome string, seconds float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func newStubClient(t *testing.T, httpClient *http.Client, obs Observer) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{Protocol: stubProtocol{}, HTTPClient: httpClient, Observer: obs})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientRequiresProtocol(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatalf("expected protocol validation error")
	}
}

func TestNewHTTPClientTimeouts(t *testing.T) {
	c := NewHTTPClient(0, 0)
	tr := c.Transport.(*http.Transport)
	if tr.ResponseHeaderTimeout != 15*time.Second {
		t.Fatalf("expected 15s read timeout, got %s", tr.ResponseHeaderTimeout)
	}
	if c.Timeout != 20*time.Second {
		t.Fatalf("expected 20s overall timeout, got %s", c.Timeout)
	}
}

func TestDoClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusOK, nil},
		{http.StatusAccepted, nil},
		{http.StatusForbidden, ErrAuthentication},
		{http.StatusInternalServerError, ErrServiceUnavailable},
		{http.StatusServiceUnavailable, ErrServiceUnavailable},
		{http.StatusNotFound, ErrHTTP},
		{http.StatusBadGateway, ErrHTTP},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			io.WriteString(w, "7/50")
		}))
		host := server.Listener.Addr().String()
		client := newStubClient(t, nil, nil)
		res, err := client.Do(context.Background(), host, OpUpdate, Account{}, nil)
		server.Close()

		if tt.want == nil {
			if err != nil || res.Balance != "7/50" {
				t.Fatalf("status %d: unexpected result %#v, %v", tt.status, res, err)
			}
			continue
		}
		if !errors.Is(err, tt.want) {
			t.Fatalf("status %d: expected %v, got %v", tt.status, tt.want, err)
		}
		var gwErr *Error
		if !errors.As(err, &gwErr) || gwErr.StatusCode != tt.status || gwErr.Host != host || gwErr.Op != OpUpdate {
			t.Fatalf("status %d: expected annotated error, got %#v", tt.status, gwErr)
		}
	}
}

func TestDoTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	obs := &recordingObserver{}
	client := newStubClient(t, NewHTTPClient(time.Second, 50*time.Millisecond), obs)
	_, err := client.Do(context.Background(), server.Listener.Addr().String(), OpUpdate, Account{}, nil)
	if !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != "timeout" {
		t.Fatalf("unexpected observations %v", obs.outcomes)
	}
}

func TestDoConnectionRefusedIsNotTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host := ln.Addr().String()
	ln.Close()

	client := newStubClient(t, nil, nil)
	_, err = client.Do(context.Background(), host, OpUpdate, Account{}, nil)
	if !errors.Is(err, ErrServiceUnavailable) || IsTimeout(err) {
		t.Fatalf("expected service unavailable, got %v", err)
	}
}

func TestDoCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := newStubClient(t, nil, nil)
	_, err := client.Do(ctx, server.Listener.Addr().String(), OpUpdate, Account{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		t.Fatalf("cancellation must not be classified, got %v", gwErr)
	}
}

func TestErrorText(t *testing.T) {
	err := AuthError(11, "wrong customer id or password")
	err.Host = "app1.wr-gmbh.de"
	want := "gateway: authentication failed: wrong customer id or password #11 host=app1.wr-gmbh.de"
	if err.Error() != want {
		t.Fatalf("unexpected error text %q", err.Error())
	}
	if Reason(err) != "wrong customer id or password" {
		t.Fatalf("unexpected reason %q", Reason(err))
	}
	if Outcome(err) != "auth" || Outcome(nil) != "ok" || Outcome(errors.New("x")) != "error" {
		t.Fatalf("unexpected outcome labels")
	}
}

func TestTransportErrorTimeoutDetection(t *testing.T) {
	if !IsTimeout(TransportError(context.DeadlineExceeded)) {
		t.Fatalf("deadline exceeded should be a timeout")
	}
	if IsTimeout(TransportError(errors.New("reset"))) {
		t.Fatalf("plain error should not be a timeout")
	}
}
