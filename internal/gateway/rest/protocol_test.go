package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/gmx-sms-connector/internal/gateway"
)

func TestBalance(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"AVAILABLE_FREE_SMS=7&MAX_MONTH_FREE_SMS=50", "7/50"},
		{"AVAILABLE_FREE_SMS=7", "7"},
		{"OTHER=1", "?"},
		{"", "?"},
		{"AVAILABLE_FREE_SMS=&MAX_MONTH_FREE_SMS=50", "?"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Balance(ParseFields(tt.body)), "body %q", tt.body)
	}
}

func TestParseFields(t *testing.T) {
	fields := ParseFields("A=1&B=hello%20world&broken&C=100%&A=2\n")
	assert.Equal(t, "1", fields["A"])
	assert.Equal(t, "hello world", fields["B"])
	assert.Equal(t, "100%", fields["C"])
	assert.NotContains(t, fields, "broken")
}

func TestBuildSendRequest(t *testing.T) {
	p := New(Options{})
	at := time.UnixMilli(1700000000000)
	req, err := p.BuildRequest(gateway.OpSend, gateway.Account{Username: "u@gmx.de", Password: "pw"}, &gateway.OutgoingMessage{
		Text:       "Grüße",
		Recipients: []string{"+4917011", "+4917022"},
		Sender:     "+4916000",
		SendAt:     &at,
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/sms-submission-service/gmx/sms/2.0/SmsSubmission", req.Path)
	assert.Equal(t, []string{"+4917011", "+4917022"}, req.Query["destinationNumber"])
	assert.Equal(t, "GMX_ANDROID", req.Query.Get("clientType"))
	assert.Equal(t, "SMS", req.Query.Get("messageType"))
	assert.Equal(t, "+4916000", req.Query.Get("sourceNumber"))
	assert.Equal(t, "1700000000000", req.Query.Get("sendDate"))
	assert.Equal(t, "Grüße", string(req.Body))
	assert.Equal(t, "u@gmx.de", req.BasicUser)
}

func TestBuildRejectsBootstrap(t *testing.T) {
	p := New(Options{})
	assert.False(t, p.NeedsBootstrap(gateway.Account{}))
	_, err := p.BuildRequest(gateway.OpBootstrap, gateway.Account{}, nil)
	require.Error(t, err)
}

func TestUpdateAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "u@gmx.de" || pass != "pw" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.Method != http.MethodGet || r.URL.Path != capabilities || r.URL.Query().Get("clientType") != clientType {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.String())
		}
		io.WriteString(w, "AVAILABLE_FREE_SMS=12&MAX_MONTH_FREE_SMS=50")
	}))
	defer server.Close()

	host := server.Listener.Addr().String()
	client, err := gateway.NewClient(gateway.ClientConfig{Protocol: New(Options{Host: host, Insecure: true})})
	require.NoError(t, err)

	res, err := client.Do(context.Background(), host, gateway.OpUpdate, gateway.Account{Username: "u@gmx.de", Password: "pw"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "12/50", res.Balance)

	_, err = client.Do(context.Background(), host, gateway.OpUpdate, gateway.Account{Username: "u@gmx.de", Password: "wrong"}, nil)
	assert.ErrorIs(t, err, gateway.ErrAuthentication)
}

func TestSendAcceptedAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != "hello" || r.Header.Get("Content-Type") != textType {
			t.Errorf("unexpected body %q (%s)", body, r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, "STATUS=QUEUED")
	}))
	defer server.Close()

	host := server.Listener.Addr().String()
	client, err := gateway.NewClient(gateway.ClientConfig{Protocol: New(Options{Host: host, Insecure: true})})
	require.NoError(t, err)

	res, err := client.Do(context.Background(), host, gateway.OpSend, gateway.Account{Username: "u", Password: "p"},
		&gateway.OutgoingMessage{Text: "hello", Recipients: []string{"+491"}})
	require.NoError(t, err)
	assert.Equal(t, "QUEUED", res.Fields["STATUS"])
	assert.Empty(t, res.Balance)
}
