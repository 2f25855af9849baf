package connector

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/gmx-sms-connector/internal/gateway"
	"github.com/wolfman30/gmx-sms-connector/internal/gateway/failover"
	"github.com/wolfman30/gmx-sms-connector/internal/gateway/rest"
	"github.com/wolfman30/gmx-sms-connector/internal/gateway/wr"
	"github.com/wolfman30/gmx-sms-connector/internal/prefs"
	"github.com/wolfman30/gmx-sms-connector/pkg/logging"
)

var packetName = regexp.MustCompile(`NAME="([A-Z_]+)"`)

type legacyGateway struct {
	mu      sync.Mutex
	packets []string
	bodies  []string
	respond func(name, body string) string
}

func (g *legacyGateway) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body, err := wr.DecodeBody(raw)
		if err != nil {
			t.Errorf("decode body: %v", err)
		}
		m := packetName.FindStringSubmatch(body)
		if m == nil {
			t.Errorf("no packet name in %q", body)
			return
		}
		g.mu.Lock()
		g.packets = append(g.packets, m[1])
		g.bodies = append(g.bodies, body)
		g.mu.Unlock()
		io.WriteString(w, g.respond(m[1], body))
	})
}

func (g *legacyGateway) seen() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.packets...)
}

func startServer(t *testing.T, h http.Handler) string {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return server.Listener.Addr().String()
}

// stalledHost never answers within the client read timeout.
func stalledHost(t *testing.T) string {
	t.Helper()
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })
	return server.Listener.Addr().String()
}

func quietLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, "error")
}

func newConnector(t *testing.T, proto gateway.Protocol, store prefs.Store) *Connector {
	t.Helper()
	client, err := gateway.NewClient(gateway.ClientConfig{
		Protocol:   proto,
		HTTPClient: gateway.NewHTTPClient(time.Second, 100*time.Millisecond),
		Logger:     quietLogger(),
	})
	require.NoError(t, err)
	driver, err := failover.New(proto.Hosts(), failover.WithBackoff(0), failover.WithLogger(quietLogger()))
	require.NoError(t, err)
	c, err := New(Config{
		DefaultSender: "Me",
		DefaultPrefix: "+49",
		Store:         store,
		Client:        client,
		Driver:        driver,
		Logger:        quietLogger(),
	})
	require.NoError(t, err)
	return c
}

func readyPrefs() prefs.Preferences {
	return prefs.Preferences{Enabled: true, Username: "user@gmx.de", Password: "secret"}
}

func TestSendBootstrapsAndPersistsCustomerID(t *testing.T) {
	gw := &legacyGateway{respond: func(name, body string) string {
		if name == "GET_CUSTOMER" {
			return `<WR>rslt=0\pcustomer_id=4711\p</WR>`
		}
		return `<WR>rslt=0\pfree_rem_month=6\pfree_max_month=50\p</WR>`
	}}
	host := startServer(t, gw.handler(t))
	store := prefs.NewMemoryStore(readyPrefs())
	c := newConnector(t, wr.New(wr.Options{Hosts: []string{host}}), store)

	res, err := c.Send(context.Background(), gateway.OutgoingMessage{
		Text:       "Cześć",
		Recipients: []string{"Anna <0170 1234567>", "x", "+4915112345"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"+491701234567", "+4915112345"}, res.Recipients)
	assert.Equal(t, "6/50", res.Balance)
	assert.Equal(t, "Me", res.Sender)
	assert.Equal(t, []string{"GET_CUSTOMER", "SEND_SMS"}, gw.seen())

	send := gw.bodies[1]
	assert.Contains(t, send, `customer_id=4711\p`)
	assert.Contains(t, send, `sms_text=Czesc\p`)
	assert.Contains(t, send, `sms_sender=Me\p`)
	assert.Contains(t, send, `ROWS="2"`)

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4711", stored.CustomerID)

	// the customer id is known now, so no second bootstrap
	_, err = c.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"GET_CUSTOMER", "SEND_SMS", "GET_SMS_CREDITS"}, gw.seen())
}

func TestUpdateRotatesCustomerID(t *testing.T) {
	gw := &legacyGateway{respond: func(name, body string) string {
		return `rslt=0\pcustomer_id=5000\pfree_rem_month=3\p`
	}}
	host := startServer(t, gw.handler(t))
	p := readyPrefs()
	p.CustomerID = "4711"
	store := prefs.NewMemoryStore(p)
	c := newConnector(t, wr.New(wr.Options{Hosts: []string{host}}), store)

	balance, err := c.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3", balance)
	stored, _ := store.Load(context.Background())
	assert.Equal(t, "5000", stored.CustomerID)

	info, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3", info.Balance)
}

func TestUpdateFailsOverOnTimeout(t *testing.T) {
	gw := &legacyGateway{respond: func(name, body string) string {
		return `rslt=0\pfree_rem_month=9\p`
	}}
	hosts := []string{stalledHost(t), stalledHost(t), startServer(t, gw.handler(t)), stalledHost(t)}
	p := readyPrefs()
	p.CustomerID = "4711"
	store := prefs.NewMemoryStore(p)
	c := newConnector(t, wr.New(wr.Options{Hosts: hosts}), store)

	balance, err := c.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "9", balance)

	stored, _ := store.Load(context.Background())
	assert.Equal(t, 2, stored.HostCursor, "the host that answered becomes the new cursor")
}

func TestUpdateAllHostsTimeOut(t *testing.T) {
	hosts := []string{stalledHost(t), stalledHost(t)}
	p := readyPrefs()
	p.CustomerID = "4711"
	p.HostCursor = 1
	store := prefs.NewMemoryStore(p)
	c := newConnector(t, wr.New(wr.Options{Hosts: hosts}), store)

	_, err := c.Update(context.Background())
	require.Error(t, err)
	assert.True(t, gateway.IsTimeout(err))
	stored, _ := store.Load(context.Background())
	assert.Equal(t, 1, stored.HostCursor)
}

func TestAuthenticationErrorAdvancesCursor(t *testing.T) {
	gw := &legacyGateway{respond: func(name, body string) string {
		return `rslt=11\p`
	}}
	hosts := []string{startServer(t, gw.handler(t)), startServer(t, gw.handler(t))}
	p := readyPrefs()
	p.CustomerID = "4711"
	store := prefs.NewMemoryStore(p)
	c := newConnector(t, wr.New(wr.Options{Hosts: hosts}), store)

	_, err := c.Update(context.Background())
	require.ErrorIs(t, err, gateway.ErrAuthentication)
	assert.Equal(t, "wrong customer id or password", gateway.Reason(err))
	assert.Len(t, gw.seen(), 1, "authentication failures are not retried")

	stored, _ := store.Load(context.Background())
	assert.Equal(t, 1, stored.HostCursor)
}

func TestSendValidation(t *testing.T) {
	gw := &legacyGateway{respond: func(name, body string) string { return `rslt=0\p` }}
	host := startServer(t, gw.handler(t))
	c := newConnector(t, wr.New(wr.Options{Hosts: []string{host}}), prefs.NewMemoryStore(readyPrefs()))

	tests := []gateway.OutgoingMessage{
		{Text: "", Recipients: []string{"+491"}},
		{Text: "hi", Recipients: []string{"", "1"}},
		{Text: "hi", Recipients: []string{"+4917011"}, CustomSender: "ElevenChars"},
	}
	for _, msg := range tests {
		_, err := c.Send(context.Background(), msg)
		assert.ErrorIs(t, err, ErrInvalidMessage)
	}
	assert.Empty(t, gw.seen())
}

func TestCustomSenderAtLimit(t *testing.T) {
	gw := &legacyGateway{respond: func(name, body string) string { return `rslt=0\p` }}
	host := startServer(t, gw.handler(t))
	p := readyPrefs()
	p.CustomerID = "1"
	c := newConnector(t, wr.New(wr.Options{Hosts: []string{host}}), prefs.NewMemoryStore(p))

	res, err := c.Send(context.Background(), gateway.OutgoingMessage{Text: "hi", Recipients: []string{"+4917011"}, CustomSender: "TenLetters"})
	require.NoError(t, err)
	assert.Equal(t, "TenLetters", res.Sender)
	assert.Equal(t, 1, res.Parts)
}

func TestNotReady(t *testing.T) {
	host := stalledHost(t)
	proto := wr.New(wr.Options{Hosts: []string{host}})

	c := newConnector(t, proto, prefs.NewMemoryStore(prefs.Preferences{Username: "u", Password: "p"}))
	_, err := c.Update(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	info, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, info.Status)

	c = newConnector(t, proto, prefs.NewMemoryStore(prefs.Preferences{Enabled: true}))
	err = c.Bootstrap(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	info, _ = c.Status(context.Background())
	assert.Equal(t, StatusEnabled, info.Status)

	c = newConnector(t, proto, prefs.NewMemoryStore(readyPrefs()))
	info, _ = c.Status(context.Background())
	assert.Equal(t, StatusReady, info.Status)
	assert.False(t, info.Bootstrapped)
	assert.Equal(t, "legacy", info.Protocol)
}

func TestBootstrapWithoutCustomerID(t *testing.T) {
	gw := &legacyGateway{respond: func(name, body string) string { return `rslt=0\p` }}
	host := startServer(t, gw.handler(t))
	c := newConnector(t, wr.New(wr.Options{Hosts: []string{host}}), prefs.NewMemoryStore(readyPrefs()))

	err := c.Bootstrap(context.Background())
	assert.ErrorIs(t, err, gateway.ErrMalformedResponse)
}

func TestRESTConnectorSkipsBootstrap(t *testing.T) {
	var paths []string
	var mu sync.Mutex
	host := startServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if strings.HasSuffix(r.URL.Path, "SmsCapabilities") {
			io.WriteString(w, "AVAILABLE_FREE_SMS=7&MAX_MONTH_FREE_SMS=50")
			return
		}
		if got := r.URL.Query()["destinationNumber"]; len(got) != 1 || got[0] != "+491701234567" {
			t.Errorf("unexpected destinations %v", got)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	store := prefs.NewMemoryStore(readyPrefs())
	c := newConnector(t, rest.New(rest.Options{Host: host, Insecure: true}), store)

	require.NoError(t, c.Bootstrap(context.Background()))
	balance, err := c.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "7/50", balance)

	_, err = c.Send(context.Background(), gateway.OutgoingMessage{Text: "hallo", Recipients: []string{"01701234567"}})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, paths, 2)
	stored, _ := store.Load(context.Background())
	assert.Empty(t, stored.CustomerID)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	_, err = New(Config{Store: prefs.NewMemoryStore(prefs.Preferences{})})
	require.Error(t, err)

	client, err := gateway.NewClient(gateway.ClientConfig{Protocol: wr.New(wr.Options{})})
	require.NoError(t, err)
	c, err := New(Config{Store: prefs.NewMemoryStore(prefs.Preferences{}), Client: client})
	require.NoError(t, err)
	info, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, info.Hosts)
	assert.Equal(t, 10, info.MaxCustomSender)
	assert.Equal(t, "GMX", info.Name)
}

func TestMeasureUsesTable(t *testing.T) {
	client, err := gateway.NewClient(gateway.ClientConfig{Protocol: wr.New(wr.Options{})})
	require.NoError(t, err)
	c, err := New(Config{Store: prefs.NewMemoryStore(prefs.Preferences{}), Client: client})
	require.NoError(t, err)
	l := c.Measure("Łódź")
	assert.Equal(t, "Lodz", l.Text)
	assert.Equal(t, 1, l.Parts)
}

type failingStore struct{ prefs.Preferences }

func (s *failingStore) Load(ctx context.Context) (prefs.Preferences, error) { return s.Preferences, nil }
func (s *failingStore) Save(ctx context.Context, p prefs.Preferences) error {
	return errors.New("disk full")
}

func TestSaveFailureSurfaces(t *testing.T) {
	gw := &legacyGateway{respond: func(name, body string) string { return `rslt=0\pcustomer_id=1\p` }}
	host := startServer(t, gw.handler(t))
	c := newConnector(t, wr.New(wr.Options{Hosts: []string{host}}), &failingStore{readyPrefs()})

	err := c.Bootstrap(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
