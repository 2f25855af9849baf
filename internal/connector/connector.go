// Package connector runs the bootstrap, update and send operations of the
// GMX SMS connector on top of the gateway client and the preference store.
package connector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/gmx-sms-connector/internal/gateway"
	"github.com/wolfman30/gmx-sms-connector/internal/gateway/failover"
	"github.com/wolfman30/gmx-sms-connector/internal/observability/metrics"
	"github.com/wolfman30/gmx-sms-connector/internal/prefs"
	"github.com/wolfman30/gmx-sms-connector/internal/transliterate"
	"github.com/wolfman30/gmx-sms-connector/pkg/logging"
)

var tracer = otel.Tracer("gmx-sms-connector.internal.connector")

var (
	// ErrNotReady is returned when the connector is disabled or lacks credentials.
	ErrNotReady = errors.New("connector: not ready")
	// ErrInvalidMessage is returned for messages rejected before any gateway call.
	ErrInvalidMessage = errors.New("connector: invalid message")
)

// Status is the readiness of the connector.
type Status string

const (
	StatusInactive Status = "inactive"
	StatusEnabled  Status = "enabled"
	StatusReady    Status = "ready"
)

const (
	defaultName            = "GMX"
	defaultMaxCustomSender = 10
)

// Config wires a Connector.
type Config struct {
	Name            string
	DefaultSender   string
	DefaultPrefix   string
	MaxCustomSender int

	Store   prefs.Store
	Client  *gateway.Client
	Driver  *failover.Driver
	Table   *transliterate.Table
	Logger  *logging.Logger
	Metrics *metrics.GatewayMetrics
}

// Info describes the connector for status displays.
type Info struct {
	Name            string `json:"name"`
	Protocol        string `json:"protocol"`
	Status          Status `json:"status"`
	Balance         string `json:"balance,omitempty"`
	Bootstrapped    bool   `json:"bootstrapped"`
	HostCursor      int    `json:"host_cursor"`
	Hosts           int    `json:"hosts"`
	MaxCustomSender int    `json:"max_custom_sender"`
}

// SendResult reports a delivered message.
type SendResult struct {
	Recipients []string `json:"recipients"`
	Sender     string   `json:"sender,omitempty"`
	Parts      int      `json:"parts"`
	Balance    string   `json:"balance,omitempty"`
}

// Connector serializes gateway operations of one account.
type Connector struct {
	mu      sync.Mutex
	name    string
	sender  string
	prefix  string
	maxCS   int
	store   prefs.Store
	client  *gateway.Client
	driver  *failover.Driver
	table   *transliterate.Table
	logger  *logging.Logger
	metrics *metrics.GatewayMetrics
	balance string
}

// New validates cfg and creates a Connector.
func New(cfg Config) (*Connector, error) {
	if cfg.Store == nil {
		return nil, errors.New("connector: preference store required")
	}
	if cfg.Client == nil {
		return nil, errors.New("connector: gateway client required")
	}
	driver := cfg.Driver
	if driver == nil {
		d, err := failover.New(cfg.Client.Protocol().Hosts(), failover.WithLogger(cfg.Logger))
		if err != nil {
			return nil, fmt.Errorf("connector: %w", err)
		}
		driver = d
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	table := cfg.Table
	if table == nil {
		table = transliterate.Default()
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = defaultName
	}
	maxCS := cfg.MaxCustomSender
	if maxCS <= 0 {
		maxCS = defaultMaxCustomSender
	}
	return &Connector{
		name:    name,
		sender:  strings.TrimSpace(cfg.DefaultSender),
		prefix:  strings.TrimSpace(cfg.DefaultPrefix),
		maxCS:   maxCS,
		store:   cfg.Store,
		client:  cfg.Client,
		driver:  driver,
		table:   table,
		logger:  logger,
		metrics: cfg.Metrics,
	}, nil
}

// Status reads the preferences and reports readiness.
func (c *Connector) Status(ctx context.Context) (Info, error) {
	p, err := c.store.Load(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("connector: load preferences: %w", err)
	}
	c.mu.Lock()
	balance := c.balance
	c.mu.Unlock()
	return Info{
		Name:            c.name,
		Protocol:        c.client.Protocol().Name(),
		Status:          statusOf(p),
		Balance:         balance,
		Bootstrapped:    !c.client.Protocol().NeedsBootstrap(p.Account()),
		HostCursor:      c.driver.Normalize(p.HostCursor),
		Hosts:           len(c.driver.Hosts()),
		MaxCustomSender: c.maxCS,
	}, nil
}

func statusOf(p prefs.Preferences) Status {
	switch {
	case !p.Enabled:
		return StatusInactive
	case !p.HasCredentials():
		return StatusEnabled
	default:
		return StatusReady
	}
}

// Measure reports how many parts text occupies after transliteration.
func (c *Connector) Measure(text string) transliterate.Length {
	return c.table.Measure(text)
}

// Bootstrap fetches the customer id when the protocol needs one.
func (c *Connector) Bootstrap(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "connector.bootstrap")
	defer span.End()
	defer func() { c.finish(span, gateway.OpBootstrap, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.load(ctx)
	if err != nil {
		return err
	}
	return c.bootstrapIfNeeded(ctx, &p)
}

// Update bootstraps if needed and returns the remaining balance.
func (c *Connector) Update(ctx context.Context) (balance string, err error) {
	ctx, span := tracer.Start(ctx, "connector.update")
	defer span.End()
	defer func() { c.finish(span, gateway.OpUpdate, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.load(ctx)
	if err != nil {
		return "", err
	}
	if err := c.bootstrapIfNeeded(ctx, &p); err != nil {
		return "", err
	}
	result, err := c.dispatch(ctx, &p, gateway.OpUpdate, nil)
	if err != nil {
		return "", err
	}
	c.remember(result.Balance)
	return c.balance, nil
}

// Send validates msg, normalizes its recipients and delivers it.
func (c *Connector) Send(ctx context.Context, msg gateway.OutgoingMessage) (res *SendResult, err error) {
	ctx, span := tracer.Start(ctx, "connector.send")
	defer span.End()
	defer func() { c.finish(span, gateway.OpSend, err) }()

	prepared, err := c.prepare(msg)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("sms.recipients", len(prepared.Recipients)))

	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.bootstrapIfNeeded(ctx, &p); err != nil {
		return nil, err
	}
	result, err := c.dispatch(ctx, &p, gateway.OpSend, &prepared)
	if err != nil {
		return nil, err
	}
	c.remember(result.Balance)
	c.logger.Info("sms sent",
		"message_id", prepared.ID,
		"recipients", len(prepared.Recipients),
		"scheduled", prepared.SendAt != nil,
	)
	return &SendResult{
		Recipients: prepared.Recipients,
		Sender:     prepared.Sender,
		Parts:      c.table.Measure(prepared.Text).Parts,
		Balance:    result.Balance,
	}, nil
}

func (c *Connector) prepare(msg gateway.OutgoingMessage) (gateway.OutgoingMessage, error) {
	if strings.TrimSpace(msg.Text) == "" {
		return msg, fmt.Errorf("%w: text is empty", ErrInvalidMessage)
	}
	custom := strings.TrimSpace(msg.CustomSender)
	if utf8.RuneCountInString(custom) > c.maxCS {
		return msg, fmt.Errorf("%w: custom sender longer than %d characters", ErrInvalidMessage, c.maxCS)
	}
	recipients := NormalizeRecipients(msg.Recipients, c.prefix)
	if len(recipients) == 0 {
		return msg, fmt.Errorf("%w: no recipients", ErrInvalidMessage)
	}
	msg.Recipients = recipients
	msg.CustomSender = custom
	msg.Sender = custom
	if msg.Sender == "" {
		msg.Sender = c.sender
	}
	return msg, nil
}

func (c *Connector) load(ctx context.Context) (prefs.Preferences, error) {
	p, err := c.store.Load(ctx)
	if err != nil {
		return p, fmt.Errorf("connector: load preferences: %w", err)
	}
	switch statusOf(p) {
	case StatusInactive:
		return p, fmt.Errorf("%w: connector disabled", ErrNotReady)
	case StatusEnabled:
		return p, fmt.Errorf("%w: username or password missing", ErrNotReady)
	}
	return p, nil
}

func (c *Connector) bootstrapIfNeeded(ctx context.Context, p *prefs.Preferences) error {
	if !c.client.Protocol().NeedsBootstrap(p.Account()) {
		return nil
	}
	if _, err := c.dispatch(ctx, p, gateway.OpBootstrap, nil); err != nil {
		return err
	}
	if c.client.Protocol().NeedsBootstrap(p.Account()) {
		return gateway.MalformedError("bootstrap returned no customer id", "")
	}
	return nil
}

// dispatch runs op across the host rotation and persists the resulting
// cursor and customer id.
func (c *Connector) dispatch(ctx context.Context, p *prefs.Preferences, op gateway.Operation, msg *gateway.OutgoingMessage) (*gateway.Result, error) {
	acct := p.Account()
	var result *gateway.Result
	cursor, err := c.driver.Run(ctx, p.HostCursor, func(ctx context.Context, host string) error {
		res, err := c.client.Do(ctx, host, op, acct, msg)
		if err != nil {
			return err
		}
		result = res
		return nil
	})

	changed := cursor != p.HostCursor
	p.HostCursor = cursor
	if result != nil && result.CustomerID != "" && result.CustomerID != p.CustomerID {
		p.CustomerID = result.CustomerID
		changed = true
	}
	if changed {
		if saveErr := c.store.Save(context.WithoutCancel(ctx), *p); saveErr != nil {
			c.logger.Error("failed to persist connector state", "operation", op, "error", saveErr)
			if err == nil {
				err = fmt.Errorf("connector: save preferences: %w", saveErr)
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Connector) remember(balance string) {
	if balance != "" {
		c.balance = balance
	}
}

func (c *Connector) finish(span trace.Span, op gateway.Operation, err error) {
	c.metrics.ObserveOperation(op, err)
	if err == nil {
		return
	}
	span.RecordError(err)
	c.logger.Warn("connector operation failed", "operation", op, "reason", gateway.Reason(err), "error", err)
}
