package bootstrap

import (
	"fmt"
	"time"

	appconfig "github.com/wolfman30/gmx-sms-connector/internal/config"
	"github.com/wolfman30/gmx-sms-connector/internal/connector"
	"github.com/wolfman30/gmx-sms-connector/internal/gateway"
	"github.com/wolfman30/gmx-sms-connector/internal/gateway/failover"
	"github.com/wolfman30/gmx-sms-connector/internal/gateway/rest"
	"github.com/wolfman30/gmx-sms-connector/internal/gateway/wr"
	"github.com/wolfman30/gmx-sms-connector/internal/observability/metrics"
	"github.com/wolfman30/gmx-sms-connector/internal/prefs"
	"github.com/wolfman30/gmx-sms-connector/internal/transliterate"
	"github.com/wolfman30/gmx-sms-connector/pkg/logging"
)

// BuildProtocol selects the legacy WR or the REST gateway generation.
func BuildProtocol(cfg *appconfig.Config) (gateway.Protocol, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	switch cfg.Protocol {
	case "", "legacy", "wr":
		loc := time.Local
		if cfg.SendTimezone != "" {
			l, err := time.LoadLocation(cfg.SendTimezone)
			if err != nil {
				return nil, fmt.Errorf("bootstrap: send timezone: %w", err)
			}
			loc = l
		}
		return wr.New(wr.Options{
			Hosts:    cfg.GatewayHosts,
			Table:    transliterate.Default(),
			Location: loc,
		}), nil
	case "rest":
		return rest.New(rest.Options{Host: cfg.RESTHost}), nil
	}
	return nil, fmt.Errorf("bootstrap: unknown gateway protocol %q", cfg.Protocol)
}

// BuildConnector wires the gateway client, the failover driver and the
// connector for the configured protocol. gm may be nil.
func BuildConnector(cfg *appconfig.Config, store prefs.Store, gm *metrics.GatewayMetrics, logger *logging.Logger) (*connector.Connector, error) {
	if logger == nil {
		logger = logging.Default()
	}
	protocol, err := BuildProtocol(cfg)
	if err != nil {
		return nil, err
	}
	clientCfg := gateway.ClientConfig{
		Protocol:       protocol,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		Logger:         logger.Component("gateway"),
	}
	if gm != nil {
		clientCfg.Observer = gm
	}
	client, err := gateway.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: gateway client: %w", err)
	}
	driver, err := failover.New(protocol.Hosts(),
		failover.WithBackoff(cfg.RetryBackoff),
		failover.WithLogger(logger.Component("failover")),
		failover.WithRetryHook(func(failed, _ string, _ error) {
			gm.ObserveFailover(failed)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: failover driver: %w", err)
	}
	conn, err := connector.New(connector.Config{
		DefaultSender: cfg.DefaultSender,
		DefaultPrefix: cfg.DefaultPrefix,
		Store:         store,
		Client:        client,
		Driver:        driver,
		Table:         transliterate.Default(),
		Logger:        logger.Component("connector"),
		Metrics:       gm,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	logger.Info("gmx connector configured",
		"protocol", protocol.Name(),
		"hosts", len(protocol.Hosts()),
		"account", cfg.Account,
	)
	return conn, nil
}
