package commands

import (
	"github.com/spf13/cobra"

	"github.com/wolfman30/gmx-sms-connector/internal/app/bootstrap"
	"github.com/wolfman30/gmx-sms-connector/internal/config"
	"github.com/wolfman30/gmx-sms-connector/internal/connector"
	"github.com/wolfman30/gmx-sms-connector/internal/prefs"
	"github.com/wolfman30/gmx-sms-connector/pkg/logging"
)

// session is the state shared by the subcommands of one invocation.
type session struct {
	cfg     *config.Config
	logger  *logging.Logger
	store   prefs.Store
	conn    *connector.Connector
	cleanup func()

	prefsFile string
	backend   string
	account   string
	protocol  string
	hosts     []string
	logLevel  string
}

func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the gmxsms command tree. Configuration comes from the
// environment and is overridden by the persistent flags.
func NewRootCmd() *cobra.Command {
	s := &session{cleanup: func() {}}
	root := &cobra.Command{
		Use:          "gmxsms",
		Short:        "Send SMS through the GMX SMS gateway",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.open(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			s.cleanup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&s.prefsFile, "prefs", "", "preferences file (default ~/.gmxsms/prefs.yaml)")
	flags.StringVar(&s.backend, "backend", "", "preference backend: file, redis, postgres or memory")
	flags.StringVar(&s.account, "account", "", "account name inside the preference store")
	flags.StringVar(&s.protocol, "protocol", "", "gateway protocol: legacy or rest")
	flags.StringSliceVar(&s.hosts, "hosts", nil, "legacy gateway hosts, in failover order")
	flags.StringVar(&s.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(statusCmd(s), configureCmd(s), bootstrapCmd(s), updateCmd(s), sendCmd(s), lengthCmd())
	return root
}

func (s *session) open(cmd *cobra.Command) error {
	cfg := config.Load()
	if s.prefsFile != "" {
		cfg.PrefsFile = s.prefsFile
	}
	if s.backend != "" {
		cfg.PrefsBackend = s.backend
	}
	if s.account != "" {
		cfg.Account = s.account
	}
	if s.protocol != "" {
		cfg.Protocol = s.protocol
	}
	if len(s.hosts) > 0 {
		cfg.GatewayHosts = s.hosts
	}
	level := cfg.LogLevel
	if s.logLevel != "" {
		level = s.logLevel
	} else if level == "info" {
		level = "warn"
	}
	s.cfg = cfg
	s.logger = logging.NewText(cmd.ErrOrStderr(), level)
	return nil
}

// connector opens the preference store and wires the connector on first use.
func (s *session) connector(cmd *cobra.Command) (*connector.Connector, error) {
	if s.conn != nil {
		return s.conn, nil
	}
	store, err := s.prefs(cmd)
	if err != nil {
		return nil, err
	}
	conn, err := bootstrap.BuildConnector(s.cfg, store, nil, s.logger)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return conn, nil
}

func (s *session) prefs(cmd *cobra.Command) (prefs.Store, error) {
	if s.store != nil {
		return s.store, nil
	}
	store, cleanup, err := bootstrap.BuildPreferenceStore(cmd.Context(), s.cfg, s.logger)
	if err != nil {
		return nil, err
	}
	s.store = store
	s.cleanup = cleanup
	return store, nil
}
