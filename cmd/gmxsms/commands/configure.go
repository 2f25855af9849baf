package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// configure edits the stored account. Credentials are only changed when
// given; the connector is enabled unless --enabled=false is passed.
func configureCmd(s *session) *cobra.Command {
	var (
		username   string
		password   string
		enabled    bool
		resetState bool
	)
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Set credentials and enable or disable the connector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.prefs(cmd)
			if err != nil {
				return err
			}
			p, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("username") {
				if strings.TrimSpace(username) != strings.TrimSpace(p.Username) {
					p.CustomerID = ""
				}
				p.Username = strings.TrimSpace(username)
			}
			if flags.Changed("password") {
				p.Password = password
			}
			p.Enabled = enabled
			if resetState {
				p.CustomerID = ""
				p.HostCursor = 0
			}
			if err := store.Save(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved (enabled=%t, username=%q, credentials=%t)\n",
				p.Enabled, p.Username, p.HasCredentials())
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "GMX account name or e-mail")
	cmd.Flags().StringVar(&password, "password", "", "GMX password")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "enable the connector")
	cmd.Flags().BoolVar(&resetState, "reset", false, "forget the customer id and host cursor")
	return cmd
}
