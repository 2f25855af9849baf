package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statusCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connector readiness and host cursor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := s.connector(cmd)
			if err != nil {
				return err
			}
			info, err := conn.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "connector:    %s (%s)\n", info.Name, info.Protocol)
			fmt.Fprintf(out, "status:       %s\n", info.Status)
			fmt.Fprintf(out, "bootstrapped: %t\n", info.Bootstrapped)
			fmt.Fprintf(out, "host:         %d/%d\n", info.HostCursor+1, info.Hosts)
			if info.Balance != "" {
				fmt.Fprintf(out, "free sms:     %s\n", info.Balance)
			}
			return nil
		},
	}
}
