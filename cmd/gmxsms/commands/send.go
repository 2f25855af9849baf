package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/gmx-sms-connector/internal/gateway"
	"github.com/wolfman30/gmx-sms-connector/internal/transliterate"
)

func bootstrapCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Fetch the customer id from the legacy gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := s.connector(cmd)
			if err != nil {
				return err
			}
			if err := conn.Bootstrap(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "bootstrapped")
			return nil
		},
	}
}

func updateCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Refresh the free SMS balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := s.connector(cmd)
			if err != nil {
				return err
			}
			balance, err := conn.Update(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "free sms: %s\n", balance)
			return nil
		},
	}
}

// send <text...>: deliver a text to the --to recipients.
func sendCmd(s *session) *cobra.Command {
	var (
		to     []string
		sender string
		at     string
	)
	cmd := &cobra.Command{
		Use:   "send <text...>",
		Short: "Send an SMS",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := gateway.OutgoingMessage{
				Text:         strings.Join(args, " "),
				Recipients:   to,
				CustomSender: sender,
			}
			if at != "" {
				sendAt, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				msg.SendAt = &sendAt
			}
			conn, err := s.connector(cmd)
			if err != nil {
				return err
			}
			res, err := conn.Send(cmd.Context(), msg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sent %d part(s) to %s\n", res.Parts, strings.Join(res.Recipients, ", "))
			if res.Balance != "" {
				fmt.Fprintf(out, "free sms: %s\n", res.Balance)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&to, "to", nil, "recipient number, repeatable")
	cmd.Flags().StringVar(&sender, "sender", "", "custom sender name (max 10 characters)")
	cmd.Flags().StringVar(&at, "at", "", "scheduled delivery time, RFC 3339")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func lengthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "length <text...>",
		Short: "Show how many SMS parts a text occupies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l := transliterate.Default().Measure(strings.Join(args, " "))
			fmt.Fprintf(cmd.OutOrStdout(), "%d part(s), %d %s units, %d left\n", l.Parts, l.Units, l.Encoding, l.Remaining)
			return nil
		},
	}
}
