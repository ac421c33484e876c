package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/onnwee/vod-danmaku/crypto"
)

func hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <uuid> <password>",
		Short: "Derive the access hash stored for a restricted video",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[1] == "" {
				return fmt.Errorf("password must not be empty")
			}
			fmt.Fprintln(cmd.OutOrStdout(), crypto.RestrictedHash(strings.ToLower(args[0]), args[1]))
			return nil
		},
	}
}

func genIDCmd() *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "gen-id",
		Short: "Generate video uuids (time-ordered, 32 hex digits)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for range max(n, 1) {
				id, err := newVideoID()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 1, "number of ids to print")
	return cmd
}

func newVideoID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}
