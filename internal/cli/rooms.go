package cli

import (
	"github.com/spf13/cobra"
)

func newRoomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List live rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result RoomList
			if err := client.Get(cmd.Context(), "/api/v1/rooms", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}
