package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type RPC struct {
	app    *App
	Method string
}

func NewRPCCommand(app *App) *cobra.Command {
	rpc := &RPC{app: app}

	cmd := &cobra.Command{
		Use:   "rpc",
		Short: "Send a raw request to the launcher host, reading params from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rpc.Run(cmd)
		},
	}

	flags := cmd.Flags()

	flags.StringVarP(&rpc.Method, "method", "m", "", "Method to call")
	cmd.MarkFlagRequired("method")

	return cmd
}

func (r *RPC) Run(cmd *cobra.Command) error {
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}

	var params any
	if len(data) > 0 {
		params = json.RawMessage(data)
	}

	var resp json.RawMessage
	if err := r.app.host.Invoke(cmd.Context(), r.Method, params, &resp); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(resp))

	return nil
}
