package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

type Config struct {
	app *App
}

func NewConfigCommand(app *App) *cobra.Command {
	config := &Config{app: app}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Change the launcher configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set-memory MIB",
			Short: "Set the maximum memory of the game in MiB",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				mib, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid memory size: %s", args[0])
				}
				return config.SetMemory(cmd, mib)
			},
		},
		&cobra.Command{
			Use:       "option ID on|off",
			Short:     "Select or unselect a modpack optional",
			Args:      cobra.ExactArgs(2),
			ValidArgs: []string{"on", "off"},
			RunE: func(cmd *cobra.Command, args []string) error {
				var selected bool
				switch args[1] {
				case "on":
					selected = true
				case "off":
				default:
					return fmt.Errorf("expected on or off, got %s", args[1])
				}
				return config.ToggleOption(cmd, args[0], selected)
			},
		},
	)

	return cmd
}

// load opens every store the config operations validate against.
func (c *Config) load(cmd *cobra.Command) error {
	ctx := cmd.Context()
	state := c.app.state

	_, sub, err := state.Config.Load(ctx)
	if err != nil {
		return err
	}
	state.Track(sub)

	_, sub, err = state.SystemMemory.Load(ctx)
	if err != nil {
		return err
	}
	state.Track(sub)

	_, sub, err = state.ModpackInfo.Load(ctx)
	if err != nil {
		return err
	}
	state.Track(sub)

	return nil
}

func (c *Config) SetMemory(cmd *cobra.Command, mib int) error {
	if err := c.load(cmd); err != nil {
		return err
	}
	if err := c.app.state.Config.SetMemoryMax(cmd.Context(), mib); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Maximum memory set to %d MiB\n", mib)
	return nil
}

func (c *Config) ToggleOption(cmd *cobra.Command, id string, selected bool) error {
	if err := c.load(cmd); err != nil {
		return err
	}
	if err := c.app.state.Config.ToggleOption(cmd.Context(), id, selected); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Selected options: %v\n", c.app.state.Config.Get().SelectedOptions)
	return nil
}
