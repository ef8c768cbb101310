package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Steinwealth/UltimaBot/internal/config"
	"github.com/Steinwealth/UltimaBot/internal/models"
	"github.com/Steinwealth/UltimaBot/internal/policy"
)

func newModeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Show or change the trading mode",
		Long:  "Show the active trading mode and the settings of every mode.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			active := app.Modes.Active()

			modes := make([]models.ModeSettings, 0, 3)
			for _, name := range policy.ModeNames() {
				s, err := policy.LookupMode(name)
				if err != nil {
					return err
				}
				modes = append(modes, s)
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"active": active.Name,
					"modes":  modes,
				})
			}

			table := NewTable(output, "", "Mode", "Confidence Floor", "Max Scaling", "Trail Buffer", "Risk")
			for _, s := range modes {
				marker := ""
				if s.Name == active.Name {
					marker = output.ColoredString(ColorGreen, "*")
				}
				table.AddRow(marker, s.Name,
					FormatConfidence(s.ConfidenceFloor),
					fmt.Sprintf("%.1fx", s.MaxScaling),
					fmt.Sprintf("%.1f%%", s.TrailingSLBuffer*100),
					s.RiskTolerance)
			}
			table.Render()
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <mode>",
		Short: "Set the trading mode in config.toml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			name := canonicalMode(args[0])
			if err := app.Modes.SetMode(name); err != nil {
				return err
			}
			if err := config.SetValue(app.ConfigDir, "engine.mode", name); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"mode": name})
			}
			output.Success("Trading mode set to %s", name)
			return nil
		},
	})

	return cmd
}

// canonicalMode matches name case-insensitively against the known modes.
func canonicalMode(name string) string {
	for _, m := range policy.ModeNames() {
		if strings.EqualFold(m, name) {
			return m
		}
	}
	return name
}
