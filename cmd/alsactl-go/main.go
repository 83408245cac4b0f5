// Command alsactl-go plays, captures and inspects PCM devices and mixers, including the
// virtual devices served by plugins.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/soundplug/alsa"
	_ "github.com/soundplug/alsa/plugins/loopback"
)

var (
	// Global flags
	verbose  bool
	cardDefs string

	logger = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "alsactl-go",
	Short: "Play, capture and inspect ALSA PCM devices and mixers",
	Long: `alsactl-go talks to ALSA sound cards without alsa-lib.

Cards listed in a card definition directory can be served by registered
plugins instead of the kernel; every subcommand works on both.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.SetOutput(os.Stderr)
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		}

		alsa.SetLogger(logger)

		if cardDefs != "" {
			info, err := os.Stat(cardDefs)
			if err != nil {
				return fmt.Errorf("card definitions: %w", err)
			}

			if !info.IsDir() {
				return fmt.Errorf("card definitions: %s is not a directory", cardDefs)
			}

			alsa.SetCardDefinitions(alsa.NewFileCardDefinitions(cardDefs))
			logger.WithField("dir", cardDefs).Debug("Using card definitions")
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cardDefs, "card-defs", "",
		fmt.Sprintf("Card definition directory (default $%s or %s)", alsa.CardDefinitionsEnv, alsa.DefaultCardDefinitionsDir))

	rootCmd.AddCommand(playCmd, capCmd, mixCmd, pcminfoCmd, cardsCmd, pluginsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
