package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundplug/alsa"
)

var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "List kernel sound cards and defined plugin cards",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cards, err := alsa.EnumerateCards()
		if err != nil {
			return err
		}

		if len(cards) == 0 {
			fmt.Println("No sound cards found.")

			return nil
		}

		for _, c := range cards {
			fmt.Print(c)
		}

		return nil
	},
}

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List registered PCM and mixer plugins",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("PCM plugins:")
		for _, name := range alsa.PcmPlugins() {
			fmt.Printf("  %s\n", name)
		}

		fmt.Println("Mixer plugins:")
		for _, name := range alsa.MixerPlugins() {
			fmt.Printf("  %s\n", name)
		}
	},
}
