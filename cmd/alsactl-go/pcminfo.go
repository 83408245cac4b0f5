package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soundplug/alsa"
)

var pcminfoOpts struct {
	card   uint
	device uint
	stream string
}

var pcminfoCmd = &cobra.Command{
	Use:   "pcminfo",
	Short: "Display the capabilities of a PCM device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var flags alsa.PcmFlag
		switch strings.ToLower(pcminfoOpts.stream) {
		case "playback":
			flags = alsa.PCM_OUT
		case "capture":
			flags = alsa.PCM_IN
		default:
			return fmt.Errorf("invalid stream direction '%s', must be 'playback' or 'capture'", pcminfoOpts.stream)
		}

		fmt.Printf("PCM card %d, device %d, stream %s:\n", pcminfoOpts.card, pcminfoOpts.device, pcminfoOpts.stream)

		// Refined parameters work for kernel devices and for plugins.
		params, err := alsa.PcmParamsGetRefined(pcminfoOpts.card, pcminfoOpts.device, flags)
		if err != nil {
			return fmt.Errorf("getting PCM parameters: %w", err)
		}
		defer params.Free()

		fmt.Println(params)

		return nil
	},
}

func init() {
	pcminfoCmd.Flags().UintVarP(&pcminfoOpts.card, "card", "c", 0, "The sound card number")
	pcminfoCmd.Flags().UintVarP(&pcminfoOpts.device, "device", "d", 0, "The device number")
	pcminfoCmd.Flags().StringVarP(&pcminfoOpts.stream, "stream", "s", "playback", "The stream direction ('playback' or 'capture')")
}
