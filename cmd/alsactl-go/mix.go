package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soundplug/alsa"
)

var mixOpts struct {
	card     uint
	list     bool
	noUpdate bool
	events   bool
}

var mixCmd = &cobra.Command{
	Use:   "mix [control] [value...]",
	Short: "Show or set mixer controls",
	Long: `Without arguments all controls and their values are listed. Given a control
name or numeric ID, that control is shown, or set when values follow.

Integer values may carry a '%' suffix. Byte controls take one hex string.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mixer, err := alsa.MixerOpen(mixOpts.card)
		if err != nil {
			return fmt.Errorf("opening mixer for card %d: %w", mixOpts.card, err)
		}
		defer mixer.Close()

		if !mixOpts.noUpdate {
			if err := mixer.AddNewCtls(); err != nil {
				logger.WithError(err).Warn("Failed to add new controls")
			}
		}

		if mixOpts.events {
			return watchEvents(mixer)
		}

		if len(args) == 0 {
			printAllControls(mixer, mixOpts.list)

			return nil
		}

		ctl, err := findControl(mixer, args[0])
		if err != nil {
			return err
		}

		if len(args) == 1 {
			printControl(ctl, false)

			return nil
		}

		if err := setControlValue(ctl, args[1:]); err != nil {
			return fmt.Errorf("setting control '%s': %w", ctl.Name(), err)
		}

		fmt.Printf("Set control '%s' successfully.\n", ctl.Name())

		return nil
	},
}

func init() {
	f := mixCmd.Flags()
	f.UintVarP(&mixOpts.card, "card", "c", 0, "The card number to use")
	f.BoolVarP(&mixOpts.list, "list", "l", false, "List control names only")
	f.BoolVar(&mixOpts.noUpdate, "no-update", false, "Don't look for new controls before displaying them")
	f.BoolVarP(&mixOpts.events, "events", "e", false, "Print control changes until interrupted")
}

func findControl(mixer *alsa.Mixer, identifier string) (*alsa.MixerCtl, error) {
	if id, err := strconv.ParseUint(identifier, 10, 32); err == nil {
		ctl, err := mixer.Ctl(uint32(id))
		if err != nil {
			return nil, fmt.Errorf("cannot find control with ID %d: %w", id, err)
		}

		return ctl, nil
	}

	ctl, err := mixer.CtlByName(identifier)
	if err != nil {
		return nil, fmt.Errorf("cannot find control with name '%s': %w", identifier, err)
	}

	return ctl, nil
}

// watchEvents prints every value change reported by the mixer.
func watchEvents(mixer *alsa.Mixer) error {
	if err := mixer.SubscribeEvents(true); err != nil {
		return err
	}
	defer mixer.SubscribeEvents(false)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	fmt.Printf("Watching mixer '%s', press Ctrl+C to stop.\n", mixer.Name())

	for {
		select {
		case <-sig:
			return nil
		default:
		}

		ready, err := mixer.WaitEvent(200)
		if err != nil {
			return err
		}

		if !ready {
			continue
		}

		ev, err := mixer.ReadEvent()
		if err != nil {
			return err
		}

		if ev.Type&alsa.SNDRV_CTL_EVENT_MASK_VALUE == 0 {
			continue
		}

		ctl, err := mixer.Ctl(ev.ControlID)
		if err != nil {
			logger.WithError(err).WithField("id", ev.ControlID).Debug("Event for unknown control")

			continue
		}

		if err := ctl.Update(); err != nil {
			logger.WithError(err).WithField("control", ctl.Name()).Warn("Failed to refresh control")
		}

		printControl(ctl, false)
	}
}

func printAllControls(mixer *alsa.Mixer, listOnly bool) {
	numCtls := mixer.NumCtls()

	fmt.Printf("Mixer card '%s' has %d controls.\n", mixer.Name(), numCtls)
	fmt.Println("---------------------------------------")

	for i := 0; i < numCtls; i++ {
		ctl, err := mixer.CtlByIndex(uint(i))
		if err != nil {
			logger.WithError(err).WithField("index", i).Warn("Could not get control")

			continue
		}

		printControl(ctl, listOnly)
	}
}

func printControl(ctl *alsa.MixerCtl, listOnly bool) {
	if listOnly {
		fmt.Printf("%d: %s\n", ctl.ID(), ctl.Name())

		return
	}

	fmt.Printf("%d: %s (%s, %d values)\n", ctl.ID(), ctl.Name(), ctl.TypeString(), ctl.NumValues())

	switch ctl.Type() {
	case alsa.SNDRV_CTL_ELEM_TYPE_INTEGER:
		printIntegerControl(ctl)
	case alsa.SNDRV_CTL_ELEM_TYPE_BOOLEAN:
		printBooleanControl(ctl)
	case alsa.SNDRV_CTL_ELEM_TYPE_ENUMERATED:
		printEnumControl(ctl)
	case alsa.SNDRV_CTL_ELEM_TYPE_BYTES:
		printByteControl(ctl)
	case alsa.SNDRV_CTL_ELEM_TYPE_INTEGER64:
		printInt64Control(ctl)
	default:
		fmt.Println("  Value: <unsupported type>")
	}

	fmt.Println()
}

func printIntegerControl(ctl *alsa.MixerCtl) {
	minVal, errMin := ctl.RangeMin()
	maxVal, errMax := ctl.RangeMax()
	if errMin == nil && errMax == nil {
		fmt.Printf("  Range: %d - %d\n", minVal, maxVal)
	}

	var values []string

	for i := uint(0); i < uint(ctl.NumValues()); i++ {
		val, err := ctl.Value(i)
		if err != nil {
			values = append(values, "<error>")

			continue
		}

		if pct, err := ctl.Percent(i); err == nil {
			values = append(values, fmt.Sprintf("%d (%d%%)", val, pct))
		} else {
			values = append(values, strconv.Itoa(val))
		}
	}

	fmt.Printf("  Value: %s\n", strings.Join(values, ", "))
}

func printBooleanControl(ctl *alsa.MixerCtl) {
	var values []string

	for i := uint(0); i < uint(ctl.NumValues()); i++ {
		val, err := ctl.Value(i)
		switch {
		case err != nil:
			values = append(values, "<error>")
		case val > 0:
			values = append(values, "On")
		default:
			values = append(values, "Off")
		}
	}

	fmt.Printf("  Value: %s\n", strings.Join(values, ", "))
}

func printEnumControl(ctl *alsa.MixerCtl) {
	if all, err := ctl.AllEnumStrings(); err == nil {
		fmt.Printf("  Enums: %s\n", strings.Join(all, ", "))
	}

	var values []string

	for i := uint(0); i < uint(ctl.NumValues()); i++ {
		s, err := ctl.EnumValueString(i)
		if err != nil {
			s = "<error>"
		}

		values = append(values, s)
	}

	fmt.Printf("  Value: %s\n", strings.Join(values, ", "))
}

func printByteControl(ctl *alsa.MixerCtl) {
	var data []byte
	if err := ctl.Array(&data); err != nil {
		fmt.Printf("  Value: <error reading bytes: %v>\n", err)

		return
	}

	const limit = 16
	if len(data) > limit {
		fmt.Printf("  Value (first %d bytes): %s...\n", limit, hex.EncodeToString(data[:limit]))
	} else {
		fmt.Printf("  Value: %s\n", hex.EncodeToString(data))
	}
}

func printInt64Control(ctl *alsa.MixerCtl) {
	minVal, errMin := ctl.RangeMin64()
	maxVal, errMax := ctl.RangeMax64()
	if errMin == nil && errMax == nil {
		fmt.Printf("  Range: %d - %d\n", minVal, maxVal)
	}

	var values []string

	for i := uint(0); i < uint(ctl.NumValues()); i++ {
		val, err := ctl.Value64(i)
		if err != nil {
			values = append(values, "<error>")
		} else {
			values = append(values, strconv.FormatInt(val, 10))
		}
	}

	fmt.Printf("  Value: %s\n", strings.Join(values, ", "))
}

// setControlValue applies a single value to every element, or one value per element.
func setControlValue(ctl *alsa.MixerCtl, values []string) error {
	if ctl.Type() == alsa.SNDRV_CTL_ELEM_TYPE_BYTES {
		if len(values) != 1 {
			return fmt.Errorf("byte controls take a single hex string")
		}

		data, err := hex.DecodeString(values[0])
		if err != nil {
			return fmt.Errorf("invalid hex value: %w", err)
		}

		return ctl.SetArray(data)
	}

	if ctl.Type() == alsa.SNDRV_CTL_ELEM_TYPE_ENUMERATED {
		if len(values) != 1 {
			return fmt.Errorf("enumerated controls take a single item name")
		}

		return ctl.SetEnumByString(values[0])
	}

	if len(values) == 1 {
		for i := uint(0); i < uint(ctl.NumValues()); i++ {
			if err := setSingleValue(ctl, i, values[0]); err != nil {
				return err
			}
		}

		return nil
	}

	if uint32(len(values)) != ctl.NumValues() {
		return fmt.Errorf("provided %d values, but control has %d values", len(values), ctl.NumValues())
	}

	for i, v := range values {
		if err := setSingleValue(ctl, uint(i), v); err != nil {
			return err
		}
	}

	return nil
}

func setSingleValue(ctl *alsa.MixerCtl, index uint, valueStr string) error {
	switch ctl.Type() {
	case alsa.SNDRV_CTL_ELEM_TYPE_INTEGER:
		if pctStr, ok := strings.CutSuffix(valueStr, "%"); ok {
			pct, err := strconv.Atoi(pctStr)
			if err != nil {
				return fmt.Errorf("invalid percentage value '%s'", valueStr)
			}

			return ctl.SetPercent(index, pct)
		}

		val, err := strconv.Atoi(valueStr)
		if err != nil {
			return fmt.Errorf("invalid integer value '%s'", valueStr)
		}

		return ctl.SetValue(index, val)

	case alsa.SNDRV_CTL_ELEM_TYPE_BOOLEAN:
		val, err := parseBool(valueStr)
		if err != nil {
			return err
		}

		return ctl.SetValue(index, val)

	case alsa.SNDRV_CTL_ELEM_TYPE_INTEGER64:
		val, err := strconv.ParseInt(valueStr, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int64 value '%s'", valueStr)
		}

		return ctl.SetValue64(index, val)

	default:
		return fmt.Errorf("cannot set value for control type %s", ctl.TypeString())
	}
}

func parseBool(s string) (int, error) {
	switch strings.ToLower(s) {
	case "1", "on", "true", "yes":
		return 1, nil
	case "0", "off", "false", "no":
		return 0, nil
	}

	return 0, fmt.Errorf("invalid boolean value '%s'", s)
}
