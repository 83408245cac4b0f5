package alsa

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// SoundCardDevice represents a single PCM device on a sound card.
type SoundCardDevice struct {
	ID          int
	Name        string
	Description string
	IsPlayback  bool   // True for playback, false for capture
	Plugin      string // Plugin serving the device, empty for kernel devices
}

// String returns a human-readable representation of the SoundCardDevice.
func (d SoundCardDevice) String() string {
	direction := "Capture"
	if d.IsPlayback {
		direction = "Playback"
	}

	if d.Plugin != "" {
		return fmt.Sprintf("  Device %d: %s (%s) [%s, plugin %s]", d.ID, d.Name, d.Description, direction, d.Plugin)
	}

	return fmt.Sprintf("  Device %d: %s (%s) [%s]", d.ID, d.Name, d.Description, direction)
}

// SoundCard represents an enumerated sound card with its devices.
type SoundCard struct {
	ID          int
	Name        string
	Description string
	Devices     []SoundCardDevice
	Defined     bool // The card has a definition file
}

// String returns a human-readable representation of the SoundCard.
func (c SoundCard) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Card %d: %s (%s)\n", c.ID, c.Name, c.Description))
	for _, dev := range c.Devices {
		sb.WriteString(dev.String() + "\n")
	}

	return sb.String()
}

var (
	cardRegex = regexp.MustCompile(`^\s*(\d+)\s+\[\s*([^]]*?)\s*\]:\s*(.*)`)
	// Lines like "02-00: Loopback PCM : Loopback PCM : playback 8 : capture 8"
	pcmRegex = regexp.MustCompile(`^(\d+)-(\d+): (.*?) :.*`)
)

// EnumerateCards lists the kernel sound cards found in /proc/asound together with the cards
// described by the active card definitions. A defined PCM device replaces the kernel device
// with the same number. Systems without /proc/asound only report defined cards.
func EnumerateCards() ([]SoundCard, error) {
	cardMap, err := kernelCards()
	if err != nil {
		return nil, err
	}

	if err := mergeDefinedCards(cardMap); err != nil {
		return nil, err
	}

	var cardIDs []int
	for id := range cardMap {
		cardIDs = append(cardIDs, id)
	}

	sort.Ints(cardIDs)

	result := make([]SoundCard, 0, len(cardIDs))
	for _, id := range cardIDs {
		result = append(result, *cardMap[id])
	}

	return result, nil
}

func kernelCards() (map[int]*SoundCard, error) {
	cardMap := make(map[int]*SoundCard)

	cardsFile := "/proc/asound/cards"
	cardsContent, err := os.ReadFile(cardsFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cardMap, nil
		}

		return nil, fmt.Errorf("could not read %s: %w", cardsFile, err)
	}

	for _, line := range strings.Split(string(cardsContent), "\n") {
		matches := cardRegex.FindStringSubmatch(line)
		if len(matches) != 4 {
			continue
		}

		id, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}

		cardMap[id] = &SoundCard{
			ID:          id,
			Name:        strings.TrimSpace(matches[2]),
			Description: strings.TrimSpace(matches[3]),
		}
	}

	pcmFile := "/proc/asound/pcm"
	pcmContent, err := os.ReadFile(pcmFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cardMap, nil
		}

		return nil, fmt.Errorf("could not read %s: %w", pcmFile, err)
	}

	for _, line := range strings.Split(string(pcmContent), "\n") {
		matches := pcmRegex.FindStringSubmatch(line)
		if len(matches) < 4 {
			continue
		}

		cardID, _ := strconv.Atoi(matches[1])
		devID, _ := strconv.Atoi(matches[2])

		card, ok := cardMap[cardID]
		if !ok {
			continue
		}

		description := strings.TrimSpace(matches[3])

		// A single PCM device can have both playback and capture streams.
		if strings.Contains(line, "playback") {
			card.Devices = append(card.Devices, SoundCardDevice{
				ID:          devID,
				Name:        fmt.Sprintf("pcm%dp", devID),
				Description: description,
				IsPlayback:  true,
			})
		}

		if strings.Contains(line, "capture") {
			card.Devices = append(card.Devices, SoundCardDevice{
				ID:          devID,
				Name:        fmt.Sprintf("pcm%dc", devID),
				Description: description,
			})
		}
	}

	return cardMap, nil
}

// mergeDefinedCards adds the plugin devices of file based card definitions to cardMap.
// Other providers cannot be listed and are skipped.
func mergeDefinedCards(cardMap map[int]*SoundCard) error {
	defs, ok := CardDefinitions().(*FileCardDefinitions)
	if !ok {
		return nil
	}

	numbers, err := defs.Cards()
	if err != nil {
		return err
	}

	for _, n := range numbers {
		handle, err := defs.OpenCard(n)
		if err != nil {
			logger().WithError(err).WithField("card", n).Warn("Skipping card definition")

			continue
		}

		def := handle.(*cardDefinition)

		card, ok := cardMap[int(n)]
		if !ok {
			card = &SoundCard{ID: int(n), Name: def.Name, Description: def.Name}
			cardMap[int(n)] = card
		}

		card.Defined = true

		for _, node := range def.Pcm {
			if node == nil || node.Type != "plugin" || node.Plugin == "" {
				continue
			}

			card.Devices = replaceDevice(card.Devices, node)
		}

		sort.SliceStable(card.Devices, func(i, j int) bool { return card.Devices[i].ID < card.Devices[j].ID })
	}

	return nil
}

func replaceDevice(devices []SoundCardDevice, node *nodeDefinition) []SoundCardDevice {
	kept := devices[:0]
	for _, d := range devices {
		if d.ID != int(node.ID) {
			kept = append(kept, d)
		}
	}

	description := node.Name
	if description == "" {
		description = node.card.Name
	}

	for _, playback := range []bool{true, false} {
		suffix := "c"
		if playback {
			suffix = "p"
		}

		kept = append(kept, SoundCardDevice{
			ID:          int(node.ID),
			Name:        fmt.Sprintf("pcm%d%s", node.ID, suffix),
			Description: description,
			IsPlayback:  playback,
			Plugin:      node.Plugin,
		})
	}

	return kept
}
