package alsa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumerateCardsDefinitions(t *testing.T) {
	dir := t.TempDir()
	writeCardFile(t, dir, "card63.yaml", yamlCard)

	useCardDefinitions(t, NewFileCardDefinitions(dir))

	cards, err := EnumerateCards()
	require.NoError(t, err)

	var virtual *SoundCard
	for i := range cards {
		if cards[i].ID == 63 {
			virtual = &cards[i]
		}
	}

	require.NotNil(t, virtual)
	assert.True(t, virtual.Defined)
	assert.Equal(t, "Virtual", virtual.Name)

	// Only plugin nodes are listed, in both directions.
	require.Len(t, virtual.Devices, 2)
	assert.Equal(t, "pcm0p", virtual.Devices[0].Name)
	assert.True(t, virtual.Devices[0].IsPlayback)
	assert.Equal(t, "pcm0c", virtual.Devices[1].Name)
	assert.Equal(t, "loopback", virtual.Devices[1].Plugin)

	assert.Contains(t, virtual.String(), "plugin loopback")
}

func TestReplaceDevice(t *testing.T) {
	def := &cardDefinition{Name: "Card"}
	node := &nodeDefinition{ID: 1, Type: "plugin", Plugin: "loopback", card: def}

	devices := []SoundCardDevice{
		{ID: 0, Name: "pcm0p", IsPlayback: true},
		{ID: 1, Name: "pcm1p", Description: "Kernel", IsPlayback: true},
	}

	devices = replaceDevice(devices, node)
	require.Len(t, devices, 3)

	assert.Equal(t, "pcm0p", devices[0].Name)
	assert.Empty(t, devices[0].Plugin)

	for _, d := range devices[1:] {
		assert.Equal(t, 1, d.ID)
		assert.Equal(t, "Card", d.Description)
		assert.Equal(t, "loopback", d.Plugin)
	}
}
