package main

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundplug/alsa"
	"github.com/soundplug/alsa/plugins/loopback"
)

const testCard = 41

const testDefinition = `name: Loopback
pcm:
  - id: 0
    type: plugin
    plugin: loopback
mixer:
  type: plugin
  plugin: loopback
`

func TestRescale(t *testing.T) {
	testCases := []struct {
		name     string
		s        int
		from, to uint16
		want     int
	}{
		{"Same", -1234, 16, 16, -1234},
		{"Down", 0x123456, 24, 16, 0x1234},
		{"Up", -2, 16, 24, -512},
		{"ClampHigh", 200, 8, 8, 127},
		{"ClampLow", -200, 8, 8, -128},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, rescale(tc.s, tc.from, tc.to))
		})
	}
}

func TestConvertSamples(t *testing.T) {
	samples := []int{-32768, 0, 16384}

	s16, ok := convertSamples(samples, alsa.SNDRV_PCM_FORMAT_S16_LE, 16).([]int16)
	require.True(t, ok)
	assert.Equal(t, []int16{-32768, 0, 16384}, s16)

	s8, ok := convertSamples(samples, alsa.SNDRV_PCM_FORMAT_S8, 16).([]int8)
	require.True(t, ok)
	assert.Equal(t, []int8{-128, 0, 64}, s8)

	f32, ok := convertSamples(samples, alsa.SNDRV_PCM_FORMAT_FLOAT_LE, 16).([]float32)
	require.True(t, ok)
	assert.Equal(t, []float32{-1, 0, 0.5}, f32)

	f64, ok := convertSamples(samples, alsa.SNDRV_PCM_FORMAT_FLOAT64_LE, 16).([]float64)
	require.True(t, ok)
	assert.Equal(t, []float64{-1, 0, 0.5}, f64)
}

func TestBytesToIntBuffer(t *testing.T) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint16(data[0:], uint16(0xFFFF))
	binary.LittleEndian.PutUint16(data[2:], 300)
	binary.LittleEndian.PutUint16(data[4:], uint16(0x8000))
	binary.LittleEndian.PutUint16(data[6:], 7)

	buf, err := bytesToIntBuffer(data, alsa.SNDRV_PCM_FORMAT_S16_LE, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{-1, 300, -32768, 7}, buf.Data)
	assert.Equal(t, 16, buf.SourceBitDepth)
	assert.Equal(t, 2, buf.Format.NumChannels)

	// S24 in 32-bit containers, sign extended from bit 23.
	s24 := []byte{0xFF, 0xFF, 0xFF, 0x00, 0x01, 0x00, 0x80, 0x00}
	buf, err = bytesToIntBuffer(s24, alsa.SNDRV_PCM_FORMAT_S24_LE, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{-1, -8388607}, buf.Data)

	_, err = bytesToIntBuffer(data, alsa.SNDRV_PCM_FORMAT_FLOAT_LE, 2)
	assert.Error(t, err)
}

func TestParseFlags(t *testing.T) {
	f, err := parseFormat("s24")
	require.NoError(t, err)
	assert.Equal(t, alsa.SNDRV_PCM_FORMAT_S24_LE, f)

	_, err = parseFormat("u8")
	assert.Error(t, err)

	f, depth, err := captureFormat("s32")
	require.NoError(t, err)
	assert.Equal(t, alsa.SNDRV_PCM_FORMAT_S32_LE, f)
	assert.Equal(t, 32, depth)

	_, _, err = captureFormat("float")
	assert.Error(t, err)

	for _, s := range []string{"on", "YES", "1", "true"} {
		v, err := parseBool(s)
		require.NoError(t, err)
		assert.Equal(t, 1, v, s)
	}

	_, err = parseBool("maybe")
	assert.Error(t, err)
}

func TestMixCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "card41.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testDefinition), 0o644))

	t.Cleanup(func() { alsa.SetCardDefinitions(nil) })

	run := func(args ...string) error {
		rootCmd.SetArgs(append([]string{"--card-defs", dir, "mix", "--card", "41"}, args...))

		return rootCmd.Execute()
	}

	require.NoError(t, run(loopback.VolumeControl, "40", "75"))
	require.NoError(t, run(loopback.ModeControl, "Swap"))
	require.NoError(t, run(loopback.FilterControl, strings.Repeat("ab", 32)))

	assert.Error(t, run(loopback.VolumeControl, "1", "2", "3"))
	assert.Error(t, run("No Such Control"))

	mixer, err := alsa.MixerOpen(testCard)
	require.NoError(t, err)
	defer mixer.Close()

	volume, err := mixer.CtlByName(loopback.VolumeControl)
	require.NoError(t, err)

	v, err := volume.Value(1)
	require.NoError(t, err)
	assert.Equal(t, 75, v)

	mode, err := mixer.CtlByName(loopback.ModeControl)
	require.NoError(t, err)

	s, err := mode.EnumValueString(0)
	require.NoError(t, err)
	assert.Equal(t, "Swap", s)

	filter, err := mixer.CtlByName(loopback.FilterControl)
	require.NoError(t, err)

	var data []byte
	require.NoError(t, filter.Array(&data))
	require.Len(t, data, 32)
	assert.Equal(t, byte(0xab), data[31])
}

func TestCardDefsFlag(t *testing.T) {
	t.Cleanup(func() { alsa.SetCardDefinitions(nil) })

	rootCmd.SetArgs([]string{"--card-defs", filepath.Join(t.TempDir(), "missing"), "plugins"})
	assert.Error(t, rootCmd.Execute())
}
