package alsa_test

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/soundplug/alsa"
	"github.com/soundplug/alsa/plugins/loopback"
)

const (
	loopbackPlaybackDevice = 0
	loopbackCaptureDevice  = 1
)

var (
	defaultConfig = alsa.Config{
		Channels:    2,
		Rate:        48000,
		PeriodSize:  1024,
		PeriodCount: 4,
		Format:      alsa.SNDRV_PCM_FORMAT_S16_LE,
	}

	pluginConfig = alsa.Config{
		Channels:    2,
		Rate:        48000,
		PeriodSize:  256,
		PeriodCount: 4,
		Format:      alsa.SNDRV_PCM_FORMAT_S16_LE,
	}
)

func TestPcmFormatToBits(t *testing.T) {
	testCases := map[alsa.PcmFormat]uint32{
		alsa.SNDRV_PCM_FORMAT_INVALID:    0,
		alsa.SNDRV_PCM_FORMAT_S16_LE:     16,
		alsa.SNDRV_PCM_FORMAT_S32_LE:     32,
		alsa.SNDRV_PCM_FORMAT_S8:         8,
		alsa.SNDRV_PCM_FORMAT_S24_LE:     32, // 24-bit stored in 32-bit container
		alsa.SNDRV_PCM_FORMAT_S24_3LE:    24, // Packed 24-bit
		alsa.SNDRV_PCM_FORMAT_S16_BE:     16,
		alsa.SNDRV_PCM_FORMAT_S24_BE:     32,
		alsa.SNDRV_PCM_FORMAT_S24_3BE:    24,
		alsa.SNDRV_PCM_FORMAT_S32_BE:     32,
		alsa.SNDRV_PCM_FORMAT_FLOAT_LE:   32,
		alsa.SNDRV_PCM_FORMAT_FLOAT_BE:   32,
		alsa.SNDRV_PCM_FORMAT_FLOAT64_LE: 64,
		alsa.SNDRV_PCM_FORMAT_FLOAT64_BE: 64,
	}

	for format, expectedBits := range testCases {
		t.Run(alsa.PcmParamFormatNames[format], func(t *testing.T) {
			bits := alsa.PcmFormatToBits(format)
			if bits != expectedBits {
				t.Errorf("PcmFormatToBits(%v) = %d; want %d", format, bits, expectedBits)
			}
		})
	}
}

func TestPcmInvalidBuffers(t *testing.T) {
	usePluginCard(t, loopbackDefinition)

	pcm, err := alsa.PcmOpen(pluginCard, 0, alsa.PCM_OUT, &pluginConfig)
	require.NoError(t, err, "Failed to open PCM for invalid buffer tests")
	defer pcm.Close()

	_, err = pcm.Write(nil)
	assert.Error(t, err, "Write with nil buffer should fail")

	_, err = pcm.Write(123)
	assert.Error(t, err, "Write with non-slice buffer should fail")

	var unsupportedSlice = []int64{1, 1, 1, 1}
	_, err = pcm.Write(unsupportedSlice)
	assert.Error(t, err, "Write with unsupported slice type should fail")

	_, err = pcm.Write([]byte{1, 2, 3})
	assert.Error(t, err, "Write with less than one frame should fail")

	var emptySlice []int16
	n, err := pcm.Write(emptySlice)
	assert.NoError(t, err, "Write with empty slice should succeed")
	assert.Zero(t, n)

	_, err = pcm.Read(make([]int16, 4))
	assert.ErrorContains(t, err, "cannot read from a playback device")
}

// TestPcmPlugin exercises the PCM API on a card served by the loopback plugin.
func TestPcmPlugin(t *testing.T) {
	usePluginCard(t, loopbackDefinition)

	t.Run("OpenAndClose", testPluginOpenAndClose)
	t.Run("OpenByName", testPluginOpenByName)
	t.Run("Busy", testPluginBusy)
	t.Run("Getters", testPluginGetters)
	t.Run("Params", testPluginParams)
	t.Run("State", testPluginState)
	t.Run("Wait", testPluginWait)
	t.Run("ReadWrite", testPluginReadWrite)
	t.Run("MixerSettings", testPluginMixerSettings)
	t.Run("NonBlocking", testPluginNonBlocking)
	t.Run("Drain", testPluginDrain)
	t.Run("StopUnblocksRead", testPluginStopUnblocksRead)
	t.Run("Unsupported", testPluginUnsupported)
}

func testPluginOpenAndClose(t *testing.T) {
	testCases := []struct {
		name  string
		flags alsa.PcmFlag
	}{
		{"OUT", alsa.PCM_OUT},
		{"OUT_NONBLOCK", alsa.PCM_OUT | alsa.PCM_NONBLOCK},
		{"OUT_MONOTONIC", alsa.PCM_OUT | alsa.PCM_MONOTONIC},
		{"IN", alsa.PCM_IN},
		{"IN_NORESTART", alsa.PCM_IN | alsa.PCM_NORESTART},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pcm, err := alsa.PcmOpen(pluginCard, 0, tc.flags, &pluginConfig)
			require.NoError(t, err)
			require.True(t, pcm.IsReady())

			// Plugin PCMs are not backed by a file descriptor.
			assert.Equal(t, ^uintptr(0), pcm.Fd())

			require.NoError(t, pcm.Close())
			assert.False(t, pcm.IsReady())
			assert.NoError(t, pcm.Close(), "closing twice should be a no-op")
		})
	}

	_, err := alsa.PcmOpen(pluginCard, 0, alsa.PCM_OUT|alsa.PCM_MMAP, &pluginConfig)
	assert.ErrorIs(t, err, alsa.ErrNotSupported)

	assert.NoError(t, (*alsa.PCM)(nil).Close())
}

func testPluginOpenByName(t *testing.T) {
	pcm, err := alsa.PcmOpenByName(fmt.Sprintf("hw:%d,0", pluginCard), alsa.PCM_OUT, &pluginConfig)
	require.NoError(t, err)
	require.True(t, pcm.IsReady())
	require.NoError(t, pcm.Close())

	// Devices the definition does not list fall through to the kernel.
	_, err = alsa.PcmOpenByName(fmt.Sprintf("hw:%d,5", pluginCard), alsa.PCM_OUT, &pluginConfig)
	assert.Error(t, err)
}

func testPluginBusy(t *testing.T) {
	pcm, err := alsa.PcmOpen(pluginCard, 0, alsa.PCM_OUT, &pluginConfig)
	require.NoError(t, err)

	_, err = alsa.PcmOpen(pluginCard, 0, alsa.PCM_OUT, &pluginConfig)
	assert.ErrorIs(t, err, syscall.EBUSY)

	// The other direction is still free.
	capture, err := alsa.PcmOpen(pluginCard, 0, alsa.PCM_IN, &pluginConfig)
	require.NoError(t, err)
	require.NoError(t, capture.Close())

	require.NoError(t, pcm.Close())

	pcm, err = alsa.PcmOpen(pluginCard, 0, alsa.PCM_OUT, &pluginConfig)
	require.NoError(t, err, "the device should be free again after close")
	require.NoError(t, pcm.Close())
}

func testPluginGetters(t *testing.T) {
	pcm, err := alsa.PcmOpen(pluginCard, 0, alsa.PCM_OUT, &pluginConfig)
	require.NoError(t, err)
	defer pcm.Close()

	assert.Equal(t, alsa.PCM_OUT, pcm.Flags())
	assert.Equal(t, uint32(0), pcm.Subdevice())
	assert.Equal(t, 0, pcm.Xruns())

	assert.Equal(t, pluginConfig.Channels, pcm.Channels())
	assert.Equal(t, pluginConfig.Rate, pcm.Rate())
	assert.Equal(t, pluginConfig.Format, pcm.Format())
	assert.Equal(t, pluginConfig.PeriodSize, pcm.PeriodSize())
	assert.Equal(t, pluginConfig.PeriodCount, pcm.PeriodCount())
	assert.Equal(t, pluginConfig.PeriodSize*pluginConfig.PeriodCount, pcm.BufferSize())
	assert.Equal(t, uint32(4), pcm.FrameSize())

	expectedNs := (1e9 * float64(pluginConfig.PeriodSize)) / float64(pluginConfig.Rate)
	assert.Equal(t, time.Duration(expectedNs), pcm.PeriodTime())

	assert.Equal(t, uint32(4), alsa.PcmFramesToBytes(pcm, 1))
	assert.Equal(t, uint32(256), alsa.PcmBytesToFrames(pcm, 1024))
}

func testPluginParams(t *testing.T) {
	params, err := alsa.PcmParamsGetRefined(pluginCard, 0, alsa.PCM_OUT)
	require.NoError(t, err)
	defer params.Free()

	assert.True(t, params.FormatIsSupported(alsa.SNDRV_PCM_FORMAT_S16_LE))
	assert.True(t, params.FormatIsSupported(alsa.SNDRV_PCM_FORMAT_FLOAT_LE))
	assert.False(t, params.FormatIsSupported(alsa.SNDRV_PCM_FORMAT_S8))

	constraints := loopback.Constraints()

	minChannels, err := params.RangeMin(alsa.SNDRV_PCM_HW_PARAM_CHANNELS)
	require.NoError(t, err)
	assert.Equal(t, constraints.Channels.Min, minChannels)

	maxRate, err := params.RangeMax(alsa.SNDRV_PCM_HW_PARAM_RATE)
	require.NoError(t, err)
	assert.Equal(t, constraints.Rate.Max, maxRate)

	assert.Contains(t, params.String(), "S16_LE")

	config := pluginConfig
	config.Rate = 384000

	_, err = alsa.PcmOpen(pluginCard, 0, alsa.PCM_OUT, &config)
	assert.ErrorIs(t, err, syscall.EINVAL, "a rate above the constraints should be refused")
}

func testPluginState(t *testing.T) {
	pcm, err := alsa.PcmOpen(pluginCard, 0, alsa.PCM_OUT, &pluginConfig)
	require.NoError(t, err)
	defer pcm.Close()

	assert.Equal(t, alsa.SNDRV_PCM_STATE_SETUP, pcm.State())

	require.NoError(t, pcm.Prepare())
	assert.Equal(t, alsa.SNDRV_PCM_STATE_PREPARED, pcm.State())

	require.NoError(t, pcm.Start())
	assert.Equal(t, alsa.SNDRV_PCM_STATE_RUNNING, pcm.State())

	require.NoError(t, pcm.Pause(true))
	assert.Equal(t, alsa.SNDRV_PCM_STATE_PAUSED, pcm.State())

	assert.Error(t, pcm.Pause(true), "pausing a paused stream should fail")

	require.NoError(t, pcm.Pause(false))
	assert.Equal(t, alsa.SNDRV_PCM_STATE_RUNNING, pcm.State())

	require.NoError(t, pcm.Stop())
	assert.Equal(t, alsa.SNDRV_PCM_STATE_SETUP, pcm.State())

	err = pcm.Pause(true)
	assert.ErrorIs(t, err, unix.EBADFD)

	_, err = pcm.Delay()
	assert.ErrorIs(t, err, unix.EBADFD, "delay needs a prepared stream")

	// Start prepares a stream left in SETUP.
	require.NoError(t, pcm.Start())
	assert.Equal(t, alsa.SNDRV_PCM_STATE_RUNNING, pcm.State())

	require.NoError(t, pcm.Close())

	_, err = pcm.Delay()
	assert.Error(t, err)
}

func testPluginWait(t *testing.T) {
	pcm, err := alsa.PcmOpen(pluginCard, 0, alsa.PCM_OUT, &pluginConfig)
	require.NoError(t, err)

	// Configured but not prepared: nothing to wait for.
	start := time.Now()
	ready, err := pcm.Wait(100)
	require.NoError(t, err)
	assert.False(t, ready, "SETUP stream should time out")
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	require.NoError(t, pcm.Prepare())

	ready, err = pcm.Wait(1000)
	require.NoError(t, err)
	assert.True(t, ready, "Playback stream should be ready for writing")

	require.NoError(t, pcm.Close())

	_, err = pcm.Wait(0)
	assert.Error(t, err, "Wait on a closed stream should fail")
}

// tone returns frames of interleaved stereo S16 samples that differ per channel.
func tone(frames int) []int16 {
	buf := make([]int16, frames*2)
	for i := 0; i < frames; i++ {
		buf[2*i] = int16(i*7 - 900)
		buf[2*i+1] = int16(1200 - i*5)
	}

	return buf
}

func openPluginPair(t *testing.T, flags alsa.PcmFlag) (playback, capture *alsa.PCM) {
	t.Helper()

	capture, err := alsa.PcmOpen(pluginCard, 0, alsa.PCM_IN|flags, &pluginConfig)
	require.NoError(t, err)
	t.Cleanup(func() { _ = capture.Close() })

	playback, err = alsa.PcmOpen(pluginCard, 0, alsa.PCM_OUT|flags, &pluginConfig)
	require.NoError(t, err)
	t.Cleanup(func() { _ = playback.Close() })

	return playback, capture
}

func testPluginReadWrite(t *testing.T) {
	playback, capture := openPluginPair(t, 0)

	_, err := capture.Write(make([]int16, 8))
	assert.ErrorContains(t, err, "cannot write to a capture device")

	out := tone(int(pluginConfig.PeriodSize))

	written, err := playback.Write(out)
	require.NoError(t, err)
	require.Equal(t, int(pluginConfig.PeriodSize), written)
	assert.Equal(t, alsa.SNDRV_PCM_STATE_RUNNING, playback.State())

	delay, err := playback.Delay()
	require.NoError(t, err)
	assert.Equal(t, int(pluginConfig.PeriodSize), delay, "written frames wait for the capture side")

	in := make([]int16, len(out))
	read, err := capture.Read(in)
	require.NoError(t, err)
	require.Equal(t, written, read)
	assert.Equal(t, out, in)

	delay, err = playback.Delay()
	require.NoError(t, err)
	assert.Zero(t, delay)

	delay, err = capture.Delay()
	require.NoError(t, err)
	assert.Zero(t, delay)

	// A second write lands behind the first one on the capture side.
	_, err = playback.Write(out[:128])
	require.NoError(t, err)

	delay, err = capture.Delay()
	require.NoError(t, err)
	assert.Equal(t, 64, delay)

	read, err = capture.Read(in[:128])
	require.NoError(t, err)
	assert.Equal(t, 64, read)
	assert.Equal(t, out[:128], in[:128])
}

func testPluginMixerSettings(t *testing.T) {
	mixer, err := alsa.MixerOpen(pluginCard)
	require.NoError(t, err)
	defer mixer.Close()

	volume, err := mixer.CtlByName(loopback.VolumeControl)
	require.NoError(t, err)

	mode, err := mixer.CtlByName(loopback.ModeControl)
	require.NoError(t, err)

	defer func() {
		_ = volume.SetArray([]int32{100, 100})
		_ = mode.SetEnumByString("Normal")
	}()

	playback, capture := openPluginPair(t, 0)

	roundTrip := func(t *testing.T, out []int16) []int16 {
		t.Helper()

		_, err := playback.Write(out)
		require.NoError(t, err)

		in := make([]int16, len(out))
		_, err = capture.Read(in)
		require.NoError(t, err)

		return in
	}

	out := []int16{1000, -2000, 3000, -4000}

	t.Run("Volume", func(t *testing.T) {
		require.NoError(t, volume.SetArray([]int32{50, 100}))
		assert.Equal(t, []int16{500, -2000, 1500, -4000}, roundTrip(t, out))
		require.NoError(t, volume.SetArray([]int32{100, 100}))
	})

	t.Run("Swap", func(t *testing.T) {
		require.NoError(t, mode.SetEnumByString("Swap"))
		assert.Equal(t, []int16{-2000, 1000, -4000, 3000}, roundTrip(t, out))
	})

	t.Run("Mute", func(t *testing.T) {
		require.NoError(t, mode.SetEnumByString("Mute"))
		assert.Equal(t, []int16{0, 0, 0, 0}, roundTrip(t, out))
	})
}

func testPluginNonBlocking(t *testing.T) {
	t.Run("Read", func(t *testing.T) {
		pcm, err := alsa.PcmOpen(pluginCard, 0, alsa.PCM_IN|alsa.PCM_NONBLOCK, &pluginConfig)
		require.NoError(t, err)
		defer pcm.Close()

		buffer := make([]byte, alsa.PcmFramesToBytes(pcm, pcm.PeriodSize()))
		read, err := pcm.Read(buffer)

		assert.Equal(t, 0, read, "Read should return 0 frames when no data is available")
		assert.ErrorIs(t, err, syscall.EAGAIN, "Expected EAGAIN when reading from an empty non-blocking buffer")
	})

	t.Run("Write", func(t *testing.T) {
		playback, _ := openPluginPair(t, alsa.PCM_NONBLOCK)

		writeBuffer := make([]byte, alsa.PcmFramesToBytes(playback, playback.PeriodSize()))

		// The ring holds 16 KiB, four times the buffer of the stream.
		var writeErr error
		for i := 0; i < 32; i++ {
			if _, err := playback.Write(writeBuffer); err != nil {
				writeErr = err

				break
			}
		}

		require.NotNil(t, writeErr, "Write loop finished without any error, expected EAGAIN")
		assert.ErrorIs(t, writeErr, syscall.EAGAIN, "Expected EAGAIN when writing to a full non-blocking buffer")
	})

	t.Run("WithoutCapture", func(t *testing.T) {
		pcm, err := alsa.PcmOpen(pluginCard, 0, alsa.PCM_OUT|alsa.PCM_NONBLOCK, &pluginConfig)
		require.NoError(t, err)
		defer pcm.Close()

		// Nothing listens, so frames are consumed as fast as they come.
		writeBuffer := make([]byte, alsa.PcmFramesToBytes(pcm, pcm.BufferSize()))
		for i := 0; i < 16; i++ {
			written, err := pcm.Write(writeBuffer)
			require.NoError(t, err)
			require.Equal(t, int(pcm.BufferSize()), written)
		}
	})
}

func testPluginDrain(t *testing.T) {
	playback, capture := openPluginPair(t, 0)

	out := tone(int(pluginConfig.PeriodSize))

	_, err := playback.Write(out)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		time.Sleep(20 * time.Millisecond)

		in := make([]int16, len(out))
		_, err := capture.Read(in)
		assert.NoError(t, err)
	}()

	// Drain returns once the capture side has taken every frame.
	require.NoError(t, playback.Drain())
	wg.Wait()

	assert.Equal(t, alsa.SNDRV_PCM_STATE_SETUP, playback.State())

	// Draining a capture stream drops it.
	require.NoError(t, capture.Drain())
	assert.Equal(t, alsa.SNDRV_PCM_STATE_SETUP, capture.State())

	err = capture.Drain()
	assert.ErrorIs(t, err, unix.EBADFD)
}

func testPluginStopUnblocksRead(t *testing.T) {
	_, capture := openPluginPair(t, 0)

	require.NoError(t, capture.Prepare())

	done := make(chan error, 1)

	go func() {
		buffer := make([]int16, 2*pluginConfig.PeriodSize)
		_, err := capture.Read(buffer)
		done <- err
	}()

	var readErr error

	// Read prepares a stopped stream again, so keep stopping until it gives up.
	assert.Eventually(t, func() bool {
		_ = capture.Stop()

		select {
		case readErr = <-done:
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, readErr, unix.EBADFD)
}

func testPluginUnsupported(t *testing.T) {
	playback, capture := openPluginPair(t, 0)

	err := playback.Link(capture)
	assert.ErrorIs(t, err, alsa.ErrNotSupported)

	err = playback.Unlink()
	assert.ErrorIs(t, err, alsa.ErrNotSupported)

	_, err = playback.MmapWrite(make([]byte, 16))
	assert.Error(t, err)
}

// TestPcmHardware runs against the snd-aloop card: playback on device 0 is captured on device 1.
func TestPcmHardware(t *testing.T) {
	requireLoopbackHw(t)

	t.Run("PcmOpenAndClose", testPcmOpenAndClose)
	t.Run("PcmOpenByName", testPcmOpenByName)
	t.Run("PcmGetters", testPcmGetters)
	t.Run("PcmState", testPcmState)
	t.Run("PcmWait", testPcmWait)
	t.Run("SetConfig", testSetConfig)
	t.Run("PcmLoopback", testPcmLoopback)
}

func testPcmOpenAndClose(t *testing.T) {
	pcm, err := alsa.PcmOpen(1000, 1000, alsa.PCM_OUT, &defaultConfig)
	if err == nil {
		t.Error("expected error when opening non-existent device, but got nil")
		pcm.Close()
	}

	testCases := []struct {
		name  string
		flags alsa.PcmFlag
	}{
		{"OUT", alsa.PCM_OUT},
		{"OUT_MMAP", alsa.PCM_OUT | alsa.PCM_MMAP},
		{"OUT_NONBLOCK", alsa.PCM_OUT | alsa.PCM_NONBLOCK},
		{"OUT_MONOTONIC", alsa.PCM_OUT | alsa.PCM_MONOTONIC},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pcm, err := alsa.PcmOpen(uint(loopbackCard), loopbackPlaybackDevice, tc.flags, &defaultConfig)
			if err != nil {
				// The TTSTAMP ioctl for PCM_MONOTONIC is not supported by all kernels/devices.
				if tc.flags&alsa.PCM_MONOTONIC != 0 && (errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL)) {
					t.Skipf("TTSTAMP ioctl not supported by device: %v", err)
				}

				t.Fatalf("PcmOpen failed: %v", err)
			}

			require.True(t, pcm.IsReady())
			assert.NotEqual(t, ^uintptr(0), pcm.Fd())
			require.NoError(t, pcm.Close())
		})
	}
}

func testPcmOpenByName(t *testing.T) {
	name := fmt.Sprintf("hw:%d,%d", loopbackCard, loopbackPlaybackDevice)
	pcm, err := alsa.PcmOpenByName(name, alsa.PCM_OUT, &defaultConfig)
	require.NoError(t, err, "PcmOpenByName failed for a valid name")
	require.True(t, pcm.IsReady())
	pcm.Close()

	_, err = alsa.PcmOpenByName("invalid_name", alsa.PCM_OUT, &defaultConfig)
	require.Error(t, err, "PcmOpenByName should fail for a name without 'hw:' prefix")

	_, err = alsa.PcmOpenByName("hw:foo,bar", alsa.PCM_OUT, &defaultConfig)
	require.Error(t, err, "PcmOpenByName should fail for non-numeric card/device")

	_, err = alsa.PcmOpenByName("hw:0", alsa.PCM_OUT, &defaultConfig)
	require.Error(t, err, "PcmOpenByName should fail for incomplete name")
}

func testPcmGetters(t *testing.T) {
	pcm, err := alsa.PcmOpen(uint(loopbackCard), loopbackPlaybackDevice, alsa.PCM_OUT, &defaultConfig)
	require.NoError(t, err)
	defer pcm.Close()

	require.Equal(t, alsa.PCM_OUT, pcm.Flags())
	require.Equal(t, defaultConfig.PeriodCount, pcm.PeriodCount())
	require.Equal(t, 0, pcm.Xruns(), "Xruns should be 0 on a newly opened stream")

	require.Equal(t, defaultConfig.Channels, pcm.Channels())
	require.Equal(t, defaultConfig.Rate, pcm.Rate())
	require.Equal(t, defaultConfig.Format, pcm.Format())
	require.Equal(t, defaultConfig.PeriodSize*defaultConfig.PeriodCount, pcm.BufferSize())

	bytesPerFrame := alsa.PcmFormatToBits(defaultConfig.Format) / 8 * defaultConfig.Channels
	require.Equal(t, bytesPerFrame, alsa.PcmFramesToBytes(pcm, 1))
	require.Equal(t, uint32(1), alsa.PcmBytesToFrames(pcm, bytesPerFrame))
}

func testPcmState(t *testing.T) {
	pcm, err := alsa.PcmOpen(uint(loopbackCard), loopbackPlaybackDevice, alsa.PCM_OUT, &defaultConfig)
	require.NoError(t, err)
	defer pcm.Close()

	assert.Contains(t, []alsa.PcmState{alsa.SNDRV_PCM_STATE_OPEN, alsa.SNDRV_PCM_STATE_SETUP}, pcm.State())

	require.NoError(t, pcm.Prepare())
	assert.Equal(t, alsa.SNDRV_PCM_STATE_PREPARED, pcm.State(), "State should be PREPARED after prepare")

	// Starting an empty stream underruns right away.
	_ = pcm.Start()

	time.Sleep(50 * time.Millisecond)

	assert.Contains(t, []alsa.PcmState{alsa.SNDRV_PCM_STATE_XRUN, alsa.SNDRV_PCM_STATE_PREPARED}, pcm.State(),
		"State should be XRUN or PREPARED after starting an empty stream")
}

func testPcmWait(t *testing.T) {
	pcm, err := alsa.PcmOpen(uint(loopbackCard), loopbackPlaybackDevice, alsa.PCM_OUT, &defaultConfig)
	require.NoError(t, err)
	defer pcm.Close()

	require.NoError(t, pcm.Prepare())

	ready, err := pcm.Wait(1000)
	assert.NoError(t, err)
	assert.True(t, ready, "Playback stream should be ready for writing")
}

func testSetConfig(t *testing.T) {
	pcm, err := alsa.PcmOpen(uint(loopbackCard), loopbackPlaybackDevice, alsa.PCM_OUT, nil)
	require.NoError(t, err, "PcmOpen with nil config failed")
	defer pcm.Close()

	require.NotZero(t, pcm.Channels(), "expected non-zero channels with default config")

	newConfig := alsa.Config{
		Channels:    defaultConfig.Channels,
		Rate:        defaultConfig.Rate,
		PeriodSize:  512,
		PeriodCount: 2,
		Format:      alsa.SNDRV_PCM_FORMAT_S16_LE,
	}

	require.NoError(t, pcm.SetConfig(&newConfig))

	finalConfig := pcm.Config()
	require.Equal(t, newConfig.Channels, finalConfig.Channels)
	require.Equal(t, newConfig.Rate, finalConfig.Rate)
}

func testPcmLoopback(t *testing.T) {
	playbackConfig := defaultConfig
	playbackConfig.StartThreshold = playbackConfig.PeriodSize * (playbackConfig.PeriodCount - 1)

	pcmOut, err := alsa.PcmOpen(uint(loopbackCard), loopbackPlaybackDevice, alsa.PCM_OUT, &playbackConfig)
	require.NoError(t, err)
	defer pcmOut.Close()

	pcmIn, err := alsa.PcmOpen(uint(loopbackCard), loopbackCaptureDevice, alsa.PCM_IN, &defaultConfig)
	require.NoError(t, err)
	defer pcmIn.Close()

	if err := pcmOut.Link(pcmIn); err != nil {
		t.Skipf("Failed to link PCM streams, skipping test: %v", err)
	}
	defer pcmOut.Unlink()

	require.NoError(t, pcmOut.Prepare())
	require.NoError(t, pcmIn.Prepare())

	var wg sync.WaitGroup
	done := make(chan struct{})

	var energyFound bool

	wg.Add(2)

	go func() {
		defer wg.Done()

		buffer := make([]int16, pcmIn.PeriodSize()*pcmIn.Channels())
		for {
			select {
			case <-done:
				return
			default:
			}

			if _, err := pcmIn.Read(buffer); err != nil {
				return
			}

			for _, s := range buffer {
				if s != 0 {
					energyFound = true

					break
				}
			}
		}
	}()

	go func() {
		defer wg.Done()

		buffer := tone(int(pcmOut.PeriodSize()))
		for {
			select {
			case <-done:
				return
			default:
			}

			if _, err := pcmOut.Write(buffer); err != nil {
				return
			}
		}
	}()

	time.Sleep(250 * time.Millisecond)
	close(done)

	_ = pcmOut.Stop()
	_ = pcmIn.Stop()
	wg.Wait()

	assert.True(t, energyFound, "no signal energy was captured")
}
