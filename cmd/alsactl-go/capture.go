package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/soundplug/alsa"
)

var capOpts struct {
	card        uint
	device      uint
	periodSize  uint32
	periodCount uint32
	channels    uint32
	rate        uint32
	format      string
	duration    time.Duration
	mmap        bool
}

var capCmd = &cobra.Command{
	Use:   "cap <output.wav>",
	Short: "Capture audio into a WAV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return capture(cmd, args[0])
	},
}

func init() {
	f := capCmd.Flags()
	f.UintVarP(&capOpts.card, "card", "c", 0, "The card to capture from")
	f.UintVarP(&capOpts.device, "device", "d", 0, "The device to capture from")
	f.Uint32Var(&capOpts.periodSize, "period-size", 1024, "The size of a period in frames")
	f.Uint32Var(&capOpts.periodCount, "period-count", 4, "The number of periods")
	f.Uint32Var(&capOpts.channels, "channels", 2, "The number of channels")
	f.Uint32Var(&capOpts.rate, "rate", 48000, "The sample rate in Hz")
	f.StringVar(&capOpts.format, "format", "s16", "The sample format (s16, s24, s32)")
	f.DurationVar(&capOpts.duration, "duration", 5*time.Second, "How long to capture")
	f.BoolVar(&capOpts.mmap, "mmap", false, "Use memory-mapped (MMAP) I/O")
}

func capture(cmd *cobra.Command, outputPath string) error {
	format, bitDepth, err := captureFormat(capOpts.format)
	if err != nil {
		return err
	}

	config := alsa.Config{
		Channels:    capOpts.channels,
		Rate:        capOpts.rate,
		PeriodSize:  capOpts.periodSize,
		PeriodCount: capOpts.periodCount,
		Format:      format,
	}

	flags := alsa.PCM_IN
	if capOpts.mmap {
		flags |= alsa.PCM_MMAP
	}

	pcm, err := alsa.PcmOpen(capOpts.card, capOpts.device, flags, &config)
	if err != nil {
		return fmt.Errorf("opening PCM: %w", err)
	}
	defer pcm.Close()

	// A stream must be PREPARED before it can be read from.
	if err := pcm.Prepare(); err != nil {
		return fmt.Errorf("preparing PCM: %w", err)
	}

	wavFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer wavFile.Close()

	encoder := wav.NewEncoder(wavFile, int(config.Rate), bitDepth, int(config.Channels), 1)
	defer encoder.Close()

	logger.WithFields(logrus.Fields{
		"file":     outputPath,
		"device":   fmt.Sprintf("hw:%d,%d", capOpts.card, capOpts.device),
		"channels": config.Channels,
		"rate":     config.Rate,
		"format":   alsa.PcmParamFormatNames[config.Format],
		"duration": capOpts.duration,
		"mmap":     capOpts.mmap,
	}).Info("Starting capture, press Ctrl+C to stop early")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	release := stopOnCancel(ctx, pcm)
	defer release()

	totalFrames := uint32(capOpts.duration.Seconds() * float64(config.Rate))
	buffer := make([]byte, alsa.PcmFramesToBytes(pcm, config.PeriodSize))

	var framesCaptured uint32

	for framesCaptured < totalFrames {
		var n int
		if capOpts.mmap {
			n, err = pcm.MmapRead(buffer)
		} else {
			var frames int
			frames, err = pcm.Read(buffer)
			n = int(alsa.PcmFramesToBytes(pcm, uint32(frames)))
		}

		if ctx.Err() != nil {
			fmt.Println("\nCapture interrupted.")

			break
		}

		if err != nil {
			if errors.Is(err, syscall.EPIPE) {
				return fmt.Errorf("overrun, recovery failed: %w", err)
			}

			return fmt.Errorf("reading from PCM: %w", err)
		}

		if n == 0 {
			continue
		}

		buf, err := bytesToIntBuffer(buffer[:n], pcm.Format(), int(pcm.Channels()))
		if err != nil {
			return err
		}

		if err := encoder.Write(buf); err != nil {
			return fmt.Errorf("writing WAV: %w", err)
		}

		framesCaptured += alsa.PcmBytesToFrames(pcm, uint32(n))
	}

	seconds := float64(framesCaptured) / float64(config.Rate)
	fmt.Printf("Capture finished. Wrote %d frames (%.2f seconds) to %s\n", framesCaptured, seconds, outputPath)

	return nil
}

// stopOnCancel stops pcm when ctx ends, unblocking a pending read. The returned function
// must be called before pcm is closed.
func stopOnCancel(ctx context.Context, pcm *alsa.PCM) func() {
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		select {
		case <-ctx.Done():
			_ = pcm.Stop()
		case <-done:
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

// captureFormat maps a format name to a PCM format and the WAV bit depth.
func captureFormat(name string) (alsa.PcmFormat, int, error) {
	switch name {
	case "s16":
		return alsa.SNDRV_PCM_FORMAT_S16_LE, 16, nil
	case "s24":
		// 24 bits of data packed into 32-bit samples.
		return alsa.SNDRV_PCM_FORMAT_S24_LE, 24, nil
	case "s32":
		return alsa.SNDRV_PCM_FORMAT_S32_LE, 32, nil
	default:
		return 0, 0, fmt.Errorf("unsupported format '%s', supported formats are s16, s24, s32", name)
	}
}

// bytesToIntBuffer converts raw interleaved samples into a buffer for the WAV encoder.
func bytesToIntBuffer(data []byte, format alsa.PcmFormat, channels int) (*audio.IntBuffer, error) {
	bytesPerSample := int(alsa.PcmFormatToBits(format) / 8)
	if bytesPerSample == 0 {
		return nil, fmt.Errorf("unsupported format %v", format)
	}

	samples := make([]int, len(data)/bytesPerSample)

	var bitDepth int

	for i := range samples {
		b := data[i*bytesPerSample:]

		switch format {
		case alsa.SNDRV_PCM_FORMAT_S16_LE:
			samples[i] = int(int16(binary.LittleEndian.Uint16(b)))
			bitDepth = 16
		case alsa.SNDRV_PCM_FORMAT_S24_LE:
			// Low three bytes, sign extended from bit 23.
			v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
			if v&0x800000 != 0 {
				v |= 0xFF000000
			}
			samples[i] = int(int32(v))
			bitDepth = 24
		case alsa.SNDRV_PCM_FORMAT_S32_LE:
			samples[i] = int(int32(binary.LittleEndian.Uint32(b)))
			bitDepth = 32
		default:
			return nil, fmt.Errorf("unhandled format %v", format)
		}
	}

	return &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}, nil
}
