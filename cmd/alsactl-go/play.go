package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-audio/audio"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/soundplug/alsa"
)

var playOpts struct {
	card        uint
	device      uint
	periodSize  uint32
	periodCount uint32
	channels    uint32
	rate        uint32
	format      string
	mmap        bool
}

var playCmd = &cobra.Command{
	Use:   "play <file>",
	Short: "Play a WAV or MP3 file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return play(cmd, args[0])
	},
}

func init() {
	f := playCmd.Flags()
	f.UintVarP(&playOpts.card, "card", "c", 0, "The card to receive the audio")
	f.UintVarP(&playOpts.device, "device", "d", 0, "The device to receive the audio")
	f.Uint32Var(&playOpts.periodSize, "period-size", 1024, "The size of a period in frames")
	f.Uint32Var(&playOpts.periodCount, "period-count", 4, "The number of periods")
	f.Uint32Var(&playOpts.channels, "channels", 0, "The amount of channels per frame (0 = use the file's channels)")
	f.Uint32Var(&playOpts.rate, "rate", 0, "The amount of frames per second (0 = use the file's rate)")
	f.StringVar(&playOpts.format, "format", "", "The sample format (s8, s16, s24, s32, float, float64)")
	f.BoolVar(&playOpts.mmap, "mmap", false, "Use memory-mapped (MMAP) I/O")
}

func play(cmd *cobra.Command, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder, err := openDecoder(file)
	if err != nil {
		return err
	}

	config := alsa.Config{
		Channels:    uint32(decoder.NumChans()),
		Rate:        decoder.SampleRate(),
		PeriodSize:  playOpts.periodSize,
		PeriodCount: playOpts.periodCount,
	}

	if playOpts.channels > 0 {
		config.Channels = playOpts.channels
	}

	if playOpts.rate > 0 {
		config.Rate = playOpts.rate
	}

	if config.Channels != uint32(decoder.NumChans()) {
		return fmt.Errorf("file has %d channels, channel conversion is not supported", decoder.NumChans())
	}

	config.Format, err = playbackFormat(playOpts.format, decoder)
	if err != nil {
		return err
	}

	flags := alsa.PCM_OUT
	if playOpts.mmap {
		flags |= alsa.PCM_MMAP
	}

	pcm, err := alsa.PcmOpen(playOpts.card, playOpts.device, flags, &config)
	if err != nil {
		return fmt.Errorf("opening PCM: %w", err)
	}
	defer pcm.Close()

	logger.WithFields(logrus.Fields{
		"file":     path,
		"device":   fmt.Sprintf("hw:%d,%d", playOpts.card, playOpts.device),
		"channels": config.Channels,
		"rate":     config.Rate,
		"format":   alsa.PcmParamFormatNames[config.Format],
		"period":   config.PeriodSize,
		"periods":  config.PeriodCount,
		"mmap":     playOpts.mmap,
	}).Info("Starting playback")

	if playOpts.mmap {
		if err := pcm.Prepare(); err != nil {
			return fmt.Errorf("preparing MMAP stream: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var totalFrames uint32
	if d, err := decoder.Duration(); err == nil {
		totalFrames = uint32(d.Seconds() * float64(decoder.SampleRate()))
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: int(decoder.NumChans()),
			SampleRate:  int(decoder.SampleRate()),
		},
		Data: make([]int, int(config.PeriodSize)*int(decoder.NumChans())),
	}

	var framesWritten uint32
	startTime := time.Now()

	for ctx.Err() == nil {
		n, err := decoder.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decoding: %w", err)
		}

		if n == 0 {
			break
		}

		data := convertSamples(buf.Data[:n], config.Format, decoder.BitDepth())

		if playOpts.mmap {
			written, err := pcm.MmapWrite(data)
			if err != nil {
				return writeError(err)
			}

			framesWritten += alsa.PcmBytesToFrames(pcm, uint32(written))
		} else {
			written, err := pcm.Write(data)
			if err != nil {
				return writeError(err)
			}

			framesWritten += uint32(written)
		}
	}

	if ctx.Err() != nil || playOpts.mmap {
		_ = pcm.Stop()
	} else if err := pcm.Drain(); err != nil {
		logger.WithError(err).Warn("Drain failed")
	}

	fmt.Printf("Playback finished in %v. (%d/%d frames played)\n", time.Since(startTime).Round(time.Millisecond), framesWritten, totalFrames)

	return nil
}

func writeError(err error) error {
	if errors.Is(err, syscall.EPIPE) {
		return fmt.Errorf("underrun, recovery failed: %w", err)
	}

	return fmt.Errorf("writing to PCM: %w", err)
}

// playbackFormat selects the PCM format from the flag, or from the decoded stream.
func playbackFormat(name string, decoder audioDecoder) (alsa.PcmFormat, error) {
	if name != "" {
		return parseFormat(name)
	}

	if decoder.IsFloat() {
		switch decoder.BitDepth() {
		case 32:
			return alsa.SNDRV_PCM_FORMAT_FLOAT_LE, nil
		case 64:
			return alsa.SNDRV_PCM_FORMAT_FLOAT64_LE, nil
		default:
			return 0, fmt.Errorf("unsupported float bit depth %d", decoder.BitDepth())
		}
	}

	switch decoder.BitDepth() {
	case 8:
		return alsa.SNDRV_PCM_FORMAT_S8, nil
	case 16:
		return alsa.SNDRV_PCM_FORMAT_S16_LE, nil
	case 24:
		return alsa.SNDRV_PCM_FORMAT_S24_LE, nil
	case 32:
		return alsa.SNDRV_PCM_FORMAT_S32_LE, nil
	default:
		return 0, fmt.Errorf("unsupported integer bit depth %d", decoder.BitDepth())
	}
}

func parseFormat(name string) (alsa.PcmFormat, error) {
	switch name {
	case "s8":
		return alsa.SNDRV_PCM_FORMAT_S8, nil
	case "s16":
		return alsa.SNDRV_PCM_FORMAT_S16_LE, nil
	case "s24":
		return alsa.SNDRV_PCM_FORMAT_S24_LE, nil
	case "s32":
		return alsa.SNDRV_PCM_FORMAT_S32_LE, nil
	case "float":
		return alsa.SNDRV_PCM_FORMAT_FLOAT_LE, nil
	case "float64":
		return alsa.SNDRV_PCM_FORMAT_FLOAT64_LE, nil
	default:
		return 0, fmt.Errorf("unsupported format '%s'", name)
	}
}

// convertSamples turns decoded samples of the given bit depth into the typed slice format expects.
func convertSamples(samples []int, format alsa.PcmFormat, bitDepth uint16) any {
	full := float64(int64(1) << (bitDepth - 1))

	switch format {
	case alsa.SNDRV_PCM_FORMAT_S8:
		out := make([]int8, len(samples))
		for i, s := range samples {
			out[i] = int8(rescale(s, bitDepth, 8))
		}

		return out
	case alsa.SNDRV_PCM_FORMAT_S16_LE:
		out := make([]int16, len(samples))
		for i, s := range samples {
			out[i] = int16(rescale(s, bitDepth, 16))
		}

		return out
	case alsa.SNDRV_PCM_FORMAT_S24_LE:
		out := make([]int32, len(samples))
		for i, s := range samples {
			out[i] = int32(rescale(s, bitDepth, 24))
		}

		return out
	case alsa.SNDRV_PCM_FORMAT_S32_LE:
		out := make([]int32, len(samples))
		for i, s := range samples {
			out[i] = int32(rescale(s, bitDepth, 32))
		}

		return out
	case alsa.SNDRV_PCM_FORMAT_FLOAT_LE:
		out := make([]float32, len(samples))
		for i, s := range samples {
			out[i] = float32(float64(s) / full)
		}

		return out
	default:
		out := make([]float64, len(samples))
		for i, s := range samples {
			out[i] = float64(s) / full
		}

		return out
	}
}

// rescale shifts a sample between bit depths, clamping to the target range.
func rescale(s int, from, to uint16) int {
	if from > to {
		s >>= from - to
	} else if to > from {
		s <<= to - from
	}

	hi := 1<<(to-1) - 1
	lo := -(1 << (to - 1))

	return max(lo, min(hi, s))
}
