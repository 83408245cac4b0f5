package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// audioDecoder abstracts the input formats so playback can handle WAV and MP3 files uniformly.
type audioDecoder interface {
	// PCMBuffer reads decoded samples into buf and returns the number of samples (not frames) read.
	PCMBuffer(buf *audio.IntBuffer) (n int, err error)
	Duration() (time.Duration, error)
	NumChans() uint16
	SampleRate() uint32
	BitDepth() uint16
	IsFloat() bool
}

// openDecoder picks a decoder by file extension.
func openDecoder(f *os.File) (audioDecoder, error) {
	switch ext := strings.ToLower(filepath.Ext(f.Name())); ext {
	case ".mp3":
		return newMp3Decoder(f)
	case ".wav", ".wave":
		return newWavDecoder(f)
	default:
		return nil, fmt.Errorf("unsupported file type '%s'", ext)
	}
}

type wavDecoder struct {
	*wav.Decoder
}

func newWavDecoder(r io.ReadSeeker) (audioDecoder, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	return &wavDecoder{Decoder: decoder}, nil
}

func (w *wavDecoder) SampleRate() uint32 { return w.Decoder.SampleRate }
func (w *wavDecoder) NumChans() uint16   { return w.Decoder.NumChans }
func (w *wavDecoder) BitDepth() uint16   { return w.Decoder.BitDepth }
func (w *wavDecoder) IsFloat() bool      { return w.Decoder.WavAudioFormat == 3 } // IEEE float

// mp3Decoder always produces 16-bit stereo.
type mp3Decoder struct {
	decoder    *mp3.Decoder
	sampleRate uint32
	length     int64 // decoded size in bytes
	raw        []byte
}

func newMp3Decoder(r io.Reader) (audioDecoder, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}

	return &mp3Decoder{
		decoder:    decoder,
		sampleRate: uint32(decoder.SampleRate()),
		length:     decoder.Length(),
	}, nil
}

func (m *mp3Decoder) PCMBuffer(buf *audio.IntBuffer) (int, error) {
	want := len(buf.Data) * 2
	if cap(m.raw) < want {
		m.raw = make([]byte, want)
	}

	raw := m.raw[:want]

	read, err := io.ReadFull(m.decoder, raw)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, err
	}

	n := read / 2
	for i := 0; i < n; i++ {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	}

	if n == 0 {
		return 0, io.EOF
	}

	return n, nil
}

func (m *mp3Decoder) Duration() (time.Duration, error) {
	if m.length < 0 {
		return 0, errors.New("unknown MP3 length")
	}

	frames := m.length / 4

	return time.Duration(frames) * time.Second / time.Duration(m.sampleRate), nil
}

func (m *mp3Decoder) SampleRate() uint32 { return m.sampleRate }
func (m *mp3Decoder) NumChans() uint16   { return 2 }
func (m *mp3Decoder) BitDepth() uint16   { return 16 }
func (m *mp3Decoder) IsFloat() bool      { return false }
