// Package loopback is an in-process PCM and mixer plugin. Frames written to a playback
// stream of a card and device are read back by a capture stream of the same card and device.
//
// The plugins register themselves as "loopback"; import the package for its side effects and
// point a card definition at it:
//
//	name: Loopback
//	pcm:
//	  - id: 0
//	    type: plugin
//	    plugin: loopback
//	    props:
//	      ring_bytes: 262144
//	mixer:
//	  type: plugin
//	  plugin: loopback
package loopback

import (
	"sync"

	"github.com/soundplug/alsa"
)

// Name is the name the plugins are registered under.
const Name = "loopback"

// DefaultRingBytes is the capacity of a loopback ring unless the node sets "ring_bytes".
const DefaultRingBytes = 256 * 1024

// Playback modes selected with the "Loopback Mode" control.
const (
	ModeNormal = iota
	ModeMute
	ModeSwap
)

func init() {
	alsa.RegisterPcmPlugin(Name, openPcm)
	alsa.RegisterMixerPlugin(Name, openMixer)
}

// cardState is shared by the PCM and mixer plugins of one card.
type cardState struct {
	mu     sync.Mutex
	volume [2]int32
	mode   int32
	coeffs [16]byte
	filter []byte

	// Mixer handles with events subscribed. Every change reaches all of them.
	subsMu sync.Mutex
	subs   map[*alsa.MixerPlugin]struct{}
}

var (
	cardsMu sync.Mutex
	cards   = make(map[uint]*cardState)
)

func getCard(card uint) *cardState {
	cardsMu.Lock()
	defer cardsMu.Unlock()

	c, ok := cards[card]
	if !ok {
		c = &cardState{
			volume: [2]int32{100, 100},
			filter: make([]byte, filterBytes),
			subs:   make(map[*alsa.MixerPlugin]struct{}),
		}
		cards[card] = c
	}

	return c
}

// settings returns the values applied to playback data.
func (c *cardState) settings() (volume [2]int32, mode int32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.volume, c.mode
}

func (c *cardState) subscribe(plugin *alsa.MixerPlugin, on bool) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	if on {
		c.subs[plugin] = struct{}{}
	} else {
		delete(c.subs, plugin)
	}
}

func (c *cardState) subscribers() []*alsa.MixerPlugin {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	out := make([]*alsa.MixerPlugin, 0, len(c.subs))
	for p := range c.subs {
		out = append(out, p)
	}

	return out
}

type ringKey struct {
	card   uint
	device uint
}

// ring carries frames from the playback stream to the capture stream of a device.
type ring struct {
	key  ringKey
	refs int

	mu   sync.Mutex
	cond *sync.Cond
	buf  []byte
	head int // read position
	size int // bytes stored

	playback *stream
	capture  *stream
}

var (
	ringsMu sync.Mutex
	rings   = make(map[ringKey]*ring)
)

func acquireRing(card, device uint, capacity int) *ring {
	ringsMu.Lock()
	defer ringsMu.Unlock()

	key := ringKey{card: card, device: device}

	r, ok := rings[key]
	if !ok {
		r = &ring{key: key, buf: make([]byte, capacity)}
		r.cond = sync.NewCond(&r.mu)
		rings[key] = r
	}

	r.refs++

	return r
}

func releaseRing(r *ring) {
	ringsMu.Lock()
	defer ringsMu.Unlock()

	r.refs--
	if r.refs == 0 {
		delete(rings, r.key)
	}
}

// free returns the free space in bytes. The caller holds r.mu.
func (r *ring) free() int {
	return len(r.buf) - r.size
}

// put appends p, which must fit. The caller holds r.mu.
func (r *ring) put(p []byte) {
	tail := (r.head + r.size) % len(r.buf)
	n := copy(r.buf[tail:], p)
	copy(r.buf, p[n:])
	r.size += len(p)
}

// get moves len(p) stored bytes into p. The caller holds r.mu.
func (r *ring) get(p []byte) {
	n := copy(p, r.buf[r.head:min(r.head+len(p), len(r.buf))])
	copy(p[n:], r.buf)
	r.head = (r.head + len(p)) % len(r.buf)
	r.size -= len(p)
}

// reset drops all stored bytes. The caller holds r.mu.
func (r *ring) reset() {
	r.head = 0
	r.size = 0
}
