package alsa

import (
	"fmt"
	"sort"
	"sync"
)

// PcmPluginOpenFunc creates a PCM plugin instance for the given card and device.
// node is the PCM node of the card definition and can be queried for plugin specific properties.
type PcmPluginOpenFunc func(node *SndNode, card, device uint, mode PcmFlag) (*PcmPlugin, error)

// MixerPluginOpenFunc creates a mixer plugin instance for the given card.
type MixerPluginOpenFunc func(node *SndNode, card uint) (*MixerPlugin, error)

var (
	pluginsMu    sync.RWMutex
	pcmPlugins   = make(map[string]PcmPluginOpenFunc)
	mixerPlugins = make(map[string]MixerPluginOpenFunc)
)

// RegisterPcmPlugin makes a PCM plugin available under the given name.
// Card definitions refer to plugins by this name. It panics if open is nil or the name is
// already registered.
func RegisterPcmPlugin(name string, open PcmPluginOpenFunc) {
	pluginsMu.Lock()
	defer pluginsMu.Unlock()

	if open == nil {
		panic("alsa: RegisterPcmPlugin open function is nil")
	}

	if _, dup := pcmPlugins[name]; dup {
		panic("alsa: RegisterPcmPlugin called twice for plugin " + name)
	}

	pcmPlugins[name] = open
}

// RegisterMixerPlugin makes a mixer plugin available under the given name.
// It panics if open is nil or the name is already registered.
func RegisterMixerPlugin(name string, open MixerPluginOpenFunc) {
	pluginsMu.Lock()
	defer pluginsMu.Unlock()

	if open == nil {
		panic("alsa: RegisterMixerPlugin open function is nil")
	}

	if _, dup := mixerPlugins[name]; dup {
		panic("alsa: RegisterMixerPlugin called twice for plugin " + name)
	}

	mixerPlugins[name] = open
}

// PcmPlugins returns a sorted list of the names of the registered PCM plugins.
func PcmPlugins() []string {
	pluginsMu.RLock()
	defer pluginsMu.RUnlock()

	names := make([]string, 0, len(pcmPlugins))
	for name := range pcmPlugins {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// MixerPlugins returns a sorted list of the names of the registered mixer plugins.
func MixerPlugins() []string {
	pluginsMu.RLock()
	defer pluginsMu.RUnlock()

	names := make([]string, 0, len(mixerPlugins))
	for name := range mixerPlugins {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func lookupPcmPlugin(name string) (PcmPluginOpenFunc, error) {
	pluginsMu.RLock()
	defer pluginsMu.RUnlock()

	open, ok := pcmPlugins[name]
	if !ok {
		return nil, fmt.Errorf("pcm plugin %q: %w", name, ErrPluginNotFound)
	}

	return open, nil
}

func lookupMixerPlugin(name string) (MixerPluginOpenFunc, error) {
	pluginsMu.RLock()
	defer pluginsMu.RUnlock()

	open, ok := mixerPlugins[name]
	if !ok {
		return nil, fmt.Errorf("mixer plugin %q: %w", name, ErrPluginNotFound)
	}

	return open, nil
}
