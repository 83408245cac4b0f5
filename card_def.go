package alsa

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	// CardDefinitionsEnv names the environment variable holding the card definition directory.
	CardDefinitionsEnv = "ALSA_CARD_DEFINITIONS_DIR"
	// DefaultCardDefinitionsDir is used when CardDefinitionsEnv is not set.
	DefaultCardDefinitionsDir = "/etc/alsa/card-definitions"
)

// Node types reported by the "type" property of a node.
const (
	SND_NODE_TYPE_HW     = 0
	SND_NODE_TYPE_PLUGIN = 1
)

// SndNodeKind tells whether a node describes a PCM device or a mixer.
type SndNodeKind int

const (
	SND_NODE_PCM SndNodeKind = iota
	SND_NODE_MIXER
)

// SndNode is a PCM or mixer node resolved from a card definition.
type SndNode struct {
	Card   uint
	Device uint // PCM device number, zero for mixer nodes
	Kind   SndNodeKind

	ops        SndNodeOps
	cardHandle any
	handle     any
}

// Int returns an integer property of the node.
func (n *SndNode) Int(prop string) (int, error) {
	if n == nil {
		return 0, fmt.Errorf("node is nil")
	}

	return n.ops.GetInt(n.handle, prop)
}

// Str returns a string property of the node.
func (n *SndNode) Str(prop string) (string, error) {
	if n == nil {
		return "", fmt.Errorf("node is nil")
	}

	return n.ops.GetStr(n.handle, prop)
}

// Type returns SND_NODE_TYPE_PLUGIN or SND_NODE_TYPE_HW. A node whose type cannot be
// read, or is neither, is a malformed definition.
func (n *SndNode) Type() (int, error) {
	t, err := n.Int("type")
	if err != nil {
		return 0, fmt.Errorf("card %d: node type: %w", n.Card, err)
	}

	switch t {
	case SND_NODE_TYPE_HW, SND_NODE_TYPE_PLUGIN:
		return t, nil
	default:
		return 0, fmt.Errorf("card %d: unknown node type %d", n.Card, t)
	}
}

// PluginName returns the registered name of the plugin serving the node.
func (n *SndNode) PluginName() (string, error) {
	name, err := n.Str("plugin")
	if err != nil {
		return "", err
	}

	if name == "" {
		return "", fmt.Errorf("card %d: plugin node without a plugin name", n.Card)
	}

	return name, nil
}

func (n *SndNode) close() {
	if n == nil || n.ops == nil {
		return
	}

	n.ops.CloseCard(n.cardHandle)
	n.ops = nil
}

var (
	cardDefsMu sync.RWMutex
	cardDefs   SndNodeOps
)

// SetCardDefinitions replaces the card definition provider used when opening PCMs and mixers.
// A nil provider restores the default FileCardDefinitions.
func SetCardDefinitions(ops SndNodeOps) {
	cardDefsMu.Lock()
	defer cardDefsMu.Unlock()

	cardDefs = ops
}

// CardDefinitions returns the card definition provider in use. Unless one was set with
// SetCardDefinitions, definitions are read from the directory named by CardDefinitionsEnv,
// or DefaultCardDefinitionsDir.
func CardDefinitions() SndNodeOps {
	cardDefsMu.RLock()
	ops := cardDefs
	cardDefsMu.RUnlock()

	if ops != nil {
		return ops
	}

	cardDefsMu.Lock()
	defer cardDefsMu.Unlock()

	if cardDefs == nil {
		dir := os.Getenv(CardDefinitionsEnv)
		if dir == "" {
			dir = DefaultCardDefinitionsDir
		}

		cardDefs = NewFileCardDefinitions(dir)
	}

	return cardDefs
}

// getSndNode resolves the node of a PCM device or mixer.
// It returns a nil node when the card has no definition for it, which means hardware.
func getSndNode(card, device uint, kind SndNodeKind) (*SndNode, error) {
	ops := CardDefinitions()

	cardHandle, err := ops.OpenCard(card)
	if err != nil {
		if errors.Is(err, ErrNoCardDefinition) {
			return nil, nil
		}

		return nil, fmt.Errorf("card %d definition: %w", card, err)
	}

	var handle any
	if kind == SND_NODE_MIXER {
		handle, err = ops.GetMixer(cardHandle)
	} else {
		handle, err = ops.GetPcm(cardHandle, device)
	}

	if err != nil {
		ops.CloseCard(cardHandle)

		if errors.Is(err, ErrNoCardDefinition) {
			return nil, nil
		}

		return nil, fmt.Errorf("card %d definition: %w", card, err)
	}

	return &SndNode{
		Card:       card,
		Device:     device,
		Kind:       kind,
		ops:        ops,
		cardHandle: cardHandle,
		handle:     handle,
	}, nil
}

type cardDefinition struct {
	Card  uint              `yaml:"-" toml:"-"`
	Name  string            `yaml:"name" toml:"name"`
	Pcm   []*nodeDefinition `yaml:"pcm" toml:"pcm"`
	Mixer *nodeDefinition   `yaml:"mixer" toml:"mixer"`
}

type nodeDefinition struct {
	ID     uint           `yaml:"id" toml:"id"`
	Name   string         `yaml:"name" toml:"name"`
	Type   string         `yaml:"type" toml:"type"`
	Plugin string         `yaml:"plugin" toml:"plugin"`
	Props  map[string]any `yaml:"props" toml:"props"`

	card *cardDefinition
}

// FileCardDefinitions reads card definitions from card<N>.yaml, card<N>.yml or card<N>.toml
// files in a directory. Parsed definitions are cached until Invalidate is called or Watch
// sees the directory change.
//
// Example (YAML):
//
//	name: virtual
//	pcm:
//	  - id: 0
//	    type: plugin
//	    plugin: loopback
//	mixer:
//	  type: plugin
//	  plugin: loopback
type FileCardDefinitions struct {
	dir string

	mu    sync.Mutex
	cache map[uint]*cardDefinition
}

// NewFileCardDefinitions returns a provider reading definitions from dir.
func NewFileCardDefinitions(dir string) *FileCardDefinitions {
	return &FileCardDefinitions{
		dir:   dir,
		cache: make(map[uint]*cardDefinition),
	}
}

// Dir returns the definition directory.
func (d *FileCardDefinitions) Dir() string {
	return d.dir
}

// Invalidate drops all cached definitions.
func (d *FileCardDefinitions) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()

	clear(d.cache)
}

var cardFileRegex = regexp.MustCompile(`^card(\d+)\.(yaml|yml|toml)$`)

// Cards returns the sorted numbers of all cards with a definition file.
func (d *FileCardDefinitions) Cards() ([]uint, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("could not read %s: %w", d.dir, err)
	}

	seen := make(map[uint]bool)
	var cards []uint

	for _, e := range entries {
		matches := cardFileRegex.FindStringSubmatch(e.Name())
		if matches == nil || e.IsDir() {
			continue
		}

		n, err := strconv.ParseUint(matches[1], 10, 32)
		if err != nil || seen[uint(n)] {
			continue
		}

		seen[uint(n)] = true
		cards = append(cards, uint(n))
	}

	sort.Slice(cards, func(i, j int) bool { return cards[i] < cards[j] })

	return cards, nil
}

// OpenCard implements SndNodeOps.
func (d *FileCardDefinitions) OpenCard(card uint) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if def, ok := d.cache[card]; ok {
		return def, nil
	}

	def, err := d.load(card)
	if err != nil {
		return nil, err
	}

	d.cache[card] = def

	return def, nil
}

func (d *FileCardDefinitions) load(card uint) (*cardDefinition, error) {
	for _, ext := range []string{"yaml", "yml", "toml"} {
		path := filepath.Join(d.dir, fmt.Sprintf("card%d.%s", card, ext))

		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}

			return nil, fmt.Errorf("could not read %s: %w", path, err)
		}

		def := &cardDefinition{}
		if ext == "toml" {
			err = toml.Unmarshal(data, def)
		} else {
			err = yaml.Unmarshal(data, def)
		}

		if err != nil {
			return nil, fmt.Errorf("could not parse %s: %w", path, err)
		}

		def.Card = card
		for _, n := range def.Pcm {
			if n != nil {
				n.card = def
			}
		}

		if def.Mixer != nil {
			def.Mixer.card = def
		}

		logger().WithFields(logrus.Fields{
			"card": card,
			"path": path,
			"pcms": len(def.Pcm),
		}).Debug("Loaded card definition")

		return def, nil
	}

	return nil, fmt.Errorf("card %d in %s: %w", card, d.dir, ErrNoCardDefinition)
}

// CloseCard implements SndNodeOps. Cached definitions stay alive until invalidated.
func (d *FileCardDefinitions) CloseCard(any) {}

// GetPcm implements SndNodeOps.
func (d *FileCardDefinitions) GetPcm(card any, id uint) (any, error) {
	def, ok := card.(*cardDefinition)
	if !ok {
		return nil, fmt.Errorf("invalid card handle %T", card)
	}

	for _, n := range def.Pcm {
		if n != nil && n.ID == id {
			return n, nil
		}
	}

	return nil, fmt.Errorf("card %d pcm %d: %w", def.Card, id, ErrNoCardDefinition)
}

// GetMixer implements SndNodeOps.
func (d *FileCardDefinitions) GetMixer(card any) (any, error) {
	def, ok := card.(*cardDefinition)
	if !ok {
		return nil, fmt.Errorf("invalid card handle %T", card)
	}

	if def.Mixer == nil {
		return nil, fmt.Errorf("card %d mixer: %w", def.Card, ErrNoCardDefinition)
	}

	return def.Mixer, nil
}

// GetInt implements SndNodeOps. Besides the node props, "type" (SND_NODE_TYPE_*) and "id"
// are available.
func (d *FileCardDefinitions) GetInt(node any, prop string) (int, error) {
	n, ok := node.(*nodeDefinition)
	if !ok {
		return 0, fmt.Errorf("invalid node handle %T", node)
	}

	switch prop {
	case "type":
		switch n.Type {
		case "plugin":
			return SND_NODE_TYPE_PLUGIN, nil
		case "", "hw":
			return SND_NODE_TYPE_HW, nil
		default:
			return 0, fmt.Errorf("unknown node type %q", n.Type)
		}
	case "id":
		return int(n.ID), nil
	}

	v, ok := n.Props[prop]
	if !ok {
		return 0, fmt.Errorf("property %q not found", prop)
	}

	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case uint64:
		return int(val), nil
	case float64:
		return int(val), nil
	case bool:
		if val {
			return 1, nil
		}

		return 0, nil
	case string:
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("property %q is not an integer: %w", prop, err)
		}

		return i, nil
	default:
		return 0, fmt.Errorf("property %q has unsupported type %T", prop, v)
	}
}

// GetStr implements SndNodeOps. Besides the node props, "type", "plugin" and "name"
// are available; a node without a name inherits the card name.
func (d *FileCardDefinitions) GetStr(node any, prop string) (string, error) {
	n, ok := node.(*nodeDefinition)
	if !ok {
		return "", fmt.Errorf("invalid node handle %T", node)
	}

	switch prop {
	case "type":
		return n.Type, nil
	case "plugin":
		return n.Plugin, nil
	case "name":
		if n.Name == "" && n.card != nil {
			return n.card.Name, nil
		}

		return n.Name, nil
	}

	v, ok := n.Props[prop]
	if !ok {
		return "", fmt.Errorf("property %q not found", prop)
	}

	if s, ok := v.(string); ok {
		return s, nil
	}

	return fmt.Sprint(v), nil
}

// Watch invalidates the cache whenever a file in the definition directory changes.
// It blocks until ctx is canceled.
func (d *FileCardDefinitions) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(d.dir); err != nil {
		return fmt.Errorf("could not watch %s: %w", d.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !cardFileRegex.MatchString(filepath.Base(ev.Name)) {
				continue
			}

			logger().WithFields(logrus.Fields{
				"file": ev.Name,
				"op":   ev.Op.String(),
			}).Debug("Card definition changed")

			d.Invalidate()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger().WithError(err).Warn("Card definition watcher error")
		}
	}
}
