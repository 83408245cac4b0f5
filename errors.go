package alsa

import "errors"

var (
	// ErrPluginNotFound is returned when a card definition names a plugin that was never registered.
	ErrPluginNotFound = errors.New("plugin not found")
	// ErrNoCardDefinition is returned by card definition providers for cards they do not describe.
	ErrNoCardDefinition = errors.New("no card definition")
	// ErrNotSupported is returned for operations the backend of a PCM or mixer cannot perform.
	ErrNotSupported = errors.New("operation not supported")
)
