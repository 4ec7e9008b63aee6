// Package config handles the player settings file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/austinkregel/local-media/vizplayer/internal/types"
)

// Config represents the player settings
type Config struct {
	// LastFolder is the most recently opened music folder
	LastFolder string `json:"lastFolder"`

	Audio      AudioConfig      `json:"audio"`
	Playback   PlaybackConfig   `json:"playback"`
	Visualizer VisualizerConfig `json:"visualizer"`
	Behavior   BehaviorConfig   `json:"behavior"`
}

// AudioConfig contains audio-related settings
type AudioConfig struct {
	// SampleRate for audio output (default: 44100)
	SampleRate int `json:"sampleRate"`

	// BufferSize in milliseconds (default: 100)
	BufferSizeMs int `json:"bufferSizeMs"`

	// Volume level 0.0 - 1.0 (default: 0.7)
	Volume float64 `json:"volume"`
}

// PlaybackConfig holds the remembered playlist preferences
type PlaybackConfig struct {
	Shuffle bool   `json:"shuffle"`
	Repeat  string `json:"repeat"` // "off", "one", "all"

	// RememberPlaylist persists the playlist across restarts
	RememberPlaylist bool `json:"rememberPlaylist"`
}

// VisualizerConfig contains visualization settings
type VisualizerConfig struct {
	Bars    int  `json:"bars"`
	FPS     int  `json:"fps"`
	Stepped bool `json:"stepped"` // three fixed colors instead of a gradient
}

// BehaviorConfig contains behavior-related settings
type BehaviorConfig struct {
	// Notifications shows desktop notifications for track errors
	Notifications bool `json:"notifications"`

	// WatchFolder adds files that appear in LastFolder while running
	WatchFolder bool `json:"watchFolder"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:   44100,
			BufferSizeMs: 100,
			Volume:       0.7,
		},
		Playback: PlaybackConfig{
			Repeat:           types.RepeatOff.String(),
			RememberPlaylist: true,
		},
		Visualizer: VisualizerConfig{
			Bars: 32,
			FPS:  30,
		},
		Behavior: BehaviorConfig{
			Notifications: true,
		},
	}
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.RWMutex
	configDir  string
	configPath string
	config     *Config
}

// NewManager creates a new configuration manager
func NewManager(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configPath: filepath.Join(configDir, "config.json"),
		config:     DefaultConfig(),
	}
}

// DefaultDir returns ~/.config/vizplayer (or the platform equivalent).
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(base, "vizplayer"), nil
}

// Load reads the configuration from disk, writing defaults when the file
// does not exist yet.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		m.config = DefaultConfig()
		return m.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	config := DefaultConfig() // missing keys keep their defaults
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	config.normalize()

	m.config = config
	return nil
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = def.Audio.SampleRate
	}
	if c.Audio.BufferSizeMs <= 0 {
		c.Audio.BufferSizeMs = def.Audio.BufferSizeMs
	}
	c.Audio.Volume = max(0, min(1, c.Audio.Volume))
	if c.Visualizer.Bars <= 0 {
		c.Visualizer.Bars = def.Visualizer.Bars
	}
	if c.Visualizer.FPS <= 0 {
		c.Visualizer.FPS = def.Visualizer.FPS
	}
	c.Playback.Repeat = types.ParseRepeatMode(c.Playback.Repeat).String()
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.config
}

// Path returns the config file path
func (m *Manager) Path() string {
	return m.configPath
}

// Dir returns the config directory
func (m *Manager) Dir() string {
	return m.configDir
}

// Update applies fn to the configuration and saves it
func (m *Manager) Update(fn func(*Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.config)
	m.config.normalize()
	return m.saveLocked()
}

// SetVolume persists the volume level
func (m *Manager) SetVolume(v float64) error {
	return m.Update(func(c *Config) { c.Audio.Volume = v })
}

// SetShuffle persists the shuffle preference
func (m *Manager) SetShuffle(enabled bool) error {
	return m.Update(func(c *Config) { c.Playback.Shuffle = enabled })
}

// SetRepeat persists the repeat mode
func (m *Manager) SetRepeat(mode types.RepeatMode) error {
	return m.Update(func(c *Config) { c.Playback.Repeat = mode.String() })
}

// SetLastFolder persists the most recently opened folder
func (m *Manager) SetLastFolder(path string) error {
	return m.Update(func(c *Config) { c.LastFolder = path })
}
