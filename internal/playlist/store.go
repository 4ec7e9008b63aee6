package playlist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/austinkregel/local-media/vizplayer/internal/types"
)

// PersistentState represents the playlist state that gets persisted to disk
type PersistentState struct {
	Tracks       []types.Track `json:"tracks"`
	Index        int           `json:"index"` // ordered index of the current track, -1 for none
	Shuffle      bool          `json:"shuffle"`
	ShuffleOrder []int         `json:"shuffleOrder,omitempty"`
	Repeat       string        `json:"repeat"` // "off", "one", "all"
}

// Store handles playlist persistence to disk
type Store struct {
	mu       sync.Mutex
	filePath string
	manager  *Manager
}

// NewStore creates a new playlist store
func NewStore(configDir string, manager *Manager) *Store {
	return &Store{
		filePath: filepath.Join(configDir, "playlist.json"),
		manager:  manager,
	}
}

// Load loads the playlist state from disk. A missing file is not an error.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read playlist file: %w", err)
	}

	var state PersistentState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse playlist file: %w", err)
	}

	s.manager.restore(state)
	return nil
}

// Save saves the current playlist state to disk
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.manager.snapshot()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal playlist state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0700); err != nil {
		return fmt.Errorf("failed to create playlist directory: %w", err)
	}

	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write playlist file: %w", err)
	}

	return nil
}

// FilePath returns the path to the playlist file
func (s *Store) FilePath() string {
	return s.filePath
}

func (m *Manager) snapshot() PersistentState {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ensureOrder()
	state := PersistentState{
		Tracks:  make([]types.Track, len(m.tracks)),
		Index:   -1,
		Shuffle: m.shuffle,
		Repeat:  m.repeat.String(),
	}
	copy(state.Tracks, m.tracks)
	if m.cursor >= 0 {
		state.Index = m.itemIndex(m.cursor)
	}
	if m.shuffle {
		state.ShuffleOrder = append([]int(nil), m.order...)
	}
	return state
}

// restore replaces the manager state. An invalid saved permutation is
// regenerated and an out of range index resets the cursor to none.
func (m *Manager) restore(state PersistentState) {
	m.mu.Lock()

	m.tracks = state.Tracks
	if m.tracks == nil {
		m.tracks = make([]types.Track, 0)
	}
	m.shuffle = state.Shuffle
	m.repeat = types.ParseRepeatMode(state.Repeat)
	m.order = nil
	m.cursor = -1

	if m.shuffle {
		if validPermutation(state.ShuffleOrder, len(m.tracks)) {
			m.order = state.ShuffleOrder
		} else {
			m.order = m.permutation(-1)
		}
	}

	if state.Index >= 0 && state.Index < len(m.tracks) {
		if m.shuffle {
			for pos, idx := range m.order {
				if idx == state.Index {
					m.cursor = pos
				}
			}
		} else {
			m.cursor = state.Index
		}
	}

	m.mu.Unlock()
	m.notifyChange()
}

func validPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, idx := range order {
		if idx < 0 || idx >= n || seen[idx] {
			return false
		}
		seen[idx] = true
	}
	return true
}
