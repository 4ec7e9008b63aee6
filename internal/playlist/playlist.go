// Package playlist manages the ordered track list, the cursor and the
// shuffle/repeat ordering policy.
package playlist

import (
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/austinkregel/local-media/vizplayer/internal/types"
)

// ChangeCallback is called when the playlist state changes
type ChangeCallback func()

// Manager owns the playlist. The ordered sequence is the canonical order;
// when shuffle is on, a permutation of ordered indices is the active ordering
// and the cursor indexes into it.
type Manager struct {
	mu       sync.RWMutex
	tracks   []types.Track
	order    []int // shuffle permutation, nil until materialized
	cursor   int   // position in the active ordering, -1 when none
	shuffle  bool
	repeat   types.RepeatMode
	rng      *rand.Rand
	onChange ChangeCallback
}

// NewManager creates a new playlist manager
func NewManager() *Manager {
	return NewManagerWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewManagerWithRand creates a manager drawing shuffle orders from rng.
func NewManagerWithRand(rng *rand.Rand) *Manager {
	return &Manager{
		tracks: make([]types.Track, 0),
		cursor: -1,
		repeat: types.RepeatOff,
		rng:    rng,
	}
}

// SetOnChange sets a callback to be called when the playlist changes
func (m *Manager) SetOnChange(callback ChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = callback
}

// notifyChange calls the onChange callback if set (must be called without lock held)
func (m *Manager) notifyChange() {
	m.mu.RLock()
	callback := m.onChange
	m.mu.RUnlock()
	if callback != nil {
		callback()
	}
}

// Load replaces the playlist. The cursor resets to none.
func (m *Manager) Load(tracks []types.Track) {
	m.mu.Lock()
	m.tracks = slices.Clone(tracks)
	m.cursor = -1
	m.order = nil
	m.mu.Unlock()
	m.notifyChange()
}

// Clear empties the playlist
func (m *Manager) Clear() {
	m.Load(nil)
}

// Add appends a track. With shuffle on it lands at a random position after
// the cursor in the permutation so new tracks do not always play last.
func (m *Manager) Add(track types.Track) {
	m.mu.Lock()

	m.ensureOrder()
	m.tracks = append(m.tracks, track)
	if m.shuffle {
		newIdx := len(m.tracks) - 1
		insertPos := m.cursor + 1 + m.rng.Intn(len(m.order)-m.cursor)
		m.order = slices.Insert(m.order, insertPos, newIdx)
	}

	m.mu.Unlock()
	m.notifyChange()
}

// Remove removes the track at index in the ordered sequence. When it was the
// current track the cursor moves to the next track of the active ordering,
// wrapping under RepeatAll, and becomes none otherwise. removedCurrent
// reports whether the current track was removed.
func (m *Manager) Remove(index int) (removedCurrent bool, ok bool) {
	m.mu.Lock()

	if index < 0 || index >= len(m.tracks) {
		m.mu.Unlock()
		return false, false
	}

	m.ensureOrder()
	pos := index
	if m.shuffle {
		pos = slices.Index(m.order, index)
		m.order = slices.Delete(m.order, pos, pos+1)
		for i, idx := range m.order {
			if idx > index {
				m.order[i] = idx - 1
			}
		}
	}
	m.tracks = slices.Delete(m.tracks, index, index+1)

	switch {
	case m.cursor < 0:
	case pos < m.cursor:
		m.cursor--
	case pos == m.cursor:
		removedCurrent = true
		if m.cursor >= len(m.tracks) {
			if m.repeat == types.RepeatAll && len(m.tracks) > 0 {
				m.cursor = 0
			} else {
				m.cursor = -1
			}
		}
	}

	m.mu.Unlock()
	m.notifyChange()
	return removedCurrent, true
}

// Next moves to the next track of the active ordering and returns it.
// With RepeatOff at the end it returns false (playlist exhausted) and leaves
// the cursor alone. With RepeatOne it returns the current track again.
func (m *Manager) Next() (types.Track, bool) {
	return m.move(1, false)
}

// Previous moves to the previous track of the active ordering and returns it.
func (m *Manager) Previous() (types.Track, bool) {
	return m.move(-1, false)
}

// Skip is Next for an explicit user request: RepeatOne moves like RepeatAll.
func (m *Manager) Skip() (types.Track, bool) {
	return m.move(1, true)
}

// SkipBack is Previous for an explicit user request: RepeatOne moves like
// RepeatAll.
func (m *Manager) SkipBack() (types.Track, bool) {
	return m.move(-1, true)
}

// Peek returns what Next would return without moving the cursor. A RepeatAll
// wrap under shuffle reports the head of the current permutation, which may
// differ from the track a real wrap picks.
func (m *Manager) Peek() (types.Track, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.tracks) == 0 {
		return types.Track{}, false
	}
	m.ensureOrder()

	switch {
	case m.repeat == types.RepeatOne && m.cursor >= 0:
		return m.tracks[m.itemIndex(m.cursor)], true
	case m.cursor+1 < len(m.tracks):
		return m.tracks[m.itemIndex(m.cursor+1)], true
	case m.repeat == types.RepeatAll:
		return m.tracks[m.itemIndex(0)], true
	}
	return types.Track{}, false
}

func (m *Manager) move(step int, user bool) (types.Track, bool) {
	m.mu.Lock()

	if len(m.tracks) == 0 || (step < 0 && m.cursor < 0) {
		m.mu.Unlock()
		return types.Track{}, false
	}
	m.ensureOrder()

	repeat := m.repeat
	if user && repeat == types.RepeatOne {
		repeat = types.RepeatAll
	}

	if repeat == types.RepeatOne && m.cursor >= 0 {
		track := m.tracks[m.itemIndex(m.cursor)]
		m.mu.Unlock()
		return track, true
	}

	next := m.cursor + step
	switch {
	case next >= 0 && next < len(m.tracks):
		m.cursor = next
	case repeat != types.RepeatAll:
		m.mu.Unlock()
		return types.Track{}, false
	case step > 0:
		if m.shuffle {
			m.order = m.permutation(m.itemIndex(m.cursor))
		}
		m.cursor = 0
	default:
		m.cursor = len(m.tracks) - 1
	}

	track := m.tracks[m.itemIndex(m.cursor)]
	m.mu.Unlock()
	m.notifyChange()
	return track, true
}

// Current returns the track at the cursor
func (m *Manager) Current() (types.Track, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cursor < 0 || len(m.tracks) == 0 {
		return types.Track{}, false
	}
	m.ensureOrder()
	return m.tracks[m.itemIndex(m.cursor)], true
}

// Select moves the cursor to the track at index in the ordered sequence.
func (m *Manager) Select(index int) (types.Track, bool) {
	m.mu.Lock()

	if index < 0 || index >= len(m.tracks) {
		m.mu.Unlock()
		return types.Track{}, false
	}
	m.ensureOrder()

	if m.shuffle {
		m.cursor = slices.Index(m.order, index)
	} else {
		m.cursor = index
	}
	track := m.tracks[index]

	m.mu.Unlock()
	m.notifyChange()
	return track, true
}

// UpdateTrack replaces the stored track with the same path, e.g. once its
// duration is known after decoding.
func (m *Manager) UpdateTrack(track types.Track) {
	m.mu.Lock()
	for i := range m.tracks {
		if m.tracks[i].Path == track.Path {
			m.tracks[i] = track
		}
	}
	m.mu.Unlock()
}

// SetShuffle enables or disables shuffle mode. Enabling it puts the current
// track first in a fresh permutation so it is never picked again as the
// immediate next track. Disabling it maps the cursor back to the ordered
// position of the current track.
func (m *Manager) SetShuffle(enabled bool) {
	m.mu.Lock()

	if enabled == m.shuffle {
		m.mu.Unlock()
		return
	}

	if enabled {
		m.shuffle = true
		if m.cursor >= 0 {
			m.order = m.permutationFrom(m.cursor)
			m.cursor = 0
		} else {
			m.order = m.permutation(-1)
		}
	} else {
		if m.cursor >= 0 && m.order != nil {
			m.cursor = m.order[m.cursor]
		}
		m.shuffle = false
		m.order = nil
	}

	m.mu.Unlock()
	m.notifyChange()
}

// Shuffle returns whether shuffle is enabled
func (m *Manager) Shuffle() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shuffle
}

// SetRepeat sets the repeat mode
func (m *Manager) SetRepeat(mode types.RepeatMode) {
	m.mu.Lock()
	m.repeat = mode
	m.mu.Unlock()
	m.notifyChange()
}

// Repeat returns the current repeat mode
func (m *Manager) Repeat() types.RepeatMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.repeat
}

// Sort reorders the ordered sequence by key and keeps the current track
// selected. With shuffle on the permutation is regenerated from the current
// track.
func (m *Manager) Sort(key types.SortKey) {
	m.mu.Lock()

	if len(m.tracks) == 0 {
		m.mu.Unlock()
		return
	}
	m.ensureOrder()

	currentPath := ""
	if m.cursor >= 0 {
		currentPath = m.tracks[m.itemIndex(m.cursor)].Path
	}

	slices.SortStableFunc(m.tracks, func(a, b types.Track) int {
		return strings.Compare(sortKey(a, key), sortKey(b, key))
	})

	m.cursor = -1
	if currentPath != "" {
		m.cursor = slices.IndexFunc(m.tracks, func(t types.Track) bool { return t.Path == currentPath })
	}
	if m.shuffle {
		if m.cursor >= 0 {
			m.order = m.permutationFrom(m.cursor)
			m.cursor = 0
		} else {
			m.order = m.permutation(-1)
		}
	}

	m.mu.Unlock()
	m.notifyChange()
}

func sortKey(t types.Track, key types.SortKey) string {
	title := strings.ToLower(t.Name())
	switch key {
	case types.SortArtist:
		return strings.ToLower(t.Metadata.Artist) + "\x00" + title
	case types.SortAlbum:
		return strings.ToLower(t.Metadata.Album) + "\x00" + title
	default:
		return title
	}
}

// Tracks returns a copy of the ordered sequence
func (m *Manager) Tracks() []types.Track {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.tracks)
}

// Len returns the number of tracks
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tracks)
}

// Index returns the ordered index of the current track, or -1.
func (m *Manager) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cursor < 0 {
		return -1
	}
	m.ensureOrder()
	return m.itemIndex(m.cursor)
}

// Order returns the active ordering as ordered indices.
func (m *Manager) Order() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ensureOrder()
	out := make([]int, len(m.tracks))
	for pos := range out {
		out[pos] = m.itemIndex(pos)
	}
	return out
}

// ensureOrder materializes the shuffle permutation on first use after the
// ordered sequence was replaced. Must be called with the lock held.
func (m *Manager) ensureOrder() {
	if m.shuffle && len(m.order) != len(m.tracks) {
		m.order = m.permutation(-1)
		if m.cursor >= len(m.order) {
			m.cursor = -1
		}
	}
}

// itemIndex returns the ordered index for a position in the active ordering
func (m *Manager) itemIndex(pos int) int {
	if !m.shuffle {
		return pos
	}
	return m.order[pos]
}

// permutation returns a shuffled order of all indices whose first element is
// not avoid (when there is a choice).
func (m *Manager) permutation(avoid int) []int {
	n := len(m.tracks)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	// Fisher-Yates shuffle
	for i := n - 1; i > 0; i-- {
		j := m.rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	if n > 1 && order[0] == avoid {
		j := 1 + m.rng.Intn(n-1)
		order[0], order[j] = order[j], order[0]
	}
	return order
}

// permutationFrom returns a shuffled order that starts with first.
func (m *Manager) permutationFrom(first int) []int {
	order := m.permutation(-1)
	pos := slices.Index(order, first)
	order[0], order[pos] = order[pos], order[0]
	tail := order[1:]
	for i := len(tail) - 1; i > 0; i-- {
		j := m.rng.Intn(i + 1)
		tail[i], tail[j] = tail[j], tail[i]
	}
	return order
}
