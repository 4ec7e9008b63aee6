//go:build linux

package media

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	mprisInterface       = "org.mpris.MediaPlayer2"
	mprisPlayerInterface = "org.mpris.MediaPlayer2.Player"
	mprisBusName         = "org.mpris.MediaPlayer2.vizplayer"
	mprisObjectPath      = "/org/mpris/MediaPlayer2"
	propertiesInterface  = "org.freedesktop.DBus.Properties"
	identity             = "vizplayer"
)

var supportedMimeTypes = []string{
	"audio/mpeg", "audio/wav", "audio/ogg", "audio/flac",
	"audio/x-m4a", "audio/aac", "audio/x-ms-wma",
}

// MPRISSession implements MPRIS media session for Linux. D-Bus method
// calls arrive on the bus goroutine, so all state is guarded by mu.
type MPRISSession struct {
	mu         sync.Mutex
	conn       *dbus.Conn
	handler    CommandHandler
	metadata   Metadata
	state      PlaybackState
	position   time.Duration
	shuffle    bool
	loopStatus LoopStatus
	volume     float64
}

// NewSession creates a new MPRIS media session
func NewSession() (Session, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	reply, err := conn.RequestName(mprisBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("bus name %s already taken", mprisBusName)
	}

	session := newMPRISSession()
	session.conn = conn

	if err := session.exportInterfaces(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to export interfaces: %w", err)
	}

	return session, nil
}

func newMPRISSession() *MPRISSession {
	return &MPRISSession{
		state:      StateStopped,
		loopStatus: LoopNone,
		volume:     1.0,
	}
}

func (s *MPRISSession) exportInterfaces() error {
	for _, iface := range []string{mprisInterface, mprisPlayerInterface, propertiesInterface} {
		if err := s.conn.Export(s, dbus.ObjectPath(mprisObjectPath), iface); err != nil {
			return err
		}
	}
	return nil
}

// UpdateMetadata updates the track metadata
func (s *MPRISSession) UpdateMetadata(metadata Metadata) error {
	s.mu.Lock()
	s.metadata = metadata
	props := map[string]dbus.Variant{
		"Metadata": dbus.MakeVariant(s.metadataMap()),
	}
	s.mu.Unlock()

	return s.emitPropertiesChanged(mprisPlayerInterface, props)
}

// UpdatePlaybackState updates the playback state. Clients extrapolate the
// position from Rate, so Seeked is only emitted when playback (re)starts.
func (s *MPRISSession) UpdatePlaybackState(state PlaybackState, position time.Duration) error {
	s.mu.Lock()
	oldState := s.state
	s.state = state
	s.position = position
	props := map[string]dbus.Variant{
		"PlaybackStatus": dbus.MakeVariant(s.playbackStatus()),
	}
	s.mu.Unlock()

	if oldState != state && state == StatePlaying {
		s.emitSeeked(position)
	}

	return s.emitPropertiesChanged(mprisPlayerInterface, props)
}

func (s *MPRISSession) emitSeeked(position time.Duration) error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Emit(
		dbus.ObjectPath(mprisObjectPath),
		mprisPlayerInterface+".Seeked",
		position.Microseconds(),
	)
}

// UpdateShuffle updates the shuffle state
func (s *MPRISSession) UpdateShuffle(enabled bool) error {
	s.mu.Lock()
	s.shuffle = enabled
	s.mu.Unlock()

	return s.emitPropertiesChanged(mprisPlayerInterface, map[string]dbus.Variant{
		"Shuffle": dbus.MakeVariant(enabled),
	})
}

// UpdateLoopStatus updates the loop/repeat mode
func (s *MPRISSession) UpdateLoopStatus(status LoopStatus) error {
	s.mu.Lock()
	s.loopStatus = status
	s.mu.Unlock()

	return s.emitPropertiesChanged(mprisPlayerInterface, map[string]dbus.Variant{
		"LoopStatus": dbus.MakeVariant(string(status)),
	})
}

// UpdateVolume updates the volume shown by clients
func (s *MPRISSession) UpdateVolume(volume float64) error {
	s.mu.Lock()
	s.volume = volume
	s.mu.Unlock()

	return s.emitPropertiesChanged(mprisPlayerInterface, map[string]dbus.Variant{
		"Volume": dbus.MakeVariant(volume),
	})
}

// SetCommandHandler sets the handler for media commands
func (s *MPRISSession) SetCommandHandler(handler CommandHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Close releases resources
func (s *MPRISSession) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// dispatch forwards a command to the handler outside the lock.
func (s *MPRISSession) dispatch(cmd Command, data any) *dbus.Error {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()

	if handler == nil {
		return nil
	}
	if err := handler.OnCommand(cmd, data); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// org.mpris.MediaPlayer2 methods

func (s *MPRISSession) Raise() *dbus.Error { return nil }
func (s *MPRISSession) Quit() *dbus.Error  { return nil }

// org.mpris.MediaPlayer2.Player methods

func (s *MPRISSession) Play() *dbus.Error      { return s.dispatch(CmdPlay, nil) }
func (s *MPRISSession) Pause() *dbus.Error     { return s.dispatch(CmdPause, nil) }
func (s *MPRISSession) PlayPause() *dbus.Error { return s.dispatch(CmdPlayPause, nil) }
func (s *MPRISSession) Stop() *dbus.Error      { return s.dispatch(CmdStop, nil) }
func (s *MPRISSession) Next() *dbus.Error      { return s.dispatch(CmdNext, nil) }
func (s *MPRISSession) Previous() *dbus.Error  { return s.dispatch(CmdPrevious, nil) }

// Seek moves relative to the last reported position.
func (s *MPRISSession) Seek(offset int64) *dbus.Error {
	s.mu.Lock()
	newPos := max(s.position+time.Duration(offset)*time.Microsecond, 0)
	s.mu.Unlock()
	return s.dispatch(CmdSeek, newPos)
}

// SetPosition seeks to an absolute position when trackID is current.
func (s *MPRISSession) SetPosition(trackID dbus.ObjectPath, position int64) *dbus.Error {
	s.mu.Lock()
	current := trackObjectPath(s.metadata.TrackID)
	s.mu.Unlock()

	if trackID != current {
		return nil
	}
	return s.dispatch(CmdSeek, time.Duration(position)*time.Microsecond)
}

// org.freedesktop.DBus.Properties methods

func (s *MPRISSession) Get(iface, prop string) (dbus.Variant, *dbus.Error) {
	var all map[string]dbus.Variant
	switch iface {
	case mprisInterface:
		all = mediaPlayer2Properties()
	case mprisPlayerInterface:
		s.mu.Lock()
		all = s.playerProperties()
		s.mu.Unlock()
	default:
		return dbus.Variant{}, dbus.MakeFailedError(fmt.Errorf("unknown interface: %s", iface))
	}

	v, ok := all[prop]
	if !ok {
		return dbus.Variant{}, dbus.MakeFailedError(fmt.Errorf("unknown property: %s", prop))
	}
	return v, nil
}

func (s *MPRISSession) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	switch iface {
	case mprisInterface:
		return mediaPlayer2Properties(), nil
	case mprisPlayerInterface:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.playerProperties(), nil
	}
	return nil, dbus.MakeFailedError(fmt.Errorf("unknown interface: %s", iface))
}

func (s *MPRISSession) Set(iface, prop string, value dbus.Variant) *dbus.Error {
	if iface != mprisPlayerInterface {
		return nil
	}

	switch prop {
	case "Shuffle":
		enabled, ok := value.Value().(bool)
		if !ok {
			return dbus.MakeFailedError(fmt.Errorf("invalid type for Shuffle"))
		}
		return s.dispatch(CmdSetShuffle, enabled)
	case "LoopStatus":
		status, ok := value.Value().(string)
		if !ok {
			return dbus.MakeFailedError(fmt.Errorf("invalid type for LoopStatus"))
		}
		return s.dispatch(CmdSetLoopStatus, LoopStatus(status))
	case "Volume":
		volume, ok := value.Value().(float64)
		if !ok {
			return dbus.MakeFailedError(fmt.Errorf("invalid type for Volume"))
		}
		return s.dispatch(CmdSetVolume, volume)
	}
	return nil
}

func mediaPlayer2Properties() map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"CanQuit":             dbus.MakeVariant(false),
		"CanRaise":            dbus.MakeVariant(false),
		"HasTrackList":        dbus.MakeVariant(false),
		"Identity":            dbus.MakeVariant(identity),
		"DesktopEntry":        dbus.MakeVariant(identity),
		"SupportedUriSchemes": dbus.MakeVariant([]string{"file"}),
		"SupportedMimeTypes":  dbus.MakeVariant(supportedMimeTypes),
	}
}

// playerProperties must be called with mu held.
func (s *MPRISSession) playerProperties() map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"PlaybackStatus": dbus.MakeVariant(s.playbackStatus()),
		"Metadata":       dbus.MakeVariant(s.metadataMap()),
		"Position":       dbus.MakeVariant(s.position.Microseconds()),
		"Rate":           dbus.MakeVariant(1.0),
		"MinimumRate":    dbus.MakeVariant(1.0),
		"MaximumRate":    dbus.MakeVariant(1.0),
		"CanGoNext":      dbus.MakeVariant(true),
		"CanGoPrevious":  dbus.MakeVariant(true),
		"CanPlay":        dbus.MakeVariant(true),
		"CanPause":       dbus.MakeVariant(true),
		"CanSeek":        dbus.MakeVariant(s.metadata.Duration > 0),
		"CanControl":     dbus.MakeVariant(true),
		"Volume":         dbus.MakeVariant(s.volume),
		"Shuffle":        dbus.MakeVariant(s.shuffle),
		"LoopStatus":     dbus.MakeVariant(string(s.loopStatus)),
	}
}

func (s *MPRISSession) playbackStatus() string {
	switch s.state {
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

func (s *MPRISSession) metadataMap() map[string]dbus.Variant {
	m := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(trackObjectPath(s.metadata.TrackID)),
	}
	if s.metadata.Title != "" {
		m["xesam:title"] = dbus.MakeVariant(s.metadata.Title)
	}
	if s.metadata.Artist != "" {
		m["xesam:artist"] = dbus.MakeVariant([]string{s.metadata.Artist})
	}
	if s.metadata.Album != "" {
		m["xesam:album"] = dbus.MakeVariant(s.metadata.Album)
	}
	if s.metadata.Duration > 0 {
		m["mpris:length"] = dbus.MakeVariant(s.metadata.Duration.Microseconds())
	}
	if s.metadata.ArtPath != "" {
		m["mpris:artUrl"] = dbus.MakeVariant("file://" + s.metadata.ArtPath)
	}
	return m
}

// trackObjectPath derives a valid D-Bus object path from a track id.
func trackObjectPath(id string) dbus.ObjectPath {
	if id == "" {
		return dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack")
	}
	h := fnv.New64a()
	h.Write([]byte(id))
	return dbus.ObjectPath(fmt.Sprintf("/org/vizplayer/track/t%016x", h.Sum64()))
}

func (s *MPRISSession) emitPropertiesChanged(iface string, props map[string]dbus.Variant) error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Emit(
		dbus.ObjectPath(mprisObjectPath),
		propertiesInterface+".PropertiesChanged",
		iface,
		props,
		[]string{},
	)
}
