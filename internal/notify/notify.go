// Package notify shows desktop notifications for playback events.
package notify

import (
	"context"
	"fmt"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/austinkregel/local-media/vizplayer/internal/session"
)

// Sender delivers one notification.
type Sender interface {
	Send(title, message, icon string) error
}

// Desktop sends notifications through the OS notification service.
type Desktop struct{}

func init() {
	beeep.AppName = "vizplayer"
}

func (Desktop) Send(title, message, icon string) error {
	return beeep.Notify(title, message, icon)
}

// Notifier turns session events into notifications.
type Notifier struct {
	sender     Sender
	nowPlaying bool
	log        zerolog.Logger
}

// New creates a notifier. With nowPlaying set every track change is
// announced; otherwise only errors and the end of the playlist are.
func New(sender Sender, nowPlaying bool) *Notifier {
	return &Notifier{
		sender:     sender,
		nowPlaying: nowPlaying,
		log:        log.With().Str("component", "notify").Logger(),
	}
}

// Run consumes events until ctx is done or the channel closes.
func (n *Notifier) Run(ctx context.Context, events <-chan session.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			n.Handle(e)
		}
	}
}

// Handle sends the notification for e, if it warrants one.
func (n *Notifier) Handle(e session.Event) {
	title, message, icon, ok := n.render(e)
	if !ok {
		return
	}
	if err := n.sender.Send(title, message, icon); err != nil {
		n.log.Debug().Err(err).Str("kind", string(e.Kind)).Msg("notification failed")
	}
}

func (n *Notifier) render(e session.Event) (title, message, icon string, ok bool) {
	switch e.Kind {
	case session.EventTrackError:
		name := "track"
		if e.Track != nil {
			name = e.Track.Name()
		}
		return "Could not play " + name, e.Error, "", true
	case session.EventPlaylistEnded:
		return "Playlist finished", "Reached the end of the playlist", "", true
	case session.EventTrackChanged:
		if !n.nowPlaying || e.Track == nil {
			return "", "", "", false
		}
		meta := e.Track.Metadata
		return e.Track.Name(), fmt.Sprintf("%s - %s", meta.Artist, meta.Album), meta.ArtPath, true
	}
	return "", "", "", false
}
