package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/austinkregel/local-media/vizplayer/internal/scanner"
	"github.com/austinkregel/local-media/vizplayer/internal/session"
	"github.com/austinkregel/local-media/vizplayer/internal/types"
	"github.com/austinkregel/local-media/vizplayer/internal/visual"
)

const writeTimeout = 5 * time.Second

// FrameFeed publishes visualization frames. visual.Clock implements it.
type FrameFeed interface {
	Current() *visual.Frame
	Subscribe() (<-chan *visual.Frame, func())
}

// Server handles IPC communication with clients
type Server struct {
	socketPath string
	session    *session.Session
	frames     FrameFeed
	scanner    *scanner.Scanner
	log        zerolog.Logger

	listener net.Listener
	mu       sync.Mutex
	clients  map[*client]struct{}
	ready    chan struct{}
}

// client is one connection. Responses and pushes share the socket, so
// every write goes through send.
type client struct {
	id      string
	conn    net.Conn
	writeMu sync.Mutex

	subMu       sync.Mutex
	unsubscribe func()
}

func (c *client) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := c.conn.Write(append(data, '\n'))
	return err
}

// NewServer creates a new IPC server
func NewServer(socketPath string, sess *session.Session, frames FrameFeed, sc *scanner.Scanner) *Server {
	return &Server{
		socketPath: socketPath,
		session:    sess,
		frames:     frames,
		scanner:    sc,
		clients:    make(map[*client]struct{}),
		ready:      make(chan struct{}),
		log:        log.With().Str("component", "ipc").Logger(),
	}
}

// Ready is closed once the socket is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Start listens on the socket and serves clients until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	// Remove existing socket file if it exists
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions (user-only)
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.log.Info().Str("socket", s.socketPath).Msg("server listening")
	close(s.ready)

	go s.acceptLoop(ctx)

	<-ctx.Done()

	s.mu.Lock()
	clientCount := len(s.clients)
	for c := range s.clients {
		c.conn.Close()
	}
	s.mu.Unlock()

	listener.Close()
	os.RemoveAll(s.socketPath)

	s.log.Info().Int("clients", clientCount).Msg("server stopped")
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn().Err(err).Msg("accept error")
			continue
		}

		c := &client{id: uuid.NewString(), conn: conn}
		s.mu.Lock()
		s.clients[c] = struct{}{}
		clientCount := len(s.clients)
		s.mu.Unlock()

		s.log.Debug().Str("client", c.id).Int("clients", clientCount).Msg("client connected")
		go s.handleConnection(ctx, c)
	}
}

func (s *Server) handleConnection(ctx context.Context, c *client) {
	defer func() {
		s.stopFrames(c)
		c.conn.Close()
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		s.log.Debug().Str("client", c.id).Msg("client disconnected")
	}()

	reader := bufio.NewReader(c.conn)
	for {
		// Read line (newline-delimited JSON)
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				s.log.Debug().Err(err).Str("client", c.id).Msg("read error")
			}
			return
		}

		req, err := DecodeRequest(line)
		if err != nil {
			s.log.Debug().Err(err).Str("client", c.id).Msg("invalid request format")
			if err := s.sendResponse(c, NewErrorResponse("invalid request format")); err != nil {
				return
			}
			continue
		}

		// frequent polling commands stay out of the log
		polling := req.Cmd == CmdStatus || req.Cmd == CmdFrame
		start := time.Now()
		resp := s.handleRequest(ctx, c, req)
		if !polling {
			ev := s.log.Debug()
			if !resp.Success {
				ev = s.log.Info().Str("error", resp.Error)
			}
			ev.Str("cmd", string(req.Cmd)).Dur("took", time.Since(start)).Msg("handled command")
		}

		if err := s.sendResponse(c, resp); err != nil {
			s.log.Debug().Err(err).Str("client", c.id).Msg("send error")
			return
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, c *client, req *Request) *Response {
	switch req.Cmd {
	case CmdLoad:
		return s.handleLoad(ctx, req)
	case CmdAdd:
		return s.handleAdd(ctx, req)
	case CmdRemove:
		return s.withIndex(req, func(i int) error { return s.session.Remove(ctx, i) })
	case CmdPlay:
		return s.result(s.session.Play(ctx))
	case CmdPlayIndex:
		return s.withIndex(req, func(i int) error { return s.session.PlayIndex(ctx, i) })
	case CmdPause:
		return s.result(s.session.Pause(ctx))
	case CmdResume:
		return s.result(s.session.Resume(ctx))
	case CmdToggle:
		return s.result(s.session.TogglePause(ctx))
	case CmdStop:
		return s.result(s.session.Stop(ctx))
	case CmdClear:
		return s.result(s.session.Clear(ctx))
	case CmdNext:
		return s.result(s.session.Next(ctx))
	case CmdPrev:
		return s.result(s.session.Previous(ctx))
	case CmdSeek:
		return s.handleSeek(ctx, req)
	case CmdVolume:
		return s.handleVolume(ctx, req)
	case CmdShuffle:
		return s.handleShuffle(ctx, req)
	case CmdRepeat:
		return s.handleRepeat(ctx, req)
	case CmdSort:
		return s.handleSort(ctx, req)
	case CmdStatus:
		return s.handleStatus()
	case CmdGetPlaylist:
		return s.handleGetPlaylist()
	case CmdFrame:
		return s.success(s.frames.Current())
	case CmdSubscribeFrames:
		return s.handleSubscribeFrames(c)
	case CmdUnsubscribeFrames:
		s.stopFrames(c)
		return s.success(map[string]bool{"subscribed": false})
	default:
		return NewErrorResponse("unknown command")
	}
}

// decode unmarshals request data into v.
func decode(req *Request, v any) error {
	if len(req.Data) == 0 {
		return fmt.Errorf("%s requires data", req.Cmd)
	}
	if err := json.Unmarshal(req.Data, v); err != nil {
		return fmt.Errorf("invalid %s request", req.Cmd)
	}
	return nil
}

// result answers a command with its error or the resulting status.
func (s *Server) result(err error) *Response {
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return s.handleStatus()
}

func (s *Server) success(data any) *Response {
	resp, err := NewSuccessResponse(data)
	if err != nil {
		return NewErrorResponse("internal error")
	}
	return resp
}

func (s *Server) withIndex(req *Request, fn func(int) error) *Response {
	var r IndexRequest
	if err := decode(req, &r); err != nil {
		return NewErrorResponse(err.Error())
	}
	return s.result(fn(r.Index))
}

func (s *Server) handleLoad(ctx context.Context, req *Request) *Response {
	var r LoadRequest
	if err := decode(req, &r); err != nil {
		return NewErrorResponse(err.Error())
	}
	if len(r.Paths) == 0 {
		return NewErrorResponse("paths are required")
	}

	res, err := s.scanner.Scan(ctx, r.Paths...)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	if len(res.Tracks) == 0 {
		return NewErrorResponse(scanner.ErrNoFiles.Error())
	}
	return s.result(s.session.LoadPlaylist(ctx, res.Tracks))
}

func (s *Server) handleAdd(ctx context.Context, req *Request) *Response {
	var r AddRequest
	if err := decode(req, &r); err != nil {
		return NewErrorResponse(err.Error())
	}
	if r.Path == "" {
		return NewErrorResponse("path is required")
	}
	if !scanner.IsSupported(r.Path) {
		return NewErrorResponse("unsupported file type")
	}
	if _, err := os.Stat(r.Path); err != nil {
		return NewErrorResponse(err.Error())
	}
	return s.result(s.session.Add(ctx, s.scanner.Track(r.Path)))
}

func (s *Server) handleSeek(ctx context.Context, req *Request) *Response {
	var r SeekRequest
	if err := decode(req, &r); err != nil {
		return NewErrorResponse(err.Error())
	}
	return s.result(s.session.Seek(ctx, time.Duration(r.Position)*time.Millisecond))
}

func (s *Server) handleVolume(ctx context.Context, req *Request) *Response {
	var r VolumeRequest
	if err := decode(req, &r); err != nil {
		return NewErrorResponse(err.Error())
	}
	return s.result(s.session.SetVolume(ctx, r.Level))
}

func (s *Server) handleShuffle(ctx context.Context, req *Request) *Response {
	var r ShuffleRequest
	if err := decode(req, &r); err != nil {
		return NewErrorResponse(err.Error())
	}
	return s.result(s.session.SetShuffle(ctx, r.Enabled))
}

var repeatModes = []string{"off", "one", "all"}

func (s *Server) handleRepeat(ctx context.Context, req *Request) *Response {
	var r RepeatRequest
	if err := decode(req, &r); err != nil {
		return NewErrorResponse(err.Error())
	}
	if !lo.Contains(repeatModes, strings.ToLower(r.Mode)) {
		return NewErrorResponse("invalid repeat mode: must be off, one, or all")
	}
	return s.result(s.session.SetRepeat(ctx, types.ParseRepeatMode(r.Mode)))
}

var sortKeys = []types.SortKey{types.SortName, types.SortArtist, types.SortAlbum}

func (s *Server) handleSort(ctx context.Context, req *Request) *Response {
	var r SortRequest
	if err := decode(req, &r); err != nil {
		return NewErrorResponse(err.Error())
	}
	key := types.SortKey(strings.ToLower(r.By))
	if !lo.Contains(sortKeys, key) {
		return NewErrorResponse("invalid sort key: must be name, artist, or album")
	}
	return s.result(s.session.Sort(ctx, key))
}

func (s *Server) handleStatus() *Response {
	return s.success(s.session.Status())
}

func (s *Server) handleGetPlaylist() *Response {
	st := s.session.Status()
	return s.success(PlaylistResponse{
		Tracks:  s.session.Playlist(),
		Index:   st.Index,
		Shuffle: st.Shuffle,
		Repeat:  st.Repeat,
	})
}

// handleSubscribeFrames starts pushing frames and session events to c.
// Subscribing twice is a no-op.
func (s *Server) handleSubscribeFrames(c *client) *Response {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.unsubscribe == nil {
		frames, cancelFrames := s.frames.Subscribe()
		events, cancelEvents := s.session.Events()
		done := make(chan struct{})
		go s.pushLoop(c, frames, events, done)

		c.unsubscribe = func() {
			cancelFrames()
			cancelEvents()
			close(done)
		}
		s.log.Debug().Str("client", c.id).Msg("client subscribed to frames")
	}
	return s.success(SubscribeResponse{Subscribed: true, ClientID: c.id})
}

func (s *Server) stopFrames(c *client) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

func (s *Server) pushLoop(c *client, frames <-chan *visual.Frame, events <-chan session.Event, done <-chan struct{}) {
	for {
		var (
			msg []byte
			err error
		)
		select {
		case <-done:
			return
		case f := <-frames:
			msg, err = NewPushMessage(PushFrame, f)
		case e := <-events:
			msg, err = NewPushMessage(PushEvent, e)
		}
		if err != nil {
			continue
		}
		if err := c.send(msg); err != nil {
			// the read side notices the broken connection and cleans up
			c.conn.Close()
			return
		}
	}
}

func (s *Server) sendResponse(c *client, resp *Response) error {
	data, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	return c.send(data)
}
