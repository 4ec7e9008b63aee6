package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/austinkregel/local-media/vizplayer/internal/session"
	"github.com/austinkregel/local-media/vizplayer/internal/visual"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	wsWrite    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// local visualizer pages are served from file:// or localhost
		return true
	},
}

// StatusSource reports session status. session.Session implements it.
type StatusSource interface {
	Status() session.Status
}

// WebServer streams frames over websockets and serves status as JSON.
type WebServer struct {
	addr   string
	frames FrameFeed
	status StatusSource
	log    zerolog.Logger
}

// NewWebServer creates a web server for addr, e.g. "127.0.0.1:8377".
func NewWebServer(addr string, frames FrameFeed, status StatusSource) *WebServer {
	return &WebServer{
		addr:   addr,
		frames: frames,
		status: status,
		log:    log.With().Str("component", "ws").Logger(),
	}
}

// Router returns the HTTP routes. Unknown methods on known paths get 405.
func (w *WebServer) Router() *gin.Engine {
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), w.requestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{http.MethodGet}
	r.Use(cors.New(corsConfig))

	r.GET("/frames", w.serveFrames)
	r.GET("/status", w.serveStatus)
	return r
}

// requestLogger logs each request at debug level in place of gin's
// stdout logger.
func (w *WebServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		w.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

// Start serves until ctx is done.
func (w *WebServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              w.addr,
		Handler:           w.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		w.log.Info().Str("addr", w.addr).Msg("web server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	return nil
}

func (w *WebServer) serveStatus(c *gin.Context) {
	c.JSON(http.StatusOK, w.status.Status())
}

func (w *WebServer) serveFrames(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		w.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	id := uuid.NewString()
	w.log.Debug().Str("client", id).Msg("frame stream opened")

	frames, unsubscribe := w.frames.Subscribe()
	closed := make(chan struct{})
	go w.readPump(conn, closed)
	w.writePump(c.Request.Context(), conn, frames, closed)

	unsubscribe()
	w.log.Debug().Str("client", id).Msg("frame stream closed")
}

// readPump discards client messages and tracks pongs. closed is closed
// when the peer goes away.
func (w *WebServer) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				w.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
	}
}

// writePump sends each published frame as JSON and pings the peer until
// either side goes away.
func (w *WebServer) writePump(ctx context.Context, conn *websocket.Conn, frames <-chan *visual.Frame, closed <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	if f := w.frames.Current(); f != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWrite))
		if err := conn.WriteJSON(f); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWrite))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		case <-closed:
			return
		case f := <-frames:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWrite))
			if err := conn.WriteJSON(f); err != nil {
				w.log.Debug().Err(err).Msg("websocket write error")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWrite))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
