package wsserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/huynguyengl99/fast-channels/consumer"
	"github.com/huynguyengl99/fast-channels/core/logger"
)

// Server adapts an http.Handler-shaped endpoint to a consumer.Application by
// upgrading every incoming request to a WebSocket connection and running the
// application against it until the connection closes.
type Server struct {
	app      consumer.Application
	upgrader websocket.Upgrader
	logger   *slog.Logger

	writeTimeout time.Duration
}

// Option configures a Server built by New.
type Option func(*Server)

// WithCheckOrigin overrides the upgrader's origin check. The default accepts
// every origin, matching the teacher's permissive local-dev CORS defaults;
// production deployments should supply their own.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(s *Server) { s.upgrader.CheckOrigin = fn }
}

// WithLogger sets the logger used to report upgrade failures and consumer
// errors that surface after the connection is already established.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithBufferSizes sets the upgrader's read/write buffer sizes.
func WithBufferSizes(read, write int) Option {
	return func(s *Server) {
		s.upgrader.ReadBufferSize = read
		s.upgrader.WriteBufferSize = write
	}
}

// WithWriteTimeout bounds how long a single outbound frame write (including
// the close handshake) may take.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) { s.writeTimeout = d }
}

// New builds a Server that runs app over every upgraded connection.
func New(app consumer.Application, opts ...Option) *Server {
	s := &Server{
		app: app,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:       logger.Discard(),
		writeTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP implements http.Handler. Each request that completes the
// WebSocket handshake gets its own connection scope, identified by a
// generated connection ID, and runs the Server's Application until the
// client disconnects, the application stops itself, or the request context
// is cancelled.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	connID := uuid.New().String()
	log := s.logger.With(slog.String("connection_id", connID))

	scope := consumer.Scope{
		"type":          "websocket",
		"connection_id": connID,
		"path":          r.URL.Path,
		"query_string":  r.URL.RawQuery,
		"headers":       r.Header,
		"remote_addr":   r.RemoteAddr,
		"subprotocols":  websocket.Subprotocols(r),
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetCloseHandler(func(code int, reason string) error {
		cancel()
		return nil
	})

	receive := s.receiveFunc(conn)
	send := s.sendFunc(conn)

	if err := s.app(ctx, scope, receive, send); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("consumer exited with error", logger.Error(err))
	}
}

// receiveFunc returns a consumer.ReceiveFunc that synthesizes the initial
// "websocket.connect" event, then translates subsequent frame reads into
// "websocket.receive" (or a terminal "websocket.disconnect" once the
// connection drops).
func (s *Server) receiveFunc(conn *websocket.Conn) consumer.ReceiveFunc {
	connected := false
	return func(ctx context.Context) (consumer.Message, error) {
		if !connected {
			connected = true
			return consumer.Message{"type": "websocket.connect"}, nil
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return consumer.Message{"type": "websocket.disconnect", "code": closeCodeOf(err)}, nil
		}
		if msgType == websocket.TextMessage {
			text := string(data)
			return consumer.Message{"type": "websocket.receive", "text": text}, nil
		}
		return consumer.Message{"type": "websocket.receive", "bytes": data}, nil
	}
}

// sendFunc returns a consumer.SendFunc that writes "websocket.send" events
// as frames and translates "websocket.close" into a close handshake.
// "websocket.accept" is a no-op on this transport since the handshake has
// already completed by the time ServeHTTP's Application runs.
func (s *Server) sendFunc(conn *websocket.Conn) consumer.SendFunc {
	return func(ctx context.Context, event consumer.Message) error {
		switch event.Type() {
		case "websocket.accept":
			return nil
		case "websocket.send":
			if text, ok := event["text"].(string); ok {
				return conn.WriteMessage(websocket.TextMessage, []byte(text))
			}
			if data, ok := event["bytes"].([]byte); ok {
				return conn.WriteMessage(websocket.BinaryMessage, data)
			}
			return fmt.Errorf("wsserver: websocket.send event carries neither text nor bytes")
		case "websocket.close":
			code := websocket.CloseNormalClosure
			if c, ok := event["code"].(int); ok && c != 0 {
				code = c
			}
			reason, _ := event["reason"].(string)
			deadline := time.Now().Add(s.writeTimeout)
			return conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		default:
			return fmt.Errorf("wsserver: unsupported outbound event type %q", event.Type())
		}
	}
}

func closeCodeOf(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}
