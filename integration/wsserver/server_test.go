package wsserver_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huynguyengl99/fast-channels/consumer"
	"github.com/huynguyengl99/fast-channels/core/channels"
	"github.com/huynguyengl99/fast-channels/integration/wsserver"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServer_EchoesAcceptedConnection(t *testing.T) {
	t.Parallel()

	layer := channels.NewInMemoryLayer()
	c := consumer.NewWebSocketConsumer(layer, nil,
		consumer.WithReceiveHandler(func(ctx context.Context, ws *consumer.WebSocketConsumer, text *string, data []byte) error {
			if text != nil {
				return ws.SendText(ctx, "echo:"+*text)
			}
			return ws.SendBytes(ctx, data)
		}),
	)

	handler := wsserver.New(c.Run)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.Equal(t, "echo:hello", string(data))
}

func TestServer_DeniedConnectionClosesImmediately(t *testing.T) {
	t.Parallel()

	layer := channels.NewInMemoryLayer()
	c := consumer.NewWebSocketConsumer(layer, nil,
		consumer.WithConnectHandler(func(ctx context.Context, ws *consumer.WebSocketConsumer) error {
			return channels.ErrDenyConnection
		}),
	)

	handler := wsserver.New(c.Run)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	conn := dial(t, srv)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)

	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close error, got %T: %v", err, err)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
}
