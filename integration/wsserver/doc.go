// Package wsserver bridges a real net/http server to the consumer package's
// Application contract, using gorilla/websocket for the wire protocol. It
// plays the role the original implementation's ASGI protocol server plays:
// turn WebSocket frames into the "websocket.connect" / "websocket.receive" /
// "websocket.disconnect" events a Consumer dispatches on, and turn the
// Consumer's outbound "websocket.accept" / "websocket.send" / "websocket.close"
// events back into frames on the wire.
package wsserver
