// Package ws connects viewer pages to the environment over a WebSocket.
//
// Binary frames carry terminal bytes in both directions. Text frames carry
// JSON control messages, encoded with sonic.
//
// Message Types (Client → Server):
//   - resize: cols/rows, or width/height plus cell_width/cell_height
//   - input: keystrokes as text (binary frames work too)
//   - edit: full replacement of the editor text
//   - ping: keep-alive ping
//
// Message Types (Server → Client):
//   - hello: terminal size, editor text, preview URL, state
//   - preview: the preview was retargeted
//   - state: the environment changed state
//   - pong: reply to ping
//   - error: a frame was rejected
//
// On connect the viewer receives hello, then the terminal scrollback, then
// live output.
//
// Example Usage:
//
//	handler := ws.NewHandler(ws.Deps{Env: env, Buffer: buf, Terminal: term})
//	router.GET("/ws", handler.HandleConnection)
package ws
