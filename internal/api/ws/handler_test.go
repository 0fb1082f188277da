package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/devbox/internal/editor"
	"github.com/GriffinCanCode/devbox/internal/orchestrator"
	"github.com/GriffinCanCode/devbox/internal/project"
	"github.com/GriffinCanCode/devbox/internal/sandbox"
	"github.com/GriffinCanCode/devbox/internal/terminal"
	"github.com/GriffinCanCode/devbox/tests/helpers/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	url  string
	rt   *testutil.FakeRuntime
	term *terminal.Surface
	buf  *editor.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	rt := testutil.NewFakeRuntime(t)
	rt.Scripts["npm install"] = func(p *testutil.FakeProcess) { p.Finish(0) }

	tree, err := project.DefaultTemplate()
	require.NoError(t, err)

	term := terminal.New(terminal.DefaultConfig(), nil)
	buf := editor.NewBuffer(project.DefaultEditablePath)
	env := orchestrator.New(orchestrator.DefaultConfig(), orchestrator.Deps{
		Runtime:  rt,
		Tree:     tree,
		Terminal: term,
		Buffer:   buf,
	})
	t.Cleanup(func() { env.Close() })
	require.NoError(t, env.Start(context.Background()))

	router := gin.New()
	router.GET("/ws", NewHandler(Deps{Env: env, Buffer: buf, Terminal: term}).HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &fixture{
		url:  "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		rt:   rt,
		term: term,
		buf:  buf,
	}
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *fixture) shell() *testutil.FakeProcess {
	return f.rt.Process("/bin/sh")
}

func read(t *testing.T, conn *websocket.Conn) (int, []byte) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return kind, data
}

// expectFrame reads until a text frame of the given type arrives.
func expectFrame(t *testing.T, conn *websocket.Conn, typ string) map[string]interface{} {
	t.Helper()
	for {
		kind, data := read(t, conn)
		if kind != websocket.TextMessage {
			continue
		}
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &frame))
		if frame["type"] == typ {
			return frame
		}
	}
}

// expectOutput reads binary frames until their concatenation contains want.
func expectOutput(t *testing.T, conn *websocket.Conn, want string) {
	t.Helper()
	var got strings.Builder
	for !strings.Contains(got.String(), want) {
		kind, data := read(t, conn)
		if kind == websocket.BinaryMessage {
			got.Write(data)
		}
	}
}

func sendJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func TestHelloThenHistory(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	kind, data := read(t, conn)
	require.Equal(t, websocket.TextMessage, kind)
	var hello map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &hello))
	assert.Equal(t, TypeHello, hello["type"])
	assert.Equal(t, "running", hello["state"])
	assert.Equal(t, map[string]interface{}{"cols": float64(80), "rows": float64(24)}, hello["terminal"])

	editorFrame := hello["editor"].(map[string]interface{})
	assert.Equal(t, project.DefaultEditablePath, editorFrame["path"])
	assert.Equal(t, f.buf.Content(), editorFrame["content"])

	kind, data = read(t, conn)
	require.Equal(t, websocket.BinaryMessage, kind)
	assert.Contains(t, string(data), "Installation completed successfully")
}

func TestLiveOutput(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	expectFrame(t, conn, TypeHello)

	require.Eventually(t, func() bool { return f.term.Viewers() == 1 }, time.Second, 10*time.Millisecond)
	_, err := f.term.Write([]byte("compiled client\n"))
	require.NoError(t, err)

	expectOutput(t, conn, "compiled client\r\n")
}

func TestKeystrokesReachShell(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	expectFrame(t, conn, TypeHello)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("ls")))
	sendJSON(t, conn, map[string]string{"type": TypeInput, "data": "\r"})

	assert.Eventually(t, func() bool {
		return string(f.shell().InputBytes()) == "ls\r"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOversizedInputIsDropped(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	expectFrame(t, conn, TypeHello)

	big := make([]byte, MaxInputMessageSize+1)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, big))

	frame := expectFrame(t, conn, TypeError)
	assert.Equal(t, "input too large", frame["message"])
	assert.Empty(t, f.shell().InputBytes())
}

func TestResize(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	expectFrame(t, conn, TypeHello)

	sendJSON(t, conn, map[string]interface{}{"type": TypeResize, "cols": 120, "rows": 40})
	sendJSON(t, conn, map[string]interface{}{"type": TypeResize, "cols": 9999, "rows": 9999})
	sendJSON(t, conn, map[string]interface{}{
		"type": TypeResize, "width": 812, "height": 410, "cell_width": 9, "cell_height": 17,
	})

	want := []sandbox.Size{{Cols: 120, Rows: 40}, {Cols: 500, Rows: 200}, {Cols: 90, Rows: 24}}
	require.Eventually(t, func() bool {
		return len(f.shell().Resizes()) == len(want)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, want, f.shell().Resizes())
	assert.Equal(t, terminal.Size{Cols: 90, Rows: 24}, f.term.Size())
}

func TestEditFrame(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	expectFrame(t, conn, TypeHello)

	sendJSON(t, conn, map[string]string{"type": TypeEdit, "content": "export default () => null;"})
	assert.Eventually(t, func() bool {
		return f.rt.File(project.DefaultEditablePath) == "export default () => null;"
	}, 2*time.Second, 10*time.Millisecond)

	sendJSON(t, conn, map[string]string{"type": TypeEdit})
	frame := expectFrame(t, conn, TypeError)
	assert.Equal(t, "content is required", frame["message"])
}

func TestPreviewFrame(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	expectFrame(t, conn, TypeHello)

	require.Eventually(t, func() bool { return f.term.Viewers() == 1 }, time.Second, 10*time.Millisecond)
	f.rt.EmitReady(3000, "http://localhost:3000")

	frame := expectFrame(t, conn, TypePreview)
	assert.Equal(t, "http://localhost:3000", frame["url"])
}

func TestPingAndUnknown(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	expectFrame(t, conn, TypeHello)

	sendJSON(t, conn, map[string]string{"type": TypePing})
	expectFrame(t, conn, TypePong)

	sendJSON(t, conn, map[string]string{"type": "launch_missiles"})
	frame := expectFrame(t, conn, TypeError)
	assert.Equal(t, "unknown message type", frame["message"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	frame = expectFrame(t, conn, TypeError)
	assert.Equal(t, "malformed frame", frame["message"])
}

func TestDisconnectDetachesViewer(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	expectFrame(t, conn, TypeHello)
	require.Eventually(t, func() bool { return f.term.Viewers() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return f.term.Viewers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestInboundViewportClamp(t *testing.T) {
	tests := []struct {
		name string
		in   Inbound
		want terminal.Size
	}{
		{"grid", Inbound{Cols: 100, Rows: 30}, terminal.Size{Cols: 100, Rows: 30}},
		{"grid clamped", Inbound{Cols: 1000, Rows: 1000}, terminal.Size{Cols: MaxResizeCols, Rows: MaxResizeRows}},
		{"pixels clamped", Inbound{Width: 100000, Height: 100000, CellWidth: 1, CellHeight: 1}, terminal.Size{Cols: MaxResizeCols, Rows: MaxResizeRows}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.in.Viewport().Dimensions()
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
