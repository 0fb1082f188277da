package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendQueue is the number of frames buffered per viewer before it is
	// considered too slow and dropped.
	sendQueue = 1024
)

var (
	errViewerClosed = errors.New("viewer closed")
	errViewerSlow   = errors.New("viewer send queue full")
)

type message struct {
	kind int
	data []byte
}

// viewer is one connected page. Frames are queued and written by a single
// goroutine, so producers never block on the network.
type viewer struct {
	id     string
	conn   *websocket.Conn
	logger *zap.Logger

	send      chan message
	done      chan struct{}
	closeOnce sync.Once
}

func newViewer(viewerID string, conn *websocket.Conn, logger *zap.Logger) *viewer {
	return &viewer{
		id:     viewerID,
		conn:   conn,
		logger: logger,
		send:   make(chan message, sendQueue),
		done:   make(chan struct{}),
	}
}

func (v *viewer) enqueue(kind int, data []byte) error {
	select {
	case <-v.done:
		return errViewerClosed
	default:
	}
	select {
	case v.send <- message{kind: kind, data: data}:
		return nil
	case <-v.done:
		return errViewerClosed
	default:
		v.logger.Warn("Dropping slow viewer", zap.String("viewer", v.id))
		v.close()
		return errViewerSlow
	}
}

func (v *viewer) sendFrame(f Outbound) error {
	data, err := encode(f)
	if err != nil {
		return err
	}
	return v.enqueue(websocket.TextMessage, data)
}

// close stops the write pump and the connection. Safe to call repeatedly
// and from any goroutine.
func (v *viewer) close() {
	v.closeOnce.Do(func() {
		close(v.done)
		v.conn.Close()
	})
}

// writePump drains the queue and keeps the connection alive with pings.
func (v *viewer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		v.close()
	}()

	for {
		select {
		case msg := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(msg.kind, msg.data); err != nil {
				v.logger.Debug("Viewer write failed", zap.String("viewer", v.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-v.done:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			v.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// terminalWriter is the viewer as a terminal.Surface viewer. Output that
// arrives before the history replay is queued is held back, so the page
// always sees history first.
type terminalWriter struct {
	v *viewer

	mu       sync.Mutex
	replayed bool
	held     [][]byte
}

func (w *terminalWriter) Write(p []byte) (int, error) {
	data := append([]byte(nil), p...)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.replayed {
		w.held = append(w.held, data)
		return len(p), nil
	}
	if err := w.v.enqueue(websocket.BinaryMessage, data); err != nil {
		return 0, err
	}
	return len(p), nil
}

// replay queues history, then everything held since the attach.
func (w *terminalWriter) replay(history []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.replayed = true
	if len(history) > 0 {
		if err := w.v.enqueue(websocket.BinaryMessage, history); err != nil {
			return err
		}
	}
	for _, data := range w.held {
		if err := w.v.enqueue(websocket.BinaryMessage, data); err != nil {
			return err
		}
	}
	w.held = nil
	return nil
}
