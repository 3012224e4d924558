package server

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/qrkit/internal/barcode"
	"github.com/MeKo-Tech/qrkit/internal/scan"
	"github.com/MeKo-Tech/qrkit/internal/utils"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsMaxFrameSize = 16 << 20
)

// Scan socket message types.
const (
	MsgSession    = "session"
	MsgScanResult = "scan_result"
	MsgError      = "error"
	MsgDone       = "done"
)

// ScanMessage is sent by the server on /ws/scan. Each binary frame from the
// client is answered with exactly one scan_result or error message.
type ScanMessage struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id"`
	Frame     int              `json:"frame"`
	Found     bool             `json:"found"`
	Symbols   []barcode.Symbol `json:"symbols,omitempty"`
	ElapsedMs int64            `json:"elapsed_ms"`
	Error     string           `json:"error,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.config.CORSOrigin == "*" || origin == s.config.CORSOrigin
		},
	}
}

// scanWebSocketHandler runs a live scan session. Clients send encoded images
// as binary messages and may send the text message "stop" to end the session.
// Query parameters: stop_on_first (bool) and max_frames (int).
func (s *Server) scanWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	stopOnFirst := s.config.ScanStopOnFirst
	if v := r.URL.Query().Get("stop_on_first"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, r, "invalid stop_on_first", http.StatusBadRequest)
			return
		}
		stopOnFirst = b
	}
	maxFrames := s.config.ScanMaxFrames
	if v := r.URL.Query().Get("max_frames"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, "invalid max_frames", http.StatusBadRequest)
			return
		}
		maxFrames = n
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	session := &scanSession{conn: conn, id: uuid.NewString(), constraints: s.config.Constraints}
	slog.Info("Scan session started", "session_id", session.id, "remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	session.run(ctx, &scan.Scanner{Options: s.config.Decode, MaxFrames: maxFrames, Constraints: s.config.Constraints}, stopOnFirst)

	slog.Info("Scan session ended", "session_id", session.id, "frames", session.frames)
}

// scanSession owns one socket. All writes except pings happen on the
// goroutine that runs the session.
type scanSession struct {
	conn        *websocket.Conn
	id          string
	frames      int
	constraints utils.ImageConstraints
}

func (ss *scanSession) run(ctx context.Context, scanner *scan.Scanner, stopOnFirst bool) {
	ss.conn.SetReadLimit(wsMaxFrameSize)
	_ = ss.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	ss.conn.SetPongHandler(func(string) error {
		return ss.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go ss.keepAlive(done)

	if err := ss.send(ScanMessage{Type: MsgSession}); err != nil {
		return
	}

	for a := range scanner.Attempts(ctx, &socketSource{session: ss}) {
		msg := ScanMessage{
			Type:      MsgScanResult,
			Frame:     a.Index,
			Found:     a.Found(),
			Symbols:   a.Symbols,
			ElapsedMs: a.Elapsed.Milliseconds(),
		}
		status := "success"
		if a.Err != nil {
			msg.Type, msg.Error, status = MsgError, a.Err.Error(), "error"
		}
		decodeRequestsTotal.WithLabelValues("websocket", status).Inc()
		decodeDuration.WithLabelValues("websocket").Observe(a.Elapsed.Seconds())

		if err := ss.send(msg); err != nil {
			return
		}
		if stopOnFirst && a.Found() {
			break
		}
	}

	_ = ss.send(ScanMessage{Type: MsgDone, Frame: ss.frames})
	_ = ss.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "scan complete"),
		time.Now().Add(time.Second))
}

func (ss *scanSession) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := ss.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

func (ss *scanSession) send(msg ScanMessage) error {
	msg.SessionID = ss.id
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := ss.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("Failed to send WebSocket message", "session_id", ss.id, "error", err)
		return err
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
	return nil
}

// socketSource turns incoming binary messages into frames. Messages that are
// not images are answered with an error message and skipped.
type socketSource struct {
	session *scanSession
}

func (src *socketSource) NextFrame(ctx context.Context) (image.Image, error) {
	ss := src.session
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mt, data, err := ss.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("WebSocket read failed", "session_id", ss.id, "error", err)
			}
			return nil, io.EOF
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if mt == websocket.TextMessage {
			if strings.EqualFold(strings.TrimSpace(string(data)), "stop") {
				return nil, io.EOF
			}
			continue
		}

		img, err := decodeUploadedImage(data, ss.constraints)
		if err != nil {
			var inputErr *barcode.DecodeInputError
			if errors.As(err, &inputErr) {
				if sendErr := ss.send(ScanMessage{Type: MsgError, Frame: -1, Error: err.Error()}); sendErr != nil {
					return nil, io.EOF
				}
				continue
			}
			return nil, err
		}
		ss.frames++
		return img, nil
	}
}
