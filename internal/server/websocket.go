package server

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/kaz-tk/morpho/internal/proto"
	"github.com/kaz-tk/morpho/internal/terminal"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser clients
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

const (
	defaultCols = 80
	defaultRows = 24

	// wsWriteTimeout bounds every frame write; a peer that stops acking
	// gets disconnected instead of pinning the writer goroutine.
	wsWriteTimeout = 60 * time.Second
)

func writeFrame(conn *websocket.Conn, messageType int, data []byte) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(messageType, data)
}

// handleTerminalWS adapts one websocket to one attachment on one session.
// Binary frames carry raw PTY bytes both ways; text frames carry JSON
// control messages. /ws creates a session, /ws/{id} attaches to an
// existing one (or creates it if the id no longer resolves).
func (s *Server) handleTerminalWS(w http.ResponseWriter, r *http.Request) {
	requestedID := chi.URLParam(r, "id")
	cols := parseDim(r.URL.Query().Get("cols"), defaultCols)
	rows := parseDim(r.URL.Query().Get("rows"), defaultRows)

	params, err := s.spawnParams(r.URL.Query().Get("cmd"), cols, rows)
	if err != nil {
		http.Error(w, "no shell found", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sess, created, err := s.registry.ResolveOrCreate(requestedID, params)
	if err != nil {
		// The initiating client learns about a failed spawn the same way
		// it learns about a normal exit.
		logrus.WithError(err).Error("session spawn failed")
		writeFrame(conn, websocket.TextMessage, proto.EncodeExit())
		return
	}

	if created {
		// Tell the client its id before any output so it can update its URL.
		if err := writeFrame(conn, websocket.TextMessage, proto.EncodeSession(sess.ID())); err != nil {
			return
		}
	}

	att, snapshot, exited := sess.Attach()
	defer sess.Detach(att)

	log := logrus.WithFields(logrus.Fields{"session": sess.ID(), "remote": r.RemoteAddr})
	log.Info("client attached")
	defer log.Info("client detached")

	// Writer side: replay history, then stream live output. The websocket
	// write side is owned by this goroutine once it starts.
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		defer conn.Close()

		if len(snapshot) > 0 {
			if err := writeFrame(conn, websocket.BinaryMessage, snapshot); err != nil {
				return
			}
		}
		if exited {
			writeFrame(conn, websocket.TextMessage, proto.EncodeExit())
			return
		}

		for chunk := range att.Out() {
			if err := writeFrame(conn, websocket.BinaryMessage, chunk); err != nil {
				return
			}
		}

		// Out closed: session exit, slow-client drop, or local detach.
		if att.Dropped() {
			log.Warn("dropped for falling behind")
			return
		}
		if sess.State() >= terminal.StateExited {
			writeFrame(conn, websocket.TextMessage, proto.EncodeExit())
		}
	}()

	// Reader side: binary frames are keystrokes, text frames are control.
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.WithError(err).Debug("websocket read error")
			}
			sess.Detach(att)
			<-writeDone
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			sess.SendInput(data)
		case websocket.TextMessage:
			msg, ok := proto.Decode(data)
			if !ok {
				continue // malformed control frames are dropped
			}
			if msg.ValidResize() {
				sess.RequestResize(uint16(msg.Cols), uint16(msg.Rows))
			}
			// Unknown types ignored for forward compatibility.
		}
	}
}

// spawnParams resolves the command a new session would run. cmdOverride
// comes from ?cmd= and only matters when a session is actually created;
// attaching to an existing session ignores it.
func (s *Server) spawnParams(cmdOverride string, cols, rows uint16) (terminal.SpawnParams, error) {
	params := terminal.SpawnParams{Cols: cols, Rows: rows}

	if fields := strings.Fields(cmdOverride); len(fields) > 0 {
		params.Command = fields[0]
		params.Argv = fields[1:]
		return params, nil
	}

	if shell := s.cfg.Server.Shell; shell != "" {
		params.Command = shell
		params.Argv = []string{"-l"}
		return params, nil
	}

	for _, shell := range []string{"/bin/zsh", "/bin/bash", "/bin/sh"} {
		if _, err := os.Stat(shell); err == nil {
			params.Command = shell
			params.Argv = []string{"-l"}
			return params, nil
		}
	}
	return params, errNoShell
}

var errNoShell = errors.New("no shell found")

func parseDim(s string, fallback uint16) uint16 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil || v == 0 {
		return fallback
	}
	return uint16(v)
}
