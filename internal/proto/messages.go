// Package proto defines the control messages exchanged with browser
// clients over the websocket's text frames. Binary frames are raw PTY
// bytes in both directions and carry no framing of their own.
//
// Control messages are JSON objects with a required "type" discriminator.
// Unknown types are ignored on receipt so old servers and new clients can
// coexist.
package proto

import "encoding/json"

// Control message type constants.
const (
	TypeSession = "session" // server -> client: fresh session id
	TypeExit    = "exit"    // server -> client: child exited
	TypeResize  = "resize"  // client -> server: window size change
)

// Control is the wire shape of every control message. Fields beyond Type
// are populated per kind.
type Control struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Cols int    `json:"cols,omitempty"`
	Rows int    `json:"rows,omitempty"`
}

// EncodeSession builds the frame announcing a freshly created session.
func EncodeSession(id string) []byte {
	b, _ := json.Marshal(Control{Type: TypeSession, ID: id})
	return b
}

// EncodeExit builds the frame announcing child exit.
func EncodeExit() []byte {
	b, _ := json.Marshal(Control{Type: TypeExit})
	return b
}

// Decode parses a text frame. Malformed JSON and frames without a type
// come back with ok=false; callers drop them silently.
func Decode(data []byte) (Control, bool) {
	var c Control
	if err := json.Unmarshal(data, &c); err != nil {
		return Control{}, false
	}
	if c.Type == "" {
		return Control{}, false
	}
	return c, true
}

// ValidResize reports whether c is a resize with sane dimensions. A resize
// that fails this never reaches the window-size ioctl.
func (c Control) ValidResize() bool {
	return c.Type == TypeResize &&
		c.Cols > 0 && c.Cols <= 0xffff &&
		c.Rows > 0 && c.Rows <= 0xffff
}
