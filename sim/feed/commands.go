package feed

import (
	"encoding/json"
	"fmt"

	"github.com/quantum-chronometer/qchrono/sim"
	"github.com/quantum-chronometer/qchrono/sim/trace"
)

// Command kinds accepted from feed clients.
const (
	CmdSpawn    = "spawn"
	CmdMove     = "move"
	CmdEntangle = "entangle"
	CmdObserve  = "observe"
	CmdProbe    = "probe"
	CmdReset    = "reset"
	CmdCollapse = "collapse"
)

// Command is one board command sent by a UI over the websocket.
type Command struct {
	Type  string  `json:"type"`
	ID    string  `json:"id,omitempty"`
	Other string  `json:"other,omitempty"`
	Text  string  `json:"text,omitempty"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
	On    bool    `json:"on,omitempty"`
}

// Reply acknowledges a command.
type Reply struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Envelope frames every server message: {"type": "...", "data": {...}}.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Envelope types.
const (
	TypeSnapshot = "snapshot"
	TypeReply    = "reply"
)

func envelope(typ string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", typ, err)
	}
	return json.Marshal(Envelope{Type: typ, Data: data})
}

// Apply executes cmd against the hub's session.
func (h *Hub) Apply(cmd Command) Reply {
	chrono := h.session.Chronometer()
	reply := Reply{Command: cmd.Type}
	kind := cmd.Type
	pos := sim.Point{X: cmd.X, Y: cmd.Y}

	switch cmd.Type {
	case CmdSpawn:
		reply.ID = chrono.Spawn(cmd.Text, pos)
		reply.OK = reply.ID != ""
	case CmdMove:
		reply.ID = cmd.ID
		reply.OK = chrono.Move(cmd.ID, pos)
	case CmdEntangle:
		reply.ID = cmd.ID
		reply.OK = chrono.Entangle(cmd.ID, cmd.Other)
	case CmdObserve:
		h.session.Input().SetObserving(cmd.On)
		reply.OK = true
	case CmdProbe:
		h.session.Input().ObserveProbe(pos)
		reply.OK = true
	case CmdReset:
		chrono.Reset()
		reply.OK = true
	case CmdCollapse:
		chrono.Collapse()
		reply.OK = true
	default:
		kind = "unknown"
		reply.Error = fmt.Sprintf("unknown command %q", cmd.Type)
	}
	if !reply.OK && reply.Error == "" {
		reply.Error = "rejected"
	}
	if h.metrics != nil {
		h.metrics.ObserveCommand(kind, reply.OK)
	}
	h.session.Trace().RecordCommand(trace.CommandRecord{
		Tick:    h.session.Ticks(),
		Command: kind,
		OK:      reply.OK,
		ID:      reply.ID,
	})
	return reply
}
