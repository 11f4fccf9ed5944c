package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/kjzl/valorant-instalock/internal/hub"
	ptypes "github.com/kjzl/valorant-instalock/pkg/types"
)

const (
	pollInterval = 100 * time.Millisecond
	writeTimeout = 3 * time.Second
)

var errUnknownType = errors.New("unknown type")

// Sessions resolves the running session.
type Sessions interface {
	Current(ctx context.Context) (hub.Session, error)
}

// Pauser is the global automation interrupt.
type Pauser interface {
	Set()
	Clear()
	IsSet() bool
}

// Handler serves the control feed: status snapshots are pushed whenever they
// change and command messages are applied as they arrive.
func Handler(h Sessions, p Pauser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine
		pushed := make(chan struct{})
		go func() {
			defer close(pushed)
			defer cancel()
			pushStatus(ctx, conn, h, p)
		}()
		defer func() {
			cancel()
			<-pushed
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					_ = conn.Close(websocket.StatusNormalClosure, "bye")
				}
				return
			}

			var cm ptypes.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = write(ctx, conn, ptypes.ServerMessage{Type: ptypes.MsgError, Error: "bad json"})
				continue
			}
			if err := apply(ctx, cm, h, p); err != nil {
				_ = write(ctx, conn, ptypes.ServerMessage{Type: ptypes.MsgError, Error: err.Error()})
				continue
			}
			_ = write(ctx, conn, ptypes.ServerMessage{Type: ptypes.MsgAccepted, Command: cm.Type})
		}
	}
}

func apply(ctx context.Context, cm ptypes.ClientMessage, h Sessions, p Pauser) error {
	switch cm.Type {
	case ptypes.MsgPause:
		p.Set()
		return nil
	case ptypes.MsgResume:
		p.Clear()
		return nil
	case ptypes.MsgQuitPregame, ptypes.MsgQuitMatch:
	default:
		return fmt.Errorf("%w %q", errUnknownType, cm.Type)
	}

	s, err := h.Current(ctx)
	if err != nil {
		return err
	}
	if cm.Type == ptypes.MsgQuitPregame {
		return s.QuitPregame(ctx)
	}
	return s.QuitMatch(ctx)
}

// CurrentStatus is the running session's status, or an idle one carrying
// only the pause flag.
func CurrentStatus(ctx context.Context, h Sessions, p Pauser) ptypes.Status {
	s, err := h.Current(ctx)
	if err != nil {
		return ptypes.Status{Paused: p.IsSet()}
	}
	return s.Status()
}

func pushStatus(ctx context.Context, conn *websocket.Conn, h Sessions, p Pauser) {
	t := time.NewTicker(pollInterval)
	defer t.Stop()

	var last *ptypes.Status
	for {
		st := CurrentStatus(ctx, h, p)
		if last == nil || *last != st {
			if err := write(ctx, conn, ptypes.ServerMessage{Type: ptypes.MsgStatus, Status: &st}); err != nil {
				return
			}
			last = &st
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg ptypes.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
