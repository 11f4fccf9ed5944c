package session

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kjzl/valorant-instalock/internal/metrics"
	"github.com/kjzl/valorant-instalock/internal/types"
)

type Command interface {
	isSessionCmd()
	String() string
}

type QuitPregame struct{}

func (QuitPregame) isSessionCmd()  {}
func (QuitPregame) String() string { return "QuitPregame" }

type QuitMatch struct{}

func (QuitMatch) isSessionCmd()  {}
func (QuitMatch) String() string { return "QuitMatch" }

// Interrupt pauses the automation sequence. It is checked once at the start
// of every run; a run already past the check completes.
type Interrupt struct {
	paused atomic.Bool
}

func (i *Interrupt) Set()        { i.paused.Store(true) }
func (i *Interrupt) Clear()      { i.paused.Store(false) }
func (i *Interrupt) IsSet() bool { return i.paused.Load() }

// QuitPregame enqueues a request to leave the pregame match. It does not
// wait for the request to run; the outcome is only logged.
func (s *Session) QuitPregame(ctx context.Context) error {
	return s.enqueue(ctx, QuitPregame{})
}

// QuitMatch enqueues a request to leave the running match.
func (s *Session) QuitMatch(ctx context.Context) error {
	return s.enqueue(ctx, QuitMatch{})
}

func (s *Session) enqueue(ctx context.Context, cmd Command) error {
	if s.ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case s.commands <- cmd:
		return nil
	case <-s.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) commandLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case cmd := <-s.commands:
			s.handleCommand(cmd)
		}
	}
}

func (s *Session) handleCommand(cmd Command) {
	log := s.log.With(zap.Stringer("command", cmd))

	creds, matchID, err := s.commandTarget()
	if err != nil {
		metrics.RecordCommand(cmd.String(), metrics.OutcomeDropped)
		log.Error("dropping command", zap.Error(err))
		return
	}
	log = log.With(zap.String("match_id", matchID))

	switch cmd.(type) {
	case QuitPregame:
		log.Info("quitting pregame")
		err = s.api.QuitPregame(s.ctx, creds, matchID)
	case QuitMatch:
		log.Info("quitting match")
		err = s.api.QuitMatch(s.ctx, creds, matchID)
	default:
		err = fmt.Errorf("unknown command %T", cmd)
	}

	if err != nil {
		metrics.RecordCommand(cmd.String(), metrics.OutcomeFailure)
		log.Error("command failed", zap.Error(err))
		return
	}
	metrics.RecordCommand(cmd.String(), metrics.OutcomeSuccess)
	log.Info("command succeeded")
}

func (s *Session) commandTarget() (types.Credentials, string, error) {
	creds, ok := s.state.Credentials()
	if !ok {
		return types.Credentials{}, "", ErrNoCredentials
	}
	matchID, ok := s.state.MatchID()
	if !ok {
		return types.Credentials{}, "", ErrNoMatch
	}
	return creds, matchID, nil
}
