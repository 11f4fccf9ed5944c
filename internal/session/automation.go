package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjzl/valorant-instalock/internal/catalog"
	"github.com/kjzl/valorant-instalock/internal/metrics"
)

// DefaultMap is assumed when the pregame match cannot be fetched.
const DefaultMap = "Ascent"

type Result struct {
	Agent          catalog.Agent
	Elapsed        time.Duration // since the pregame transition was handled
	FailedAttempts int
}

// lockIn runs the automation sequence for one pregame transition. The
// initial delay is only observed when wait is set. It reports false when
// nothing was locked, which is not an error.
func (s *Session) lockIn(ctx context.Context, matchID string, wait bool) (Result, bool) {
	begin := s.opts.Now()
	log := s.log.With(zap.String("run_id", uuid.NewString()), zap.String("match_id", matchID))

	if s.opts.Interrupt.IsSet() {
		log.Info("automation paused, skipping pregame")
		return Result{}, false
	}

	mapName := s.resolveMap(ctx, matchID, log)
	s.opts.Reporter.EnteredPregame(mapName)

	agents := s.opts.Planner.Candidates(mapName)
	if len(agents) == 0 {
		log.Info("no agents configured for map", zap.String("map", mapName))
		return Result{}, false
	}

	if wait {
		if !s.sleepUntil(ctx, begin.Add(s.opts.Wait)) {
			return Result{}, false
		}
		log.Debug("instalock wait finished", zap.Duration("wait", s.opts.Wait))
	}

	for i, agent := range agents {
		creds, ok := s.state.Credentials()
		if !ok {
			log.Error("cannot lock agent", zap.Error(ErrNoCredentials))
			return Result{}, false
		}
		err := s.api.LockCharacter(ctx, creds, matchID, agent.UUID)
		metrics.RecordLockAttempt(err == nil)
		if err != nil {
			log.Error("failed to lock agent", zap.String("agent", agent.Name), zap.Error(err))
			continue
		}

		res := Result{Agent: agent, Elapsed: s.opts.Now().Sub(begin), FailedAttempts: i}
		s.opts.Reporter.Locked(agent.Name, res.Elapsed, res.FailedAttempts)
		log.Info("locked agent", zap.String("agent", agent.Name), zap.Int("failed_attempts", i))
		return res, true
	}

	log.Warn("no agent could be locked", zap.Int("attempts", len(agents)))
	return Result{}, false
}

func (s *Session) resolveMap(ctx context.Context, matchID string, log *zap.Logger) string {
	creds, ok := s.state.Credentials()
	if !ok {
		s.opts.Reporter.MapFallback(DefaultMap, ErrNoCredentials)
		return DefaultMap
	}
	match, err := s.api.PregameMatch(ctx, creds, matchID)
	if err != nil {
		log.Error("failed to fetch pregame match map", zap.Error(err))
		s.opts.Reporter.MapFallback(DefaultMap, err)
		return DefaultMap
	}
	m, ok := s.opts.Maps.MapByURL(match.MapID)
	if !ok {
		log.Warn("unknown map, assuming default", zap.String("map_url", match.MapID))
		return DefaultMap
	}
	return m.Name
}

func (s *Session) sleepUntil(ctx context.Context, deadline time.Time) bool {
	d := deadline.Sub(s.opts.Now())
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
