package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjzl/valorant-instalock/internal/catalog"
	"github.com/kjzl/valorant-instalock/internal/engine"
	"github.com/kjzl/valorant-instalock/internal/riot"
	"github.com/kjzl/valorant-instalock/internal/state"
	"github.com/kjzl/valorant-instalock/internal/types"
	ptypes "github.com/kjzl/valorant-instalock/pkg/types"
)

var (
	ErrNoCredentials = errors.New("no credentials available")
	ErrNoMatch       = errors.New("no active match")
	ErrClosed        = errors.New("session closed")
)

// GameAPI is the part of the regional game-server API a session drives.
type GameAPI interface {
	CurrentPregame(ctx context.Context, creds types.Credentials) (string, error)
	CurrentMatch(ctx context.Context, creds types.Credentials) (string, error)
	PregameMatch(ctx context.Context, creds types.Credentials, matchID string) (riot.PregameMatch, error)
	LockCharacter(ctx context.Context, creds types.Credentials, matchID, agentID string) error
	QuitPregame(ctx context.Context, creds types.Credentials, matchID string) error
	QuitMatch(ctx context.Context, creds types.Credentials, matchID string) error
}

// EventSource yields normalized events until it ends.
type EventSource interface {
	Next(ctx context.Context) (types.Event, bool)
	Close() error
}

// Reporter receives the human-readable progress of a session.
type Reporter interface {
	EnteredPregame(mapName string)
	MapFallback(mapName string, err error)
	Locked(agent string, elapsed time.Duration, failed int)
	MatchStarted()
	MatchEnded()
}

// Planner yields the agents to try on a map, in attempt order.
type Planner interface {
	Candidates(mapName string) []catalog.Agent
}

// MapResolver maps the asset path of a pregame match to a map.
type MapResolver interface {
	MapByURL(url string) (catalog.Map, bool)
}

type Options struct {
	Wait      time.Duration // initial delay before locking after a live pregame event
	Planner   Planner
	Maps      MapResolver
	Reporter  Reporter
	Interrupt *Interrupt
	Logger    *zap.Logger
	Now       func() time.Time
}

type nopReporter struct{}

func (nopReporter) EnteredPregame(string)             {}
func (nopReporter) MapFallback(string, error)         {}
func (nopReporter) Locked(string, time.Duration, int) {}
func (nopReporter) MatchStarted()                     {}
func (nopReporter) MatchEnded()                       {}

type noAgents struct{}

func (noAgents) Candidates(string) []catalog.Agent { return nil }

// Session runs one game session: an event loop that applies phase reports
// and runs the automation, and a command loop that executes quit requests.
// Both share the session state.
type Session struct {
	state    *state.State
	api      GameAPI
	events   EventSource
	opts     Options
	log      *zap.Logger
	commands chan Command

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ended  chan struct{} // event loop finished
	once   sync.Once
}

const commandBuffer = 100

func newSession(parent context.Context, st *state.State, api GameAPI, events EventSource, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Interrupt == nil {
		opts.Interrupt = &Interrupt{}
	}
	if opts.Reporter == nil {
		opts.Reporter = nopReporter{}
	}
	if opts.Maps == nil {
		opts.Maps = catalog.Catalog{}
	}
	if opts.Planner == nil {
		opts.Planner = noAgents{}
	}
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		state:    st,
		api:      api,
		events:   events,
		opts:     opts,
		log:      opts.Logger.Named("session").With(zap.String("subject", st.Subject())),
		commands: make(chan Command, commandBuffer),
		ctx:      ctx,
		cancel:   cancel,
		ended:    make(chan struct{}),
	}
}

// Run starts a session over already bootstrapped state. When probe is true
// the current phase is resolved from the game servers before any event is
// consumed.
func Run(parent context.Context, st *state.State, api GameAPI, events EventSource, opts Options, probe bool) *Session {
	s := newSession(parent, st, api, events, opts)
	s.wg.Add(2)
	go s.eventLoop(probe)
	go s.commandLoop()
	return s
}

func (s *Session) eventLoop(probe bool) {
	defer s.wg.Done()
	defer close(s.ended)

	if probe {
		s.bootstrapPhase()
	}

	for {
		ev, ok := s.events.Next(s.ctx)
		if !ok {
			if s.ctx.Err() == nil {
				s.log.Info("event stream ended")
			}
			return
		}
		s.handleEvent(ev)
	}
}

func (s *Session) handleEvent(ev types.Event) {
	switch ev.Kind {
	case types.EventCredentialsRefreshed:
		s.state.SetCredentials(ev.Credentials)
		s.log.Info("credentials refreshed")

	case types.EventPhaseReport:
		effect, err := s.state.Apply(ev.Report)
		if errors.Is(err, engine.ErrSamePhase) {
			s.log.Debug("phase unchanged", zap.Stringer("phase", ev.Report.Phase))
			return
		}
		if err != nil {
			s.log.Warn("rejected phase report", zap.Error(err))
			return
		}
		s.applyEffect(effect)
	}
}

func (s *Session) applyEffect(effect engine.Effect) {
	switch effect.Type {
	case engine.EffectLockIn:
		s.log.Info("pregame started", zap.String("match_id", effect.MatchID))
		s.lockIn(s.ctx, effect.MatchID, true)
	case engine.EffectMatchStarted:
		s.log.Info("match started", zap.String("match_id", effect.MatchID))
		s.opts.Reporter.MatchStarted()
	case engine.EffectMatchEnded:
		s.log.Info("pregame or match ended")
		s.opts.Reporter.MatchEnded()
	}
}

// bootstrapPhase resolves the starting phase: pregame first, then in game.
// When neither probe answers the session starts idle.
func (s *Session) bootstrapPhase() {
	creds, _ := s.state.Credentials()

	matchID, pregameErr := s.api.CurrentPregame(s.ctx, creds)
	if pregameErr == nil && matchID != "" {
		s.state.Restore(engine.State{Phase: engine.PhasePregame, MatchID: matchID})
		s.log.Info("session started in pregame", zap.String("match_id", matchID))
		s.lockIn(s.ctx, matchID, false)
		return
	}

	matchID, matchErr := s.api.CurrentMatch(s.ctx, creds)
	if matchErr == nil && matchID != "" {
		s.state.Restore(engine.State{Phase: engine.PhaseInGame, MatchID: matchID})
		s.log.Info("session started in game", zap.String("match_id", matchID))
		return
	}

	if notFound(pregameErr) && notFound(matchErr) {
		s.log.Info("session started idle")
		return
	}
	// a transient failure here leaves a running match undetected until the next report
	s.log.Warn("could not resolve current phase, starting idle",
		zap.NamedError("pregame_error", pregameErr),
		zap.NamedError("match_error", matchErr))
}

func notFound(err error) bool {
	var statusErr *riot.StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}

// Ended is closed once the event stream ended or the session was closed.
func (s *Session) Ended() <-chan struct{} { return s.ended }

// Status is a point-in-time view for the control surface.
func (s *Session) Status() ptypes.Status {
	phase := s.state.Phase()
	binding := s.state.Binding()
	running := true
	select {
	case <-s.ended:
		running = false
	default:
	}
	return ptypes.Status{
		Running: running,
		Phase:   string(phase.Phase),
		MatchID: phase.MatchID,
		Region:  binding.Region,
		Shard:   binding.Shard,
		Paused:  s.opts.Interrupt.IsSet(),
	}
}

// Close stops both loops and the event source and waits for them.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.events.Close()
		s.wg.Wait()
		s.log.Info("session closed")
	})
	return err
}
