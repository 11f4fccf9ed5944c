package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjzl/valorant-instalock/internal/lockfile"
	ptypes "github.com/kjzl/valorant-instalock/pkg/types"
)

var ErrNoSession = errors.New("no running session")

// Session is what the hub needs from a running game session.
type Session interface {
	QuitPregame(ctx context.Context) error
	QuitMatch(ctx context.Context) error
	Status() ptypes.Status
	Ended() <-chan struct{}
	Close() error
}

// Starter bootstraps a session for a descriptor. It is called off the hub
// loop and must honor ctx.
type Starter func(ctx context.Context, d lockfile.Descriptor) (Session, error)

type HubMsg interface{ isHubMsg() }

type DescriptorAvailable struct {
	Descriptor lockfile.Descriptor
}

type DescriptorRemoved struct{}

type GetSession struct {
	Reply chan Session // nil when no session is running
}

type ShutdownHub struct{}

// started, retryStart and sessionEnded are posted by the hub's own goroutines.
// gen ties them to the descriptor they were issued for.
type started struct {
	gen  uint64
	sess Session
	err  error
}

type retryStart struct{ gen uint64 }

type sessionEnded struct{ gen uint64 }

func (DescriptorAvailable) isHubMsg() {}
func (DescriptorRemoved) isHubMsg()   {}
func (GetSession) isHubMsg()          {}
func (ShutdownHub) isHubMsg()         {}
func (started) isHubMsg()             {}
func (retryStart) isHubMsg()          {}
func (sessionEnded) isHubMsg()        {}

type Options struct {
	Start      Starter
	RetryAfter time.Duration
	Logger     *zap.Logger
}

// Hub owns at most one session, the one for the current lockfile.
type Hub struct {
	inbox chan HubMsg
	opts  Options
	log   *zap.Logger

	current  *lockfile.Descriptor
	gen      uint64
	sess     Session
	starting bool
	retry    *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

func NewHub(parent context.Context, opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		opts:   opts,
		log:    opts.Logger.Named("hub"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go h.loop()
	return h
}

// Current returns the running session or ErrNoSession.
func (h *Hub) Current(ctx context.Context) (Session, error) {
	reply := make(chan Session, 1)
	select {
	case h.inbox <- GetSession{Reply: reply}:
	case <-h.done:
		return nil, ErrNoSession
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case s := <-reply:
		if s == nil {
			return nil, ErrNoSession
		}
		return s, nil
	case <-h.done:
		return nil, ErrNoSession
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Follow feeds lockfile lifecycle events into the hub until events closes.
func (h *Hub) Follow(events <-chan lockfile.Event) {
	for ev := range events {
		var msg HubMsg
		switch ev.Type {
		case lockfile.EventAvailable:
			msg = DescriptorAvailable{Descriptor: ev.Descriptor}
		case lockfile.EventRemoved:
			msg = DescriptorRemoved{}
		default:
			continue
		}
		if !h.post(msg) {
			return
		}
	}
}

// Close stops the hub and the running session and waits for both.
func (h *Hub) Close() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.done:
	}
	<-h.done
}

func (h *Hub) post(m HubMsg) bool {
	select {
	case h.inbox <- m:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case DescriptorAvailable:
				if h.current != nil && *h.current == msg.Descriptor {
					h.log.Debug("lockfile unchanged, keeping session")
					break
				}
				h.stopSession()
				h.gen++
				d := msg.Descriptor
				h.current = &d
				h.log.Info("game client available", zap.Int("port", d.Port), zap.Int("pid", d.PID))
				h.launch()

			case DescriptorRemoved:
				h.gen++
				h.current = nil
				h.stopSession()
				h.log.Info("game client stopped")

			case started:
				if msg.gen != h.gen {
					// descriptor changed while starting
					if msg.sess != nil {
						_ = msg.sess.Close()
					}
					break
				}
				h.starting = false
				if msg.err != nil {
					h.log.Warn("session bootstrap failed, retrying",
						zap.Error(msg.err), zap.Duration("retry_after", h.opts.RetryAfter))
					h.scheduleRetry()
					break
				}
				h.sess = msg.sess
				h.watch(msg.gen, msg.sess)

			case retryStart:
				if msg.gen != h.gen || h.current == nil || h.sess != nil || h.starting {
					break
				}
				h.launch()

			case sessionEnded:
				if msg.gen != h.gen || h.sess == nil {
					break
				}
				h.log.Warn("session ended while the game client is still available, restarting",
					zap.Duration("retry_after", h.opts.RetryAfter))
				h.stopSession()
				h.scheduleRetry()

			case GetSession:
				if h.sess == nil {
					msg.Reply <- nil
					break
				}
				msg.Reply <- h.sess

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) launch() {
	d, gen := *h.current, h.gen
	h.starting = true
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		s, err := h.opts.Start(h.ctx, d)
		if !h.post(started{gen: gen, sess: s, err: err}) && s != nil {
			_ = s.Close()
		}
	}()
}

func (h *Hub) watch(gen uint64, s Session) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		select {
		case <-s.Ended():
			h.post(sessionEnded{gen: gen})
		case <-h.ctx.Done():
		}
	}()
}

func (h *Hub) scheduleRetry() {
	if h.retry != nil {
		h.retry.Stop()
	}
	gen := h.gen
	h.retry = time.AfterFunc(h.opts.RetryAfter, func() {
		h.post(retryStart{gen: gen})
	})
}

func (h *Hub) stopSession() {
	h.starting = false
	if h.retry != nil {
		h.retry.Stop()
		h.retry = nil
	}
	if h.sess == nil {
		return
	}
	if err := h.sess.Close(); err != nil {
		h.log.Warn("closing session", zap.Error(err))
	}
	h.sess = nil
}

func (h *Hub) shutdown() {
	h.stopSession()
	h.cancel()
	h.wg.Wait()
	h.log.Info("hub stopped")
}
