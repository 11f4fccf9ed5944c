package stream

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/kjzl/valorant-instalock/internal/lockfile"
	"github.com/kjzl/valorant-instalock/internal/metrics"
	"github.com/kjzl/valorant-instalock/internal/types"
	ptypes "github.com/kjzl/valorant-instalock/pkg/types"
)

const (
	BufferSize   = 100
	RetryBackoff = 100 * time.Millisecond
	DialTimeout  = 5 * time.Second
	readLimit    = 4 << 20
)

// Stream is a subscription to the local client's event channel. Events are
// decoded and de-duplicated by a background reader and handed out by Next.
type Stream struct {
	conn   *websocket.Conn
	log    *zap.Logger
	events chan types.Event
	closed chan struct{} // receiver gone
	done   chan struct{} // reader exited
	cancel context.CancelFunc
	once   sync.Once
}

// Connect dials the event channel described by d and subscribes to every
// kind the session needs. A failed subscribe closes the connection.
func Connect(ctx context.Context, d lockfile.Descriptor, logger *zap.Logger) (*Stream, error) {
	dialCtx, cancelDial := context.WithTimeout(ctx, DialTimeout)
	defer cancelDial()

	conn, _, err := websocket.Dial(dialCtx, d.WebsocketURL(), &websocket.DialOptions{
		HTTPClient: insecureClient(),
		HTTPHeader: http.Header{"Authorization": []string{d.AuthorizationHeader()}},
	})
	if err != nil {
		return nil, fmt.Errorf("dial event channel: %w", err)
	}
	conn.SetReadLimit(readLimit)

	for _, kind := range ptypes.Kinds {
		if err := conn.Write(dialCtx, websocket.MessageText, ptypes.SubscribeFrame(kind)); err != nil {
			_ = conn.CloseNow()
			return nil, fmt.Errorf("subscribe %s: %w", kind, err)
		}
	}

	readCtx, cancel := context.WithCancel(context.Background())
	s := &Stream{
		conn:   conn,
		log:    logger.Named("stream"),
		events: make(chan types.Event, BufferSize),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go s.readLoop(readCtx)
	return s, nil
}

// websocket dials reject a client-level timeout
func insecureClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // local self-signed cert
	return &http.Client{Transport: transport}
}

func (s *Stream) readLoop(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)
	defer func() { _ = s.conn.CloseNow() }()

	var dedup deduper
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			s.logReadEnd(err)
			return
		}

		ev, ok := Decode(data)
		if !ok {
			metrics.RecordFrame(metrics.FrameIgnored)
			s.log.Debug("ignoring frame", zap.ByteString("frame", data))
			continue
		}
		if !dedup.fresh(ev) {
			metrics.RecordFrame(metrics.FrameDuplicate)
			s.log.Info("dropping duplicate event", zap.String("kind", string(ev.Kind)))
			continue
		}
		metrics.RecordFrame(metrics.FrameDecoded)

		if !s.deliver(ev) {
			s.log.Debug("receiver gone, closing event channel")
			if err := s.conn.Close(websocket.StatusNormalClosure, "bye"); err != nil {
				s.log.Debug("close event channel", zap.Error(err))
			}
			return
		}
	}
}

func (s *Stream) logReadEnd(err error) {
	select {
	case <-s.closed:
		s.log.Debug("event channel closed")
		return
	default:
	}
	if status := websocket.CloseStatus(err); status != -1 {
		s.log.Warn("event channel closed by client", zap.Stringer("status", status))
		return
	}
	s.log.Error("event channel read failed", zap.Error(err))
}

// deliver waits for buffer room, polling every RetryBackoff, until the
// receiver goes away.
func (s *Stream) deliver(ev types.Event) bool {
	for {
		select {
		case <-s.closed:
			return false
		case s.events <- ev:
			return true
		default:
		}

		s.log.Debug("event buffer full, retrying")
		select {
		case <-s.closed:
			return false
		case <-time.After(RetryBackoff):
		}
	}
}

// Next blocks for the next event. It returns false once the stream ended,
// was closed, or ctx is done.
func (s *Stream) Next(ctx context.Context) (types.Event, bool) {
	select {
	case <-s.closed:
		return types.Event{}, false
	default:
	}

	select {
	case ev, ok := <-s.events:
		return ev, ok
	case <-s.closed:
		return types.Event{}, false
	case <-ctx.Done():
		return types.Event{}, false
	}
}

// Done is closed when the reader has stopped.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Close drops the receiver side and waits for the reader to stop. It is
// safe to call more than once.
func (s *Stream) Close() error {
	s.once.Do(func() {
		close(s.closed)
		s.cancel()
	})
	<-s.done
	return nil
}
