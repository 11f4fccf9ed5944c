package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjzl/valorant-instalock/internal/lockfile"
	"github.com/kjzl/valorant-instalock/internal/metrics"
	"github.com/kjzl/valorant-instalock/internal/riot"
	"github.com/kjzl/valorant-instalock/internal/state"
	"github.com/kjzl/valorant-instalock/internal/stream"
)

// Env carries what a session needs besides the descriptor.
type Env struct {
	HTTP          riot.Doer
	ClientVersion string // from the reference catalog; empty falls back to the local session version
	GameBaseURL   string // overrides the regional URL
	Options       Options
}

// Start bootstraps a session for d: it reads credentials and the region
// binding from the local client, connects the event stream and starts the
// loops. Any bootstrap failure aborts the start; the caller may retry later.
func Start(ctx context.Context, d lockfile.Descriptor, env Env) (sess *Session, err error) {
	defer func() { metrics.RecordSessionStart(err == nil) }()

	logger := env.Options.Logger
	if logger == nil {
		logger = zap.NewNop()
		env.Options.Logger = logger
	}
	doer := env.HTTP
	if doer == nil {
		doer = riot.NewHTTPClient()
	}

	local := riot.NewLocalClient(d, doer)
	ent, err := local.Entitlements(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch credentials: %w", err)
	}
	if !ent.Credentials().Valid() || ent.Subject == "" {
		return nil, fmt.Errorf("fetch credentials: %w", ErrNoCredentials)
	}

	gs, err := local.GameSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve game session: %w", err)
	}

	version := env.ClientVersion
	if version == "" {
		version = gs.Version
	}
	game := riot.NewGameClient(riot.GameClientOptions{
		Binding:       gs.Binding,
		Subject:       ent.Subject,
		ClientVersion: version,
		BaseURL:       env.GameBaseURL,
	}, doer)

	events, err := stream.Connect(ctx, d, logger)
	if err != nil {
		return nil, err
	}

	st := state.New(gs.Binding, ent.Subject, ent.Credentials())
	logger.Info("session bootstrapped",
		zap.String("region", gs.Binding.Region),
		zap.String("shard", gs.Binding.Shard),
		zap.String("client_version", version))

	return Run(ctx, st, game, events, env.Options, true), nil
}
