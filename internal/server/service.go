package server

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/xtding233/fairwheel/internal/pool"
	"github.com/xtding233/fairwheel/internal/wheel"
)

// Runner executes fn on the goroutine that owns the engine.
// *sched.Loop and *sched.Manual both satisfy it.
type Runner interface {
	Do(ctx context.Context, fn func()) error
}

// PoolLoader reads the pool file.
type PoolLoader interface {
	LoadPool() (*pool.Pool, error)
}

// HistoryReader queries recorded draws.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]wheel.DrawRecord, error) // newest first
	Batch(ctx context.Context, batchID string) ([]wheel.DrawRecord, error)
	WinCounts(ctx context.Context) (map[string]int, error)
}

// Service implements WheelServer on top of an engine.
type Service struct {
	engine  *wheel.Engine
	runner  Runner
	loader  PoolLoader
	history HistoryReader
	hub     *Hub
	log     zerolog.Logger
}

type ServiceOptions struct {
	Loader  PoolLoader    // nil disables ReloadPool
	History HistoryReader // nil makes the history RPCs return empty results
	Hub     *Hub          // nil disables WatchEvents
	Logger  zerolog.Logger
}

func NewService(engine *wheel.Engine, runner Runner, opts ServiceOptions) *Service {
	return &Service{
		engine:  engine,
		runner:  runner,
		loader:  opts.Loader,
		history: opts.History,
		hub:     opts.Hub,
		log:     opts.Logger.With().Str("component", "service").Logger(),
	}
}

var _ WheelServer = (*Service)(nil)

// Snapshot reads the engine state on its goroutine.
func (s *Service) Snapshot(ctx context.Context) (wheel.Snapshot, error) {
	var snap wheel.Snapshot
	err := s.runner.Do(ctx, func() { snap = s.engine.Snapshot() })
	return snap, err
}

// Reload reads the pool file and installs it. The file is read off the
// engine goroutine; installing fails with wheel.ErrBusy during a draw.
func (s *Service) Reload(ctx context.Context) (wheel.Snapshot, error) {
	if s.loader == nil {
		return wheel.Snapshot{}, status.Error(codes.Unimplemented, "no pool file configured")
	}
	var busy bool
	if err := s.runner.Do(ctx, func() { busy = s.engine.Busy() }); err != nil {
		return wheel.Snapshot{}, err
	}
	if busy {
		return wheel.Snapshot{}, wheel.ErrBusy
	}
	p, err := s.loader.LoadPool()
	if err != nil {
		return wheel.Snapshot{}, err
	}
	var (
		snap     wheel.Snapshot
		replaced error
	)
	err = s.runner.Do(ctx, func() {
		if replaced = s.engine.ReplacePool(p); replaced == nil {
			snap = s.engine.Snapshot()
		}
	})
	if err != nil {
		return wheel.Snapshot{}, err
	}
	if replaced != nil {
		return wheel.Snapshot{}, replaced
	}
	s.log.Info().Int("entries", p.Len()).Msg("pool reloaded")
	return snap, nil
}

func (s *Service) StartBatch(ctx context.Context, in *wrapperspb.Int32Value) (*structpb.Struct, error) {
	n := int(in.GetValue())
	var (
		snap    wheel.Snapshot
		started error
	)
	err := s.runner.Do(ctx, func() {
		if started = s.engine.StartBatch(n); started == nil {
			snap = s.engine.Snapshot()
		}
	})
	if err != nil {
		return nil, toStatus(err)
	}
	if started != nil {
		return nil, toStatus(started)
	}
	return s.encode(snap)
}

func (s *Service) AbortBatch(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	var aborted bool
	if err := s.runner.Do(ctx, func() { aborted = s.engine.AbortBatch() }); err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bool(aborted), nil
}

func (s *Service) GetState(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.encode(snap)
}

func (s *Service) ReloadPool(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap, err := s.Reload(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.encode(snap)
}

func (s *Service) ListHistory(ctx context.Context, in *wrapperspb.Int32Value) (*structpb.ListValue, error) {
	if s.history == nil {
		return &structpb.ListValue{}, nil
	}
	draws, err := s.history.Recent(ctx, int(in.GetValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	return drawList(draws)
}

// ListBatch returns the draws of one batch in draw order.
func (s *Service) ListBatch(ctx context.Context, in *wrapperspb.StringValue) (*structpb.ListValue, error) {
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "batch id is required")
	}
	if s.history == nil {
		return &structpb.ListValue{}, nil
	}
	draws, err := s.history.Batch(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return drawList(draws)
}

// GetStats reports how often each name was drawn over the whole history,
// next to its current counter.
func (s *Service) GetStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	wins := map[string]int{}
	if s.history != nil {
		var err error
		if wins, err = s.history.WinCounts(ctx); err != nil {
			return nil, toStatus(err)
		}
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := structpb.NewStruct(statsFields(wins, snap.Entries))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func drawList(draws []wheel.DrawRecord) (*structpb.ListValue, error) {
	items := make([]any, len(draws))
	for i, d := range draws {
		items[i] = drawFields(d)
	}
	out, err := structpb.NewList(items)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// WatchEvents sends the current state, then every presenter notification
// until the client goes away.
func (s *Service) WatchEvents(_ *emptypb.Empty, stream grpc.ServerStream) error {
	if s.hub == nil {
		return status.Error(codes.Unimplemented, "event stream disabled")
	}
	ctx := stream.Context()
	events, cancel := s.hub.Subscribe()
	defer cancel()

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return toStatus(err)
	}
	fields := snapshotFields(snap)
	fields["type"] = EventState
	first, err := structpb.NewStruct(fields)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	if err := stream.SendMsg(first); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := stream.SendMsg(ev); err != nil {
				return err
			}
		}
	}
}

func (s *Service) encode(snap wheel.Snapshot) (*structpb.Struct, error) {
	out, err := snapshotStruct(snap)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode state: %v", err))
	}
	return out, nil
}
