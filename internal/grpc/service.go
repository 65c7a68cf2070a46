package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"hordeforge/engine/internal/auth"
	"hordeforge/engine/internal/logging"
	"hordeforge/engine/internal/player"
	"hordeforge/engine/internal/progression"
	"hordeforge/engine/internal/session"
)

// RunTokenMetadataKey carries run tokens on progression calls.
const RunTokenMetadataKey = "x-run-token"

// TraceIDMetadataKey carries a caller supplied trace id, echoed in response headers.
const TraceIDMetadataKey = "x-trace-id"

const watchRateHz = 20

// TokenService issues and checks run tokens.
type TokenService interface {
	Issue(runID, loadout string) (string, time.Time, error)
	VerifyRun(token, runID string) (*auth.RunClaims, error)
}

// Option customises the behaviour of the progression service.
type Option func(*Service)

// tickerFactory constructs cancellable tick channels for throttled streaming.
type tickerFactory func(time.Duration) (<-chan time.Time, func())

// WithTokens requires run tokens on every call that names a run.
func WithTokens(tokens TokenService) Option {
	return func(s *Service) { s.tokens = tokens }
}

// WithLogger sets the service logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTickerFactory overrides the throttling ticker factory (used in tests).
func WithTickerFactory(factory tickerFactory) Option {
	return func(s *Service) {
		if factory != nil {
			s.newTicker = factory
		}
	}
}

// Service implements ProgressionServer on top of the session registry.
type Service struct {
	runs      *session.Registry
	tokens    TokenService
	logger    *logging.Logger
	newTicker tickerFactory
}

// NewService wires the gRPC service to the registry and optional settings.
func NewService(runs *session.Registry, opts ...Option) *Service {
	service := &Service{runs: runs, logger: logging.L(), newTicker: defaultTickerFactory}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	return service
}

func defaultTickerFactory(interval time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(interval)
	return ticker.C, ticker.Stop
}

type runRequest struct {
	RunID     string `json:"runId"`
	UpgradeID string `json:"upgradeId,omitempty"`
}

type startResponse struct {
	Run       progression.Snapshot `json:"run"`
	Token     string               `json:"token,omitempty"`
	ExpiresAt *time.Time           `json:"expiresAt,omitempty"`
}

// StartRun creates a run and returns its snapshot plus a token when tokens are enabled.
func (s *Service) StartRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s == nil || s.runs == nil {
		return nil, status.Error(codes.FailedPrecondition, "progression unavailable")
	}
	var req session.StartRequest
	if err := DecodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	run, err := s.runs.Start(req)
	if err != nil {
		return nil, statusFor(err)
	}
	snapshot, err := run.Snapshot()
	if err != nil {
		return nil, statusFor(err)
	}
	resp := startResponse{Run: snapshot}
	if s.tokens != nil {
		token, expires, err := s.tokens.Issue(run.ID(), run.Loadout())
		if err != nil {
			_ = s.runs.Finish(run.ID())
			return nil, status.Errorf(codes.Internal, "issue run token: %v", err)
		}
		resp.Token = token
		resp.ExpiresAt = &expires
	}
	s.logger.ForRun(run.ID()).Info("run started over grpc", logging.String("loadout", run.Loadout()))
	return encode(resp)
}

// GetRun returns the current run snapshot.
func (s *Service) GetRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.mutate(ctx, in, func(run *session.Session, _ runRequest) (progression.Snapshot, error) {
		return run.Snapshot()
	})
}

// LevelUp grants a level-up.
func (s *Service) LevelUp(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.mutate(ctx, in, func(run *session.Session, _ runRequest) (progression.Snapshot, error) {
		return run.LevelUp()
	})
}

// Choose applies an offered upgrade.
func (s *Service) Choose(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.mutate(ctx, in, func(run *session.Session, req runRequest) (progression.Snapshot, error) {
		if strings.TrimSpace(req.UpgradeID) == "" {
			return progression.Snapshot{}, status.Error(codes.InvalidArgument, "upgradeId is required")
		}
		snapshot, err := run.Choose(req.UpgradeID)
		if errors.Is(err, progression.ErrInvariantViolated) {
			s.logger.ForRun(run.ID()).Error("choice broke a progression invariant", logging.Error(err))
			err = nil
		}
		return snapshot, err
	})
}

// Decline closes the open offer.
func (s *Service) Decline(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.mutate(ctx, in, func(run *session.Session, _ runRequest) (progression.Snapshot, error) {
		return run.Decline()
	})
}

// RecordKill bumps the kill counter.
func (s *Service) RecordKill(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.mutate(ctx, in, func(run *session.Session, _ runRequest) (progression.Snapshot, error) {
		return run.RecordKill()
	})
}

// FinishRun closes the run's journal and stops tracking it.
func (s *Service) FinishRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	run, _, err := s.resolve(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.runs.Finish(run.ID()); err != nil {
		if errors.Is(err, session.ErrUnknownRun) {
			return nil, statusFor(err)
		}
		s.logger.ForRun(run.ID()).Error("journal close failed", logging.Error(err))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
}

// WatchRun streams run snapshots, coalescing bursts to the throttled cadence.
func (s *Service) WatchRun(in *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	run, _, err := s.resolve(ctx, in)
	if err != nil {
		return err
	}
	//1.- Subscribe before the first snapshot so no update slips between them.
	updates, cancel := run.Subscribe(8)
	defer cancel()
	initial, err := run.Snapshot()
	if err != nil {
		return statusFor(err)
	}
	if err := s.send(stream, initial); err != nil {
		return err
	}

	tickCh, stop := s.newTicker(time.Second / watchRateHz)
	defer stop()

	var (
		latest  progression.Snapshot
		pending bool
	)
	for {
		select {
		case <-ctx.Done():
			//2.- Surface context cancellation so clients can retry.
			if errors.Is(ctx.Err(), context.Canceled) {
				return status.Error(codes.Canceled, "stream cancelled")
			}
			return status.Error(codes.DeadlineExceeded, "stream deadline exceeded")
		case snapshot, ok := <-updates:
			if !ok {
				//3.- The run finished; flush what is buffered and end the stream.
				if pending {
					return s.send(stream, latest)
				}
				return nil
			}
			latest, pending = snapshot, true
		case <-tickCh:
			if !pending {
				continue
			}
			pending = false
			if err := s.send(stream, latest); err != nil {
				return err
			}
		}
	}
}

func (s *Service) send(stream grpc.ServerStreamingServer[structpb.Struct], snapshot progression.Snapshot) error {
	frame, err := encode(snapshot)
	if err != nil {
		return err
	}
	return stream.Send(frame)
}

type mutation func(run *session.Session, req runRequest) (progression.Snapshot, error)

func (s *Service) mutate(ctx context.Context, in *structpb.Struct, fn mutation) (*structpb.Struct, error) {
	run, req, err := s.resolve(ctx, in)
	if err != nil {
		return nil, err
	}
	snapshot, err := fn(run, req)
	if err != nil {
		return nil, statusFor(err)
	}
	return encode(snapshot)
}

// resolve decodes the request, finds the run and checks its token.
func (s *Service) resolve(ctx context.Context, in *structpb.Struct) (*session.Session, runRequest, error) {
	var req runRequest
	if s == nil || s.runs == nil {
		return nil, req, status.Error(codes.FailedPrecondition, "progression unavailable")
	}
	if err := DecodeStruct(in, &req); err != nil {
		return nil, req, status.Error(codes.InvalidArgument, err.Error())
	}
	if strings.TrimSpace(req.RunID) == "" {
		return nil, req, status.Error(codes.InvalidArgument, "runId is required")
	}
	run, err := s.runs.Get(req.RunID)
	if err != nil {
		return nil, req, statusFor(err)
	}
	if s.tokens != nil {
		token := runToken(ctx)
		if token == "" {
			return nil, req, status.Error(codes.Unauthenticated, "missing run token")
		}
		if _, err := s.tokens.VerifyRun(token, req.RunID); err != nil {
			return nil, req, statusFor(err)
		}
	}
	return run, req, nil
}

func runToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, value := range md.Get(RunTokenMetadataKey) {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func encode(v any) (*structpb.Struct, error) {
	out, err := EncodeStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// statusFor maps engine errors onto gRPC status codes.
func statusFor(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	var unknown *progression.UnknownCommandError
	code := codes.Internal
	switch {
	case errors.Is(err, session.ErrUnknownRun):
		code = codes.NotFound
	case errors.Is(err, session.ErrRegistryFull):
		code = codes.ResourceExhausted
	case errors.Is(err, session.ErrSessionClosed):
		code = codes.Aborted
	case errors.Is(err, progression.ErrNoPendingOffer):
		code = codes.FailedPrecondition
	case errors.Is(err, progression.ErrNotOffered),
		errors.Is(err, player.ErrUnknownLoadout),
		errors.As(err, &unknown):
		code = codes.InvalidArgument
	case errors.Is(err, player.ErrLoadoutLocked),
		errors.Is(err, auth.ErrWrongRun):
		code = codes.PermissionDenied
	case errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrInvalidToken):
		code = codes.Unauthenticated
	}
	return status.Error(code, err.Error())
}

// UnaryLoggingInterceptor logs every unary call with its duration and status code.
func UnaryLoggingInterceptor(logger *logging.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = logging.L()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		started := time.Now()
		//1.- Adopt the caller's trace id and echo it back as a response header.
		ctx, logger, traceID := logging.WithTrace(ctx, logger, incomingTraceID(ctx))
		_ = grpc.SetHeader(ctx, metadata.Pairs(TraceIDMetadataKey, traceID))
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []logging.Field{
			logging.String("method", info.FullMethod),
			logging.String("code", code.String()),
			logging.Duration("latency", time.Since(started)),
		}
		if code == codes.Internal || code == codes.Unknown {
			logger.Error("grpc call failed", append(fields, logging.Error(err))...)
		} else {
			logger.Debug("grpc call", fields...)
		}
		return resp, err
	}
}

func incomingTraceID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(TraceIDMetadataKey); len(values) > 0 {
		return values[0]
	}
	return ""
}

var _ ProgressionServer = (*Service)(nil)
