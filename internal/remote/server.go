// Package remote exposes the reflex engine over gRPC: stimulus ingress,
// profile switches, and a server-streaming snapshot feed.
package remote

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/broadcast"
	"github.com/danielpatrickdp/reflex-engine/internal/engine"
	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region server-struct
// Server serves the Reflex service for one engine.
type Server struct {
	eng    Engine
	logger *zap.Logger
	grpc   *grpc.Server
}

// NewServer builds a gRPC server with the Reflex service registered.
func NewServer(eng Engine, logger *zap.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{eng: eng, logger: logger}
	opts = append(opts, grpc.ChainUnaryInterceptor(s.logUnary))
	s.grpc = grpc.NewServer(opts...)
	s.grpc.RegisterService(&ServiceDesc, s)
	return s
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("grpc listening", zap.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// Stop drains in-flight calls and closes open streams.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		s.logger.Debug("grpc call failed", zap.String("method", info.FullMethod),
			zap.Duration("took", time.Since(start)), zap.Error(err))
	}
	return resp, err
}

// #endregion server-struct

// #region handlers
// SubmitStimulus enqueues one stimulus.
func (s *Server) SubmitStimulus(_ context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	stim, err := stimulusFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if stim.Source == "" {
		stim.Source = "grpc"
	}
	if err := s.eng.SubmitStimulus(stim); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// SetProfile validates and schedules a personality switch.
func (s *Server) SetProfile(_ context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	p, err := profileFromStruct(in)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.eng.SetProfile(p); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// CurrentSnapshot returns the latest snapshot.
func (s *Server) CurrentSnapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	snap, err := s.eng.CurrentSnapshot()
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := SnapshotStruct(snap)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Watch streams snapshots until the client goes away or the engine stops.
// The request may carry "name" and "depth".
func (s *Server) Watch(in *structpb.Struct, stream grpc.ServerStream) error {
	name := "grpc-" + uuid.NewString()
	depth := DefaultWatchDepth
	if v, ok := in.GetFields()["name"]; ok && v.GetStringValue() != "" {
		name = v.GetStringValue()
	}
	if v, ok := in.GetFields()["depth"]; ok && v.GetNumberValue() >= 1 {
		depth = int(v.GetNumberValue())
	}

	sub, err := s.eng.Watch(name, depth)
	if err != nil {
		return toStatus(err)
	}
	defer func() { _ = s.eng.Unsubscribe(name) }()
	s.logger.Debug("watch opened", zap.String("subscriber", name), zap.Int("depth", depth))

	for {
		snap, err := sub.Next(stream.Context())
		if errors.Is(err, broadcast.ErrClosed) {
			return nil
		}
		if err != nil {
			return status.FromContextError(err).Err()
		}
		msg, err := SnapshotStruct(snap)
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		if err := stream.SendMsg(msg); err != nil {
			return err
		}
	}
}

// #endregion handlers

// #region status
// toStatus maps engine errors onto gRPC codes.
func toStatus(err error) error {
	var verr *profile.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, engine.ErrUnknownKind):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, engine.ErrEngineNotStarted), errors.Is(err, engine.ErrEngineStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, broadcast.ErrSubscriberExists):
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// #endregion status
