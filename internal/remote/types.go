package remote

import (
	"context"

	"github.com/danielpatrickdp/reflex-engine/internal/broadcast"
	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"github.com/danielpatrickdp/reflex-engine/internal/stimulus"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region engine
// Engine is the part of the reflex engine exposed over gRPC.
type Engine interface {
	SubmitStimulus(stimulus.Stimulus) error
	SetProfile(profile.Profile) error
	CurrentSnapshot() (state.Snapshot, error)
	Watch(name string, depth int) (*broadcast.Subscription, error)
	Unsubscribe(name string) error
}

// #endregion engine

// #region service
// ServiceName is the fully qualified gRPC service name.
const ServiceName = "reflex.v1.Reflex"

const (
	methodSubmitStimulus  = "/" + ServiceName + "/SubmitStimulus"
	methodSetProfile      = "/" + ServiceName + "/SetProfile"
	methodCurrentSnapshot = "/" + ServiceName + "/CurrentSnapshot"
	methodWatch           = "/" + ServiceName + "/Watch"
)

// DefaultWatchDepth is the mailbox depth of a Watch stream when the request names none.
const DefaultWatchDepth = 16

// ReflexServer is the handler side of the service. Message bodies are
// google.protobuf.Struct carrying the JSON form of the engine types.
type ReflexServer interface {
	SubmitStimulus(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	SetProfile(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	CurrentSnapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Watch(*structpb.Struct, grpc.ServerStream) error
}

// ServiceDesc describes the Reflex service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReflexServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitStimulus", Handler: submitStimulusHandler},
		{MethodName: "SetProfile", Handler: setProfileHandler},
		{MethodName: "CurrentSnapshot", Handler: currentSnapshotHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "reflex/v1/reflex.proto",
}

func submitStimulusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReflexServer).SubmitStimulus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodSubmitStimulus}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReflexServer).SubmitStimulus(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func setProfileHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReflexServer).SetProfile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodSetProfile}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReflexServer).SetProfile(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func currentSnapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReflexServer).CurrentSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodCurrentSnapshot}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReflexServer).CurrentSnapshot(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ReflexServer).Watch(in, stream)
}

// #endregion service
