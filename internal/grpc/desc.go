package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "hordeforge.progression.v1.ProgressionService"

// Full method names.
const (
	MethodStartRun   = "/" + ServiceName + "/StartRun"
	MethodGetRun     = "/" + ServiceName + "/GetRun"
	MethodLevelUp    = "/" + ServiceName + "/LevelUp"
	MethodChoose     = "/" + ServiceName + "/Choose"
	MethodDecline    = "/" + ServiceName + "/Decline"
	MethodRecordKill = "/" + ServiceName + "/RecordKill"
	MethodFinishRun  = "/" + ServiceName + "/FinishRun"
	MethodWatchRun   = "/" + ServiceName + "/WatchRun"
)

// ProgressionServer is the server API for the progression service. Messages
// are google.protobuf.Struct values carrying the engine's JSON shapes.
type ProgressionServer interface {
	StartRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LevelUp(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Choose(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Decline(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordKill(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FinishRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchRun(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

type unaryCall func(ProgressionServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ProgressionServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ProgressionServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchRunHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ProgressionServer).WatchRun(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// ServiceDesc describes the progression service for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ProgressionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartRun", Handler: unaryHandler(MethodStartRun, ProgressionServer.StartRun)},
		{MethodName: "GetRun", Handler: unaryHandler(MethodGetRun, ProgressionServer.GetRun)},
		{MethodName: "LevelUp", Handler: unaryHandler(MethodLevelUp, ProgressionServer.LevelUp)},
		{MethodName: "Choose", Handler: unaryHandler(MethodChoose, ProgressionServer.Choose)},
		{MethodName: "Decline", Handler: unaryHandler(MethodDecline, ProgressionServer.Decline)},
		{MethodName: "RecordKill", Handler: unaryHandler(MethodRecordKill, ProgressionServer.RecordKill)},
		{MethodName: "FinishRun", Handler: unaryHandler(MethodFinishRun, ProgressionServer.FinishRun)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchRun", Handler: watchRunHandler, ServerStreams: true},
	},
	Metadata: "hordeforge/progression/v1/progression.proto",
}

// RegisterProgressionServer attaches srv to registrar.
func RegisterProgressionServer(registrar grpc.ServiceRegistrar, srv ProgressionServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}
