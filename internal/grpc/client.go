package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProgressionClient is the client API for the progression service.
type ProgressionClient struct {
	cc grpc.ClientConnInterface
}

// NewProgressionClient wraps a client connection.
func NewProgressionClient(cc grpc.ClientConnInterface) *ProgressionClient {
	return &ProgressionClient{cc: cc}
}

func (c *ProgressionClient) call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// StartRun calls ProgressionService.StartRun.
func (c *ProgressionClient) StartRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, MethodStartRun, in, opts...)
}

// GetRun calls ProgressionService.GetRun.
func (c *ProgressionClient) GetRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, MethodGetRun, in, opts...)
}

// LevelUp calls ProgressionService.LevelUp.
func (c *ProgressionClient) LevelUp(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, MethodLevelUp, in, opts...)
}

// Choose calls ProgressionService.Choose.
func (c *ProgressionClient) Choose(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, MethodChoose, in, opts...)
}

// Decline calls ProgressionService.Decline.
func (c *ProgressionClient) Decline(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, MethodDecline, in, opts...)
}

// RecordKill calls ProgressionService.RecordKill.
func (c *ProgressionClient) RecordKill(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, MethodRecordKill, in, opts...)
}

// FinishRun calls ProgressionService.FinishRun.
func (c *ProgressionClient) FinishRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, MethodFinishRun, in, opts...)
}

// WatchRun opens the ProgressionService.WatchRun stream.
func (c *ProgressionClient) WatchRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], MethodWatchRun, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
