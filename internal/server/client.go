package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls wheel.v1.WheelService on an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) StartBatch(ctx context.Context, n int32) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodStartBatch, wrapperspb.Int32(n), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AbortBatch(ctx context.Context) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, MethodAbortBatch, &emptypb.Empty{}, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *Client) GetState(ctx context.Context) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodGetState, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ReloadPool(ctx context.Context) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodReloadPool, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListHistory(ctx context.Context, limit int32) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, MethodListHistory, wrapperspb.Int32(limit), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListBatch(ctx context.Context, batchID string) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, MethodListBatch, wrapperspb.String(batchID), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetStats(ctx context.Context) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodGetStats, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// EventStream receives WatchEvents messages.
type EventStream struct {
	stream grpc.ClientStream
}

// Recv returns the next event, or io.EOF when the server ends the stream.
func (s *EventStream) Recv() (*structpb.Struct, error) {
	ev := new(structpb.Struct)
	if err := s.stream.RecvMsg(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// WatchEvents opens the event stream. Cancel ctx to close it.
func (c *Client) WatchEvents(ctx context.Context) (*EventStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], MethodWatchEvents)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventStream{stream: stream}, nil
}
