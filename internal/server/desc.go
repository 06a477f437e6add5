// Package server exposes the wheel engine over gRPC.
//
// The service is described by hand with well-known protobuf types
// (structpb, wrapperspb, emptypb) so no generated code is needed; any
// gRPC client can call it with those messages.
package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "wheel.v1.WheelService"

// Full method names.
const (
	MethodStartBatch  = "/" + ServiceName + "/StartBatch"
	MethodAbortBatch  = "/" + ServiceName + "/AbortBatch"
	MethodGetState    = "/" + ServiceName + "/GetState"
	MethodReloadPool  = "/" + ServiceName + "/ReloadPool"
	MethodListHistory = "/" + ServiceName + "/ListHistory"
	MethodListBatch   = "/" + ServiceName + "/ListBatch"
	MethodGetStats    = "/" + ServiceName + "/GetStats"
	MethodWatchEvents = "/" + ServiceName + "/WatchEvents"
)

// WheelServer is the server API of wheel.v1.WheelService.
type WheelServer interface {
	StartBatch(context.Context, *wrapperspb.Int32Value) (*structpb.Struct, error)
	AbortBatch(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ReloadPool(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListHistory(context.Context, *wrapperspb.Int32Value) (*structpb.ListValue, error)
	ListBatch(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
	GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	WatchEvents(*emptypb.Empty, grpc.ServerStream) error
}

// RegisterWheelServer registers srv on s.
func RegisterWheelServer(s grpc.ServiceRegistrar, srv WheelServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WheelServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartBatch", Handler: startBatchHandler},
		{MethodName: "AbortBatch", Handler: abortBatchHandler},
		{MethodName: "GetState", Handler: getStateHandler},
		{MethodName: "ReloadPool", Handler: reloadPoolHandler},
		{MethodName: "ListHistory", Handler: listHistoryHandler},
		{MethodName: "ListBatch", Handler: listBatchHandler},
		{MethodName: "GetStats", Handler: getStatsHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchEvents", Handler: watchEventsHandler, ServerStreams: true},
	},
	Metadata: "wheel/v1/wheel.proto",
}

func startBatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int32Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WheelServer).StartBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodStartBatch}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WheelServer).StartBatch(ctx, req.(*wrapperspb.Int32Value))
	}
	return interceptor(ctx, in, info, handler)
}

func abortBatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WheelServer).AbortBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodAbortBatch}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WheelServer).AbortBatch(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getStateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WheelServer).GetState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetState}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WheelServer).GetState(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func reloadPoolHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WheelServer).ReloadPool(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodReloadPool}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WheelServer).ReloadPool(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func listHistoryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int32Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WheelServer).ListHistory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListHistory}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WheelServer).ListHistory(ctx, req.(*wrapperspb.Int32Value))
	}
	return interceptor(ctx, in, info, handler)
}

func listBatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WheelServer).ListBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListBatch}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WheelServer).ListBatch(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WheelServer).GetStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetStats}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WheelServer).GetStats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(WheelServer).WatchEvents(in, stream)
}
