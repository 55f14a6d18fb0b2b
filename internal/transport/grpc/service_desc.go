package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// The service has no .proto of its own. Every message is a
// google.protobuf.Struct with snake_case fields, so any gRPC client that
// ships the well-known types can call it.

const ConflictsServiceName = "bookingcrm.v1.Conflicts"

const (
	CheckConflictsFullMethod    = "/" + ConflictsServiceName + "/CheckConflicts"
	WatchConflictsFullMethod    = "/" + ConflictsServiceName + "/WatchConflicts"
	CreateBookingFullMethod     = "/" + ConflictsServiceName + "/CreateBooking"
	RescheduleBookingFullMethod = "/" + ConflictsServiceName + "/RescheduleBooking"
	DeleteBookingFullMethod     = "/" + ConflictsServiceName + "/DeleteBooking"
)

type WatchConflictsStream = grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]

type ConflictsServiceServer interface {
	CheckConflicts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	WatchConflicts(stream WatchConflictsStream) error
	CreateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RescheduleBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DeleteBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var ConflictsServiceDesc = grpc.ServiceDesc{
	ServiceName: ConflictsServiceName,
	HandlerType: (*ConflictsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CheckConflicts",
			Handler: unaryHandler(CheckConflictsFullMethod, func(srv ConflictsServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.CheckConflicts(ctx, req)
			}),
		},
		{
			MethodName: "CreateBooking",
			Handler: unaryHandler(CreateBookingFullMethod, func(srv ConflictsServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.CreateBooking(ctx, req)
			}),
		},
		{
			MethodName: "RescheduleBooking",
			Handler: unaryHandler(RescheduleBookingFullMethod, func(srv ConflictsServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.RescheduleBooking(ctx, req)
			}),
		},
		{
			MethodName: "DeleteBooking",
			Handler: unaryHandler(DeleteBookingFullMethod, func(srv ConflictsServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.DeleteBooking(ctx, req)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchConflicts",
			Handler:       watchConflictsHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "bookingcrm/v1/conflicts",
}

func RegisterConflictsServiceServer(s grpc.ServiceRegistrar, srv ConflictsServiceServer) {
	s.RegisterService(&ConflictsServiceDesc, srv)
}

// unaryMethodHandler matches grpc.MethodDesc.Handler.
type unaryMethodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

func unaryHandler(fullMethod string, call func(ConflictsServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) unaryMethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ConflictsServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ConflictsServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchConflictsHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ConflictsServiceServer).WatchConflicts(&grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// ConflictsClient calls the service over any client connection.
type ConflictsClient struct {
	cc grpc.ClientConnInterface
}

func NewConflictsClient(cc grpc.ClientConnInterface) *ConflictsClient {
	return &ConflictsClient{cc: cc}
}

func (c *ConflictsClient) CheckConflicts(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CheckConflictsFullMethod, in, opts...)
}

func (c *ConflictsClient) CreateBooking(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CreateBookingFullMethod, in, opts...)
}

func (c *ConflictsClient) RescheduleBooking(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RescheduleBookingFullMethod, in, opts...)
}

func (c *ConflictsClient) DeleteBooking(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, DeleteBookingFullMethod, in, opts...)
}

func (c *ConflictsClient) WatchConflicts(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[structpb.Struct, structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &ConflictsServiceDesc.Streams[0], WatchConflictsFullMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}, nil
}

func (c *ConflictsClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
