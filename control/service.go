// Package control exposes one recorder per process to other programs:
// start, stop and save-replay over gRPC.
package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "screenrec.Control"

	methodStart      = "/" + ServiceName + "/Start"
	methodStop       = "/" + ServiceName + "/Stop"
	methodSaveReplay = "/" + ServiceName + "/SaveReplay"
)

// ControlServer is implemented by Server; messages are well-known protobuf
// types, so no generated code is required on either side.
type ControlServer interface {
	Start(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	Stop(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	SaveReplay(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
}

func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&serviceDesc, srv)
}

type unaryMethod func(ControlServer, context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)

func unaryHandler(fullMethod string, method unaryMethod) grpc.MethodHandler {
	return func(
		srv any,
		ctx context.Context,
		dec func(any) error,
		interceptor grpc.UnaryServerInterceptor,
	) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(ControlServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return method(srv.(ControlServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Start",
			Handler:    unaryHandler(methodStart, ControlServer.Start),
		},
		{
			MethodName: "Stop",
			Handler:    unaryHandler(methodStop, ControlServer.Stop),
		},
		{
			MethodName: "SaveReplay",
			Handler:    unaryHandler(methodSaveReplay, ControlServer.SaveReplay),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "screenrec/control.proto",
}
