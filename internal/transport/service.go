package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	groupServiceName = "lamport.v1.Group"
	deliverMethod    = "/lamport.v1.Group/Deliver"

	// Metadata keys carried on every delivery.
	groupMetadataKey  = "x-lamport-group"
	senderMetadataKey = "x-lamport-sender"
)

// groupServer is the server API of the lamport.v1.Group service:
//
//	service Group {
//	  rpc Deliver(google.protobuf.BytesValue) returns (google.protobuf.Empty);
//	}
type groupServer interface {
	Deliver(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error)
}

func deliverHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(groupServer).Deliver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: deliverMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(groupServer).Deliver(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

var groupServiceDesc = grpc.ServiceDesc{
	ServiceName: groupServiceName,
	HandlerType: (*groupServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Deliver",
			Handler:    deliverHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lamport/v1/group.proto",
}

// deliver invokes Deliver on a peer connection.
func deliver(ctx context.Context, conn grpc.ClientConnInterface, data []byte) error {
	return conn.Invoke(ctx, deliverMethod, wrapperspb.Bytes(data), new(emptypb.Empty))
}
