package grpcexec

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "stitchgql.federate.Executor"

// ExecutorServer is what a federated backend implements to be reachable over
// this transport.
type ExecutorServer interface {
	Execute(context.Context, *ExecuteRequest) (*ExecuteResponse, error)
	Follow(*FollowRequest, Executor_FollowServer) error
	Subscribe(*SubscribeRequest, Executor_SubscribeServer) error
}

// Executor_FollowServer is the server-side handle for a Follow stream.
type Executor_FollowServer interface {
	Send(*IncrementalPayload) error
	grpc.ServerStream
}

// Executor_SubscribeServer is the server-side handle for a Subscribe stream.
type Executor_SubscribeServer interface {
	Send(*IncrementalPayload) error
	grpc.ServerStream
}

type grpcFollowServer struct{ grpc.ServerStream }

func (x *grpcFollowServer) Send(m *IncrementalPayload) error { return x.ServerStream.SendMsg(m) }

type grpcSubscribeServer struct{ grpc.ServerStream }

func (x *grpcSubscribeServer) Send(m *IncrementalPayload) error { return x.ServerStream.SendMsg(m) }

func executeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ExecuteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExecutorServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Execute"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ExecutorServer).Execute(ctx, req.(*ExecuteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func followHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(FollowRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ExecutorServer).Follow(in, &grpcFollowServer{stream})
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ExecutorServer).Subscribe(in, &grpcSubscribeServer{stream})
}

// ServiceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would generate from a .proto definition of this service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ExecutorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: executeHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Follow", Handler: followHandler, ServerStreams: true},
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "grpcexec.proto",
}

// RegisterExecutorServer registers srv on s under this package's ServiceDesc.
func RegisterExecutorServer(s *grpc.Server, srv ExecutorServer) {
	s.RegisterService(&ServiceDesc, srv)
}
