// Code generated by protoc-gen-go-grpc from runner.proto. Hand-maintained
// in this tree because protoc is not available in this build environment
// — see DESIGN.md.

package runnerpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	Runner_CheckReadiness_FullMethodName = "/buildbarn.runner.Runner/CheckReadiness"
	Runner_Run_FullMethodName            = "/buildbarn.runner.Runner/Run"
)

// RunnerClient is the client API for the Runner service.
type RunnerClient interface {
	CheckReadiness(ctx context.Context, in *CheckReadinessRequest, opts ...grpc.CallOption) (*CheckReadinessResponse, error)
	Run(ctx context.Context, in *RunRequest, opts ...grpc.CallOption) (*RunResponse, error)
}

type runnerClient struct {
	cc grpc.ClientConnInterface
}

// NewRunnerClient constructs a client bound to cc, typically a connection
// dialed against a bb_runner Unix domain socket.
func NewRunnerClient(cc grpc.ClientConnInterface) RunnerClient {
	return &runnerClient{cc}
}

func (c *runnerClient) CheckReadiness(ctx context.Context, in *CheckReadinessRequest, opts ...grpc.CallOption) (*CheckReadinessResponse, error) {
	out := new(CheckReadinessResponse)
	if err := c.cc.Invoke(ctx, Runner_CheckReadiness_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *runnerClient) Run(ctx context.Context, in *RunRequest, opts ...grpc.CallOption) (*RunResponse, error) {
	out := new(RunResponse)
	if err := c.cc.Invoke(ctx, Runner_Run_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RunnerServer is the server API for the Runner service.
type RunnerServer interface {
	CheckReadiness(context.Context, *CheckReadinessRequest) (*CheckReadinessResponse, error)
	Run(context.Context, *RunRequest) (*RunResponse, error)
}

// UnimplementedRunnerServer must be embedded by every implementation so
// the service keeps compiling as methods are added to the interface.
type UnimplementedRunnerServer struct{}

func (UnimplementedRunnerServer) CheckReadiness(context.Context, *CheckReadinessRequest) (*CheckReadinessResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CheckReadiness not implemented")
}

func (UnimplementedRunnerServer) Run(context.Context, *RunRequest) (*RunResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Run not implemented")
}

// RegisterRunnerServer attaches srv to s under the Runner service name.
func RegisterRunnerServer(s grpc.ServiceRegistrar, srv RunnerServer) {
	s.RegisterService(&Runner_ServiceDesc, srv)
}

func _Runner_CheckReadiness_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CheckReadinessRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RunnerServer).CheckReadiness(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Runner_CheckReadiness_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RunnerServer).CheckReadiness(ctx, req.(*CheckReadinessRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Runner_Run_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RunRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RunnerServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Runner_Run_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RunnerServer).Run(ctx, req.(*RunRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Runner_ServiceDesc is the grpc.ServiceDesc for the Runner service.
var Runner_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "buildbarn.runner.Runner",
	HandlerType: (*RunnerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CheckReadiness",
			Handler:    _Runner_CheckReadiness_Handler,
		},
		{
			MethodName: "Run",
			Handler:    _Runner_Run_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "runner.proto",
}
