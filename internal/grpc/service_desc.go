package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Full method names of lmd.rider.v1.RiderService.
const (
	riderServiceName           = "lmd.rider.v1.RiderService"
	MethodHealth               = "/" + riderServiceName + "/Health"
	MethodReportLocation       = "/" + riderServiceName + "/ReportLocation"
	MethodUpdatePickupStatus   = "/" + riderServiceName + "/UpdatePickupStatus"
	MethodUpdateShipmentStatus = "/" + riderServiceName + "/UpdateShipmentStatus"
)

// RiderServiceServer is the rider device API. Requests and responses are
// google.protobuf.Struct so devices can evolve fields without regenerating
// stubs.
type RiderServiceServer interface {
	Health(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReportLocation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdatePickupStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateShipmentStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(RiderServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RiderServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RiderServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RiderServiceDesc describes lmd.rider.v1.RiderService for grpc.Server.
var RiderServiceDesc = grpc.ServiceDesc{
	ServiceName: riderServiceName,
	HandlerType: (*RiderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Health", Handler: unaryHandler(MethodHealth, RiderServiceServer.Health)},
		{MethodName: "ReportLocation", Handler: unaryHandler(MethodReportLocation, RiderServiceServer.ReportLocation)},
		{MethodName: "UpdatePickupStatus", Handler: unaryHandler(MethodUpdatePickupStatus, RiderServiceServer.UpdatePickupStatus)},
		{MethodName: "UpdateShipmentStatus", Handler: unaryHandler(MethodUpdateShipmentStatus, RiderServiceServer.UpdateShipmentStatus)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lmd/rider/v1/rider.proto",
}

// RegisterRiderServiceServer registers srv on s.
func RegisterRiderServiceServer(s grpc.ServiceRegistrar, srv RiderServiceServer) {
	s.RegisterService(&RiderServiceDesc, srv)
}

// RiderServiceClient calls RiderService over conn.
type RiderServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewRiderServiceClient wraps an established connection.
func NewRiderServiceClient(cc grpc.ClientConnInterface) *RiderServiceClient {
	return &RiderServiceClient{cc: cc}
}

func (c *RiderServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RiderServiceClient) Health(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodHealth, in, opts...)
}

func (c *RiderServiceClient) ReportLocation(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodReportLocation, in, opts...)
}

func (c *RiderServiceClient) UpdatePickupStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodUpdatePickupStatus, in, opts...)
}

func (c *RiderServiceClient) UpdateShipmentStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodUpdateShipmentStatus, in, opts...)
}
