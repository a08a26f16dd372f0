package depthservice

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "gbathy.DepthWorker"

const computeYearMethod = "/" + ServiceName + "/ComputeYear"

type DepthWorkerServer interface {
	ComputeYear(context.Context, *YearRequest) (*YearResult, error)
}

func computeYearHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(YearRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DepthWorkerServer).ComputeYear(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: computeYearMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DepthWorkerServer).ComputeYear(ctx, req.(*YearRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var DepthWorkerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DepthWorkerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ComputeYear",
			Handler:    computeYearHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "depthservice",
}

func RegisterDepthWorkerServer(s grpc.ServiceRegistrar, srv DepthWorkerServer) {
	s.RegisterService(&DepthWorkerServiceDesc, srv)
}
