package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName          = "recommender.v1.Recommender"
	RecommendMethod      = "/" + ServiceName + "/Recommend"
	RecommendBatchMethod = "/" + ServiceName + "/RecommendBatch"
)

// RecommenderServer — контракт gRPC-сервиса. Запросы и ответы передаются как google.protobuf.Struct.
type RecommenderServer interface {
	Recommend(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecommendBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var RecommenderServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecommenderServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Recommend", Handler: unaryHandler(RecommendMethod, RecommenderServer.Recommend)},
		{MethodName: "RecommendBatch", Handler: unaryHandler(RecommendBatchMethod, RecommenderServer.RecommendBatch)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "recommender/v1/recommender.proto",
}

func RegisterRecommenderServer(s grpc.ServiceRegistrar, srv RecommenderServer) {
	s.RegisterService(&RecommenderServiceDesc, srv)
}

type structMethod func(RecommenderServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RecommenderServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RecommenderServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RecommenderClient — клиент для сервисов, которые ходят в рекомендации по gRPC.
type RecommenderClient struct {
	cc grpc.ClientConnInterface
}

func NewRecommenderClient(cc grpc.ClientConnInterface) *RecommenderClient {
	return &RecommenderClient{cc: cc}
}

func (c *RecommenderClient) Recommend(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RecommendMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RecommenderClient) RecommendBatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RecommendBatchMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
