package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// vectorDBServer is implemented by Server. It plays the role a
// protoc-generated "VectorDBServer" interface would play, hand-written
// here since generating it is out of scope for this module.
type vectorDBServer interface {
	Build(context.Context, *BuildRequest) (*BuildResponse, error)
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
	GetAttribute(context.Context, *GetAttributeRequest) (*GetAttributeResponse, error)
}

func _VectorDB_Build_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(BuildRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(vectorDBServer).Build(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vectordb.VectorDB/Build"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(vectorDBServer).Build(ctx, req.(*BuildRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _VectorDB_Query_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(QueryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(vectorDBServer).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vectordb.VectorDB/Query"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(vectorDBServer).Query(ctx, req.(*QueryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _VectorDB_GetAttribute_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetAttributeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(vectorDBServer).GetAttribute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vectordb.VectorDB/GetAttribute"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(vectorDBServer).GetAttribute(ctx, req.(*GetAttributeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the hand-written equivalent of a protoc-generated
// _ServiceDesc: it tells grpc-go how to dispatch each unary method by
// name without any generated registration code.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "vectordb.VectorDB",
	HandlerType: (*vectorDBServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Build", Handler: _VectorDB_Build_Handler},
		{MethodName: "Query", Handler: _VectorDB_Query_Handler},
		{MethodName: "GetAttribute", Handler: _VectorDB_GetAttribute_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pkg/api/grpc/service.go",
}

// RegisterVectorDBServer registers srv against s the way
// proto.RegisterVectorDBServer would.
func RegisterVectorDBServer(s *grpc.Server, srv vectorDBServer) {
	s.RegisterService(&ServiceDesc, srv)
}
