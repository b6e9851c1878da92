package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "rulesmith.v1.ConversationService"

// ConversationServer is the server API for ConversationService.
// Requests and responses are google.protobuf.Struct values.
type ConversationServer interface {
	StartSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SendMessage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EndSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(ConversationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

func unaryHandler(method string, call unaryMethod) methodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ConversationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ConversationServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ConversationServiceDesc describes ConversationService for grpc.ServiceRegistrar.
// It is hand-written; no generated file descriptor backs it, so Metadata is unset.
var ConversationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConversationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartSession", Handler: unaryHandler("StartSession", ConversationServer.StartSession)},
		{MethodName: "SendMessage", Handler: unaryHandler("SendMessage", ConversationServer.SendMessage)},
		{MethodName: "ResetSession", Handler: unaryHandler("ResetSession", ConversationServer.ResetSession)},
		{MethodName: "GetSession", Handler: unaryHandler("GetSession", ConversationServer.GetSession)},
		{MethodName: "ExportRule", Handler: unaryHandler("ExportRule", ConversationServer.ExportRule)},
		{MethodName: "EndSession", Handler: unaryHandler("EndSession", ConversationServer.EndSession)},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterConversationServer registers srv on s.
func RegisterConversationServer(s grpc.ServiceRegistrar, srv ConversationServer) {
	s.RegisterService(&ConversationServiceDesc, srv)
}
