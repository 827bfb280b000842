package grpcclient

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// RecognizerServer is the server side of the text recognizer service. The
// request carries a PNG-encoded two-color image; an empty response means no
// text was found.
type RecognizerServer interface {
	ExtractText(ctx context.Context, image *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
}

// RegisterRecognizerServer registers srv on s.
func RegisterRecognizerServer(s grpc.ServiceRegistrar, srv RecognizerServer) {
	s.RegisterService(&recognizerServiceDesc, srv)
}

// Language returns the recognition language sent by the client, or "".
func Language(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(LanguageKey); len(v) > 0 {
		return v[0]
	}
	return ""
}

func extractTextHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecognizerServer).ExtractText(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExtractTextMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RecognizerServer).ExtractText(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

var recognizerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecognizerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ExtractText", Handler: extractTextHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ocr/v1/recognizer.proto",
}
