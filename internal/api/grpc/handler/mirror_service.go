package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// MirrorServiceName is the gRPC service serving collection mirrors.
	MirrorServiceName = "easygrocer.Mirror"
	// WatchMethod streams full snapshots of one collection.
	WatchMethod = "/" + MirrorServiceName + "/Watch"
)

// MirrorServer is implemented by Mirror.
//
// Requests and responses are google.protobuf.Struct messages:
//
//	request:  {"collection": "products"}
//	response: {"collection": "products", "documents": [{"key": "...", "fields": {...}}]}
type MirrorServer interface {
	Watch(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error
}

func watchHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(MirrorServer).Watch(req, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// MirrorServiceDesc describes the Mirror service for grpc.Server.RegisterService.
var MirrorServiceDesc = grpc.ServiceDesc{
	ServiceName: MirrorServiceName,
	HandlerType: (*MirrorServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
}

// MirrorClient calls the Mirror service.
type MirrorClient struct {
	cc grpc.ClientConnInterface
}

func NewMirrorClient(cc grpc.ClientConnInterface) *MirrorClient {
	return &MirrorClient{cc: cc}
}

// Watch opens a snapshot stream for collection.
func (c *MirrorClient) Watch(ctx context.Context, collection string, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	req, err := structpb.NewStruct(map[string]interface{}{"collection": collection})
	if err != nil {
		return nil, err
	}

	stream, err := c.cc.NewStream(ctx, &MirrorServiceDesc.Streams[0], WatchMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
