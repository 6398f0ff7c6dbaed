package remote

// Hand-authored in the shape protoc-gen-go-grpc would emit from a
// table_service.proto (method names, codec, and stream wiring match what
// that generator produces), since this module has no protoc step; only the
// wire *messages* are the protobuf-library's pre-built structpb types,
// which is the part that actually requires generated ProtoReflect()
// machinery. The ServiceDesc/client/server plumbing below only needs
// grpc.ClientConn.Invoke/NewStream, which any correctly-shaped Go type
// can drive.

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "quereus.remote.TableService"

// CreateRequest/CreateReply etc. are the request/reply message types for
// each RPC. Each embeds structpb types for its variable-shaped payload
// (row values, constraints) and plain scalars for everything fixed-shape,
// rather than defining one .proto message per RPC by hand.

type CreateRequest struct {
	SchemaName string
	TableName  string
	Columns    []*ColumnDescriptor
	PrimaryKey []string
	ModuleArgs []string
}

type ColumnDescriptor struct {
	Name     string
	Physical int32
	Nullable bool
}

type CreateReply struct{}

type ConnectRequest struct {
	SchemaName string
	TableName  string
	Options    map[string]string
}

type ConnectReply struct {
	Columns    []*ColumnDescriptor
	PrimaryKey []string
}

type DestroyRequest struct {
	SchemaName string
	TableName  string
}

type DestroyReply struct{}

type QueryRequest struct {
	SchemaName  string
	TableName   string
	Constraints []*WireConstraint
	Params      *structpb.ListValue
	Limit       int64
	HasLimit    bool
}

type WireConstraint struct {
	Column int32
	Op     int32
	ArgPos int32
}

// QueryReply is streamed: one reply per row, a final reply with Done set.
type QueryReply struct {
	Row  *structpb.ListValue
	Done bool
}

type UpdateRequest struct {
	SchemaName         string
	TableName          string
	Op                 int32
	OldKey             *structpb.ListValue
	NewValues          *structpb.ListValue
	ConflictResolution int32
}

type UpdateReply struct {
	Row        *structpb.ListValue
	Deleted    bool
	DeletedKey *structpb.ListValue
}

type BeginRequest struct {
	SchemaName string
	TableName  string
}
type BeginReply struct{ ConnId string }

type CommitRequest struct{ ConnId string }
type CommitReply struct{}

type RollbackRequest struct{ ConnId string }
type RollbackReply struct{}

type SavepointRequest struct {
	ConnId string
	Name   string
}
type SavepointReply struct{}

// TableServiceClient is the client stub protoc-gen-go-grpc would generate.
type TableServiceClient interface {
	Create(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*CreateReply, error)
	Connect(ctx context.Context, in *ConnectRequest, opts ...grpc.CallOption) (*ConnectReply, error)
	Destroy(ctx context.Context, in *DestroyRequest, opts ...grpc.CallOption) (*DestroyReply, error)
	Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (TableService_QueryClient, error)
	Update(ctx context.Context, in *UpdateRequest, opts ...grpc.CallOption) (*UpdateReply, error)
	Begin(ctx context.Context, in *BeginRequest, opts ...grpc.CallOption) (*BeginReply, error)
	Commit(ctx context.Context, in *CommitRequest, opts ...grpc.CallOption) (*CommitReply, error)
	Rollback(ctx context.Context, in *RollbackRequest, opts ...grpc.CallOption) (*RollbackReply, error)
	CreateSavepoint(ctx context.Context, in *SavepointRequest, opts ...grpc.CallOption) (*SavepointReply, error)
	ReleaseSavepoint(ctx context.Context, in *SavepointRequest, opts ...grpc.CallOption) (*SavepointReply, error)
	RollbackToSavepoint(ctx context.Context, in *SavepointRequest, opts ...grpc.CallOption) (*SavepointReply, error)
}

type tableServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewTableServiceClient returns a TableServiceClient over cc, the shape
// protoc-gen-go-grpc's NewXxxClient constructor takes.
func NewTableServiceClient(cc grpc.ClientConnInterface) TableServiceClient {
	return &tableServiceClient{cc: cc}
}

func (c *tableServiceClient) Create(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*CreateReply, error) {
	out := new(CreateReply)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Create", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *tableServiceClient) Connect(ctx context.Context, in *ConnectRequest, opts ...grpc.CallOption) (*ConnectReply, error) {
	out := new(ConnectReply)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Connect", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *tableServiceClient) Destroy(ctx context.Context, in *DestroyRequest, opts ...grpc.CallOption) (*DestroyReply, error) {
	out := new(DestroyReply)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Destroy", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *tableServiceClient) Update(ctx context.Context, in *UpdateRequest, opts ...grpc.CallOption) (*UpdateReply, error) {
	out := new(UpdateReply)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Update", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *tableServiceClient) Begin(ctx context.Context, in *BeginRequest, opts ...grpc.CallOption) (*BeginReply, error) {
	out := new(BeginReply)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Begin", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *tableServiceClient) Commit(ctx context.Context, in *CommitRequest, opts ...grpc.CallOption) (*CommitReply, error) {
	out := new(CommitReply)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Commit", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *tableServiceClient) Rollback(ctx context.Context, in *RollbackRequest, opts ...grpc.CallOption) (*RollbackReply, error) {
	out := new(RollbackReply)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Rollback", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *tableServiceClient) CreateSavepoint(ctx context.Context, in *SavepointRequest, opts ...grpc.CallOption) (*SavepointReply, error) {
	out := new(SavepointReply)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/CreateSavepoint", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *tableServiceClient) ReleaseSavepoint(ctx context.Context, in *SavepointRequest, opts ...grpc.CallOption) (*SavepointReply, error) {
	out := new(SavepointReply)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/ReleaseSavepoint", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *tableServiceClient) RollbackToSavepoint(ctx context.Context, in *SavepointRequest, opts ...grpc.CallOption) (*SavepointReply, error) {
	out := new(SavepointReply)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/RollbackToSavepoint", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *tableServiceClient) Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (TableService_QueryClient, error) {
	stream, err := c.cc.NewStream(ctx, &grpc.StreamDesc{StreamName: "Query", ServerStreams: true}, "/"+serviceName+"/Query", opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &tableServiceQueryClient{stream}, nil
}

// TableService_QueryClient is the server-streaming client handle protoc-gen-
// go-grpc generates for a server-streaming RPC.
type TableService_QueryClient interface {
	Recv() (*QueryReply, error)
}

type tableServiceQueryClient struct {
	grpc.ClientStream
}

func (x *tableServiceQueryClient) Recv() (*QueryReply, error) {
	m := new(QueryReply)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// TableServiceServer is the interface a server-side implementation
// satisfies; Server (server.go) implements it on top of a vtab.Module.
type TableServiceServer interface {
	Create(context.Context, *CreateRequest) (*CreateReply, error)
	Connect(context.Context, *ConnectRequest) (*ConnectReply, error)
	Destroy(context.Context, *DestroyRequest) (*DestroyReply, error)
	Query(*QueryRequest, TableService_QueryServer) error
	Update(context.Context, *UpdateRequest) (*UpdateReply, error)
	Begin(context.Context, *BeginRequest) (*BeginReply, error)
	Commit(context.Context, *CommitRequest) (*CommitReply, error)
	Rollback(context.Context, *RollbackRequest) (*RollbackReply, error)
	CreateSavepoint(context.Context, *SavepointRequest) (*SavepointReply, error)
	ReleaseSavepoint(context.Context, *SavepointRequest) (*SavepointReply, error)
	RollbackToSavepoint(context.Context, *SavepointRequest) (*SavepointReply, error)
}

// TableService_QueryServer is the server-side handle for the streaming
// Query RPC.
type TableService_QueryServer interface {
	Send(*QueryReply) error
	grpc.ServerStream
}

type tableServiceQueryServer struct {
	grpc.ServerStream
}

func (x *tableServiceQueryServer) Send(m *QueryReply) error {
	return x.ServerStream.SendMsg(m)
}

func unaryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor,
	method string, newReq func() any, call func(any, context.Context, any) (any, error)) (any, error) {
	in := newReq()
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return call(srv, ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
	handler := func(ctx context.Context, req any) (any, error) { return call(srv, ctx, req) }
	return interceptor(ctx, in, info, handler)
}

// TableServiceDesc is the hand-authored grpc.ServiceDesc a protoc-gen-go-
// grpc-generated _TableService_serviceDesc variable would be.
var TableServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*TableServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Create", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler(srv, ctx, dec, i, "Create", func() any { return new(CreateRequest) },
				func(s any, ctx context.Context, req any) (any, error) { return s.(TableServiceServer).Create(ctx, req.(*CreateRequest)) })
		}},
		{MethodName: "Connect", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler(srv, ctx, dec, i, "Connect", func() any { return new(ConnectRequest) },
				func(s any, ctx context.Context, req any) (any, error) { return s.(TableServiceServer).Connect(ctx, req.(*ConnectRequest)) })
		}},
		{MethodName: "Destroy", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler(srv, ctx, dec, i, "Destroy", func() any { return new(DestroyRequest) },
				func(s any, ctx context.Context, req any) (any, error) { return s.(TableServiceServer).Destroy(ctx, req.(*DestroyRequest)) })
		}},
		{MethodName: "Update", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler(srv, ctx, dec, i, "Update", func() any { return new(UpdateRequest) },
				func(s any, ctx context.Context, req any) (any, error) { return s.(TableServiceServer).Update(ctx, req.(*UpdateRequest)) })
		}},
		{MethodName: "Begin", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler(srv, ctx, dec, i, "Begin", func() any { return new(BeginRequest) },
				func(s any, ctx context.Context, req any) (any, error) { return s.(TableServiceServer).Begin(ctx, req.(*BeginRequest)) })
		}},
		{MethodName: "Commit", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler(srv, ctx, dec, i, "Commit", func() any { return new(CommitRequest) },
				func(s any, ctx context.Context, req any) (any, error) { return s.(TableServiceServer).Commit(ctx, req.(*CommitRequest)) })
		}},
		{MethodName: "Rollback", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler(srv, ctx, dec, i, "Rollback", func() any { return new(RollbackRequest) },
				func(s any, ctx context.Context, req any) (any, error) { return s.(TableServiceServer).Rollback(ctx, req.(*RollbackRequest)) })
		}},
		{MethodName: "CreateSavepoint", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler(srv, ctx, dec, i, "CreateSavepoint", func() any { return new(SavepointRequest) },
				func(s any, ctx context.Context, req any) (any, error) { return s.(TableServiceServer).CreateSavepoint(ctx, req.(*SavepointRequest)) })
		}},
		{MethodName: "ReleaseSavepoint", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler(srv, ctx, dec, i, "ReleaseSavepoint", func() any { return new(SavepointRequest) },
				func(s any, ctx context.Context, req any) (any, error) { return s.(TableServiceServer).ReleaseSavepoint(ctx, req.(*SavepointRequest)) })
		}},
		{MethodName: "RollbackToSavepoint", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler(srv, ctx, dec, i, "RollbackToSavepoint", func() any { return new(SavepointRequest) },
				func(s any, ctx context.Context, req any) (any, error) { return s.(TableServiceServer).RollbackToSavepoint(ctx, req.(*SavepointRequest)) })
		}},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Query",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				m := new(QueryRequest)
				if err := stream.RecvMsg(m); err != nil {
					return err
				}
				return srv.(TableServiceServer).Query(m, &tableServiceQueryServer{stream})
			},
		},
	},
}

// RegisterTableServiceServer registers srv on s, matching protoc-gen-go-
// grpc's generated RegisterXxxServer function.
func RegisterTableServiceServer(s grpc.ServiceRegistrar, srv TableServiceServer) {
	s.RegisterService(&TableServiceDesc, srv)
}

// notFoundErr is returned by server handlers for a schema/table the server
// does not host, mapped to the gRPC NotFound status code so the client's
// error mapping (see errors.go) can translate it back to errs.KindSchemaMissing.
func notFoundErr(format string, args ...any) error {
	return status.Errorf(codes.NotFound, format, args...)
}
