package remote

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/memtable"
	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

// dialer builds a bufconn-backed in-process TableServiceClient fronting a
// fresh memtable.New() module, so these tests exercise the full
// encode/RPC/decode path without an actual TCP listener.
func dialer(t *testing.T) TableServiceClient {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterTableServiceServer(srv, NewServer(memtable.New()))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
		grpc.WithBlock(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewTableServiceClient(conn)
}

func newWidgetsSpec() vtab.TableSpec {
	return vtab.TableSpec{
		SchemaName: "main",
		TableName:  "widgets",
		Columns: []vtab.ColumnSpec{
			{Name: "id", Logical: types.LogicalType{Physical: types.PhysicalInteger}},
			{Name: "name", Logical: types.LogicalType{Physical: types.PhysicalText}, Nullable: true},
		},
		PrimaryKey: []string{"id"},
	}
}

func TestRemoteCreateQueryUpdateRoundTrip(t *testing.T) {
	client := dialer(t)
	table := &remoteTable{client: client, spec: newWidgetsSpec()}

	_, err := client.Create(context.Background(), &CreateRequest{
		SchemaName: "main",
		TableName:  "widgets",
		Columns:    toColumnDescriptors(newWidgetsSpec().Columns),
		PrimaryKey: []string{"id"},
	})
	require.NoError(t, err)

	_, err = table.Update(context.Background(), vtab.UpdateArgs{
		Op:        vtab.UpdateInsert,
		NewValues: vtab.Row{types.Int(1), types.Text("bolt")},
	})
	require.NoError(t, err)

	stream, err := table.Query(context.Background(), vtab.FilterInfo{})
	require.NoError(t, err)
	defer stream.Close()

	row, err := stream.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, types.Int(1), row[0])
	assert.Equal(t, types.Text("bolt"), row[1])

	row, err = stream.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestRemoteTransactionRollback(t *testing.T) {
	client := dialer(t)
	table := &remoteTable{client: client, spec: newWidgetsSpec()}
	_, err := client.Create(context.Background(), &CreateRequest{
		SchemaName: "main", TableName: "widgets",
		Columns: toColumnDescriptors(newWidgetsSpec().Columns), PrimaryKey: []string{"id"},
	})
	require.NoError(t, err)

	conn, err := table.CreateConnection(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Begin(context.Background()))

	_, err = table.Update(context.Background(), vtab.UpdateArgs{
		Op:        vtab.UpdateInsert,
		NewValues: vtab.Row{types.Int(9), types.Text("temp")},
	})
	require.NoError(t, err)
	require.NoError(t, conn.Rollback(context.Background()))

	stream, err := table.Query(context.Background(), vtab.FilterInfo{})
	require.NoError(t, err)
	defer stream.Close()
	row, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, row, "rollback over gRPC should undo the insert issued inside the transaction")
}

func TestRemoteDestroyThenConnectFails(t *testing.T) {
	client := dialer(t)
	_, err := client.Create(context.Background(), &CreateRequest{
		SchemaName: "main", TableName: "widgets",
		Columns: toColumnDescriptors(newWidgetsSpec().Columns), PrimaryKey: []string{"id"},
	})
	require.NoError(t, err)

	_, err = client.Destroy(context.Background(), &DestroyRequest{SchemaName: "main", TableName: "widgets"})
	require.NoError(t, err)

	_, err = client.Connect(context.Background(), &ConnectRequest{SchemaName: "main", TableName: "widgets"})
	assert.Error(t, err)
}

func TestMapGRPCErrorTranslatesNotFound(t *testing.T) {
	client := dialer(t)
	_, err := client.Connect(context.Background(), &ConnectRequest{SchemaName: "main", TableName: "missing"})
	require.Error(t, err)
	mapped := mapGRPCError(err)
	assert.True(t, errs.Is(mapped, errs.KindSchemaMissing))
}
