package remote

import (
	"context"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/vtab"
)

// Module is the gRPC-backed vtab.Module (spec §4.6): Create dials (or
// reuses) a connection to the address named in a table's ModuleArgs[0],
// Connect to the address in its "address" option, and Destroy asks each
// server already dialed in turn; every subsequent Query/Update/Connection
// call is delegated over the wire, proving the Virtual-Table Contract works for an
// out-of-process backend, not just memtable's in-memory one or
// vtab/sqlbridge's database/sql one.
//
// Grounded on the teacher's driver package's one-Database-per-backend
// pattern, generalized the way vtab/sqlbridge generalizes it: a shared
// *grpc.ClientConn per target address, looked up by address rather than by
// dialect+DSN.
type Module struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// New returns an empty remote-table module.
func New() *Module {
	return &Module{conns: make(map[string]*grpc.ClientConn)}
}

// dialWithRetry dials addr, retrying with exponential backoff (spec.md §7:
// retries are the caller's concern for statement semantics, but a dial
// failure is a pure transport hiccup this module is entitled to paper
// over, not a statement outcome).
func dialWithRetry(ctx context.Context, addr string) (*grpc.ClientConn, error) {
	var conn *grpc.ClientConn
	op := func() error {
		c, err := grpc.DialContext(ctx, addr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
			grpc.WithBlock(),
		)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, errs.Wrap(errs.KindVirtualTable, err, "remote: dial %s", addr)
	}
	return conn, nil
}

func (m *Module) connFor(ctx context.Context, addr string) (*grpc.ClientConn, error) {
	m.mu.Lock()
	if c, ok := m.conns[addr]; ok {
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	c, err := dialWithRetry(ctx, addr)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.conns[addr]; ok {
		c.Close()
		return existing, nil
	}
	m.conns[addr] = c
	return c, nil
}

// addrOf reads the ModuleArgs[0] convention every remote-backed table
// declares: the dial address of the server hosting it (spec §4.6
// "ModuleArgs... module-specific" — here, exactly one arg).
func addrOf(spec vtab.TableSpec) (string, error) {
	if len(spec.ModuleArgs) < 1 || spec.ModuleArgs[0] == "" {
		return "", errs.New(errs.KindMisuse, "remote: table requires a dial address as ModuleArgs[0]")
	}
	return spec.ModuleArgs[0], nil
}

func toColumnDescriptors(cols []vtab.ColumnSpec) []*ColumnDescriptor {
	out := make([]*ColumnDescriptor, len(cols))
	for i, c := range cols {
		out[i] = &ColumnDescriptor{Name: c.Name, Physical: int32(c.Logical.Physical), Nullable: c.Nullable}
	}
	return out
}

func (m *Module) Create(ctx context.Context, spec vtab.TableSpec) (vtab.Table, error) {
	addr, err := addrOf(spec)
	if err != nil {
		return nil, err
	}
	conn, err := m.connFor(ctx, addr)
	if err != nil {
		return nil, err
	}
	client := NewTableServiceClient(conn)
	_, err = client.Create(ctx, &CreateRequest{
		SchemaName: spec.SchemaName,
		TableName:  spec.TableName,
		Columns:    toColumnDescriptors(spec.Columns),
		PrimaryKey: spec.PrimaryKey,
		ModuleArgs: spec.ModuleArgs,
	})
	if err != nil {
		return nil, mapGRPCError(err)
	}
	return &remoteTable{client: client, spec: spec}, nil
}

func (m *Module) Connect(ctx context.Context, schemaName, tableName string, options map[string]string) (vtab.Table, error) {
	addr, ok := options["address"]
	if !ok || addr == "" {
		return nil, errs.New(errs.KindMisuse, "remote: Connect requires an \"address\" option")
	}
	conn, err := m.connFor(ctx, addr)
	if err != nil {
		return nil, err
	}
	client := NewTableServiceClient(conn)
	reply, err := client.Connect(ctx, &ConnectRequest{SchemaName: schemaName, TableName: tableName, Options: options})
	if err != nil {
		return nil, mapGRPCError(err)
	}
	cols := make([]vtab.ColumnSpec, len(reply.Columns))
	for i, c := range reply.Columns {
		cols[i] = vtab.ColumnSpec{Name: c.Name, Logical: logicalOf(c.Physical), Nullable: c.Nullable}
	}
	spec := vtab.TableSpec{SchemaName: schemaName, TableName: tableName, Columns: cols, PrimaryKey: reply.PrimaryKey}
	return &remoteTable{client: client, spec: spec}, nil
}

func (m *Module) Destroy(ctx context.Context, schemaName, tableName string) error {
	m.mu.Lock()
	var clients []TableServiceClient
	for _, c := range m.conns {
		clients = append(clients, NewTableServiceClient(c))
	}
	m.mu.Unlock()

	var lastErr error
	for _, client := range clients {
		_, err := client.Destroy(ctx, &DestroyRequest{SchemaName: schemaName, TableName: tableName})
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr == nil {
		return errs.New(errs.KindSchemaMissing, "remote: no connected server hosts %s.%s", schemaName, tableName)
	}
	return mapGRPCError(lastErr)
}

var _ vtab.Module = (*Module)(nil)
