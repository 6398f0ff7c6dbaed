package remote

import (
	"context"

	"github.com/Digithought/quereus-sub006/vtab"
)

// remoteTable is the client-side vtab.Table handle: every Query/Update goes
// out over the wire to whatever server TableServiceClient was dialed for.
type remoteTable struct {
	client TableServiceClient
	spec   vtab.TableSpec
}

func (t *remoteTable) Query(ctx context.Context, filter vtab.FilterInfo) (vtab.RowStream, error) {
	params, err := rowToPB(vtab.Row(filter.Params))
	if err != nil {
		return nil, err
	}
	req := &QueryRequest{
		SchemaName:  t.spec.SchemaName,
		TableName:   t.spec.TableName,
		Constraints: constraintsToWire(filter.Constraints),
		Params:      params,
	}
	if filter.Limit != nil {
		req.Limit = *filter.Limit
		req.HasLimit = true
	}
	stream, err := t.client.Query(ctx, req)
	if err != nil {
		return nil, mapGRPCError(err)
	}
	return &remoteRowStream{stream: stream, columns: t.spec.Columns}, nil
}

func (t *remoteTable) Update(ctx context.Context, args vtab.UpdateArgs) (vtab.UpdateResult, error) {
	oldKey, err := rowToPB(args.OldKey)
	if err != nil {
		return vtab.UpdateResult{}, err
	}
	newValues, err := rowToPB(args.NewValues)
	if err != nil {
		return vtab.UpdateResult{}, err
	}
	reply, err := t.client.Update(ctx, &UpdateRequest{
		SchemaName:         t.spec.SchemaName,
		TableName:          t.spec.TableName,
		Op:                 int32(args.Op),
		OldKey:             oldKey,
		NewValues:          newValues,
		ConflictResolution: int32(args.ConflictResolution),
	})
	if err != nil {
		return vtab.UpdateResult{}, mapGRPCError(err)
	}
	row, err := pbToRow(reply.Row, t.spec.Columns)
	if err != nil {
		return vtab.UpdateResult{}, err
	}
	deletedKey, err := pbToRow(reply.DeletedKey, pkColumns(t.spec))
	if err != nil {
		return vtab.UpdateResult{}, err
	}
	return vtab.UpdateResult{Row: row, Deleted: reply.Deleted, DeletedKey: deletedKey}, nil
}

func pkColumns(spec vtab.TableSpec) []vtab.ColumnSpec {
	if len(spec.PrimaryKey) == 0 {
		return spec.Columns
	}
	out := make([]vtab.ColumnSpec, 0, len(spec.PrimaryKey))
	for _, name := range spec.PrimaryKey {
		for _, c := range spec.Columns {
			if c.Name == name {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// CreateConnection only allocates the client-side handle; unlike
// memtable's tableConnection (a bare pointer needing no I/O until Begin),
// the server only learns of this connection once Begin's BeginRequest
// names the table it should open a transaction against.
func (t *remoteTable) CreateConnection(ctx context.Context) (vtab.Connection, error) {
	return &remoteConnection{client: t.client, schemaName: t.spec.SchemaName, tableName: t.spec.TableName}, nil
}

func (t *remoteTable) Disconnect(ctx context.Context) error { return nil }

// GetBestAccessPlan accepts every constraint it's offered: unlike
// sqlbridge, the server decides what it can serve (its own storage may be
// anything), so the client-side plan is advisory only and a conservative
// "yes, try it" — the server silently ignores whatever it can't push down
// and the caller's residual Filter/Sort/Limit still runs in-process.
func (t *remoteTable) GetBestAccessPlan(filter vtab.FilterInfo) vtab.AccessPlan {
	plan := vtab.AccessPlan{EstimatedRows: -1}
	for i := range filter.Constraints {
		plan.Predicates = append(plan.Predicates, vtab.PredicateSupport{ConstraintIndex: i, Accepted: true})
	}
	return plan
}

var (
	_ vtab.Table         = (*remoteTable)(nil)
	_ vtab.AccessPlanner = (*remoteTable)(nil)
)

// remoteConnection is the client-side vtab.Connection: Begin/Commit/
// Rollback/savepoints all forward to the server keyed by the connection
// handle the server minted in CreateConnection's Begin call.
type remoteConnection struct {
	client     TableServiceClient
	schemaName string
	tableName  string
	connID     string
}

func (c *remoteConnection) Begin(ctx context.Context) error {
	reply, err := c.client.Begin(ctx, &BeginRequest{SchemaName: c.schemaName, TableName: c.tableName})
	if err != nil {
		return mapGRPCError(err)
	}
	c.connID = reply.ConnId
	return nil
}

func (c *remoteConnection) Commit(ctx context.Context) error {
	_, err := c.client.Commit(ctx, &CommitRequest{ConnId: c.connID})
	return mapGRPCError(err)
}

func (c *remoteConnection) Rollback(ctx context.Context) error {
	_, err := c.client.Rollback(ctx, &RollbackRequest{ConnId: c.connID})
	return mapGRPCError(err)
}

func (c *remoteConnection) CreateSavepoint(ctx context.Context, name string) error {
	_, err := c.client.CreateSavepoint(ctx, &SavepointRequest{ConnId: c.connID, Name: name})
	return mapGRPCError(err)
}

func (c *remoteConnection) ReleaseSavepoint(ctx context.Context, name string) error {
	_, err := c.client.ReleaseSavepoint(ctx, &SavepointRequest{ConnId: c.connID, Name: name})
	return mapGRPCError(err)
}

func (c *remoteConnection) RollbackToSavepoint(ctx context.Context, name string) error {
	_, err := c.client.RollbackToSavepoint(ctx, &SavepointRequest{ConnId: c.connID, Name: name})
	return mapGRPCError(err)
}

var _ vtab.Connection = (*remoteConnection)(nil)

// remoteRowStream adapts the server-streaming Query RPC to vtab.RowStream.
type remoteRowStream struct {
	stream  TableService_QueryClient
	columns []vtab.ColumnSpec
}

func (s *remoteRowStream) Next(ctx context.Context) (vtab.Row, error) {
	reply, err := s.stream.Recv()
	if err != nil {
		return nil, mapGRPCError(err)
	}
	if reply.Done {
		return nil, nil
	}
	return pbToRow(reply.Row, s.columns)
}

func (s *remoteRowStream) Close() error {
	if cs, ok := s.stream.(interface{ CloseSend() error }); ok {
		return cs.CloseSend()
	}
	return nil
}

var _ vtab.RowStream = (*remoteRowStream)(nil)
