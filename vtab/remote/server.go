package remote

import (
	"context"
	"strconv"
	"sync"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

type serverTableKey struct {
	schema string
	table  string
}

// Server is the gRPC-side TableServiceServer: it fronts a single backing
// vtab.Module (typically memtable.New(), but any module works) so the
// module's tables can be driven by a remote Module client across a
// network boundary. This is the piece a host process embeds to actually
// serve tables remote.Module dials into; it is not itself a vtab.Module.
type Server struct {
	backing vtab.Module

	mu         sync.Mutex
	tables     map[serverTableKey]vtab.Table
	specs      map[serverTableKey]vtab.TableSpec
	conns      map[string]vtab.Connection
	nextConnID int64
}

// NewServer returns a Server fronting backing.
func NewServer(backing vtab.Module) *Server {
	return &Server{
		backing: backing,
		tables:  make(map[serverTableKey]vtab.Table),
		specs:   make(map[serverTableKey]vtab.TableSpec),
		conns:   make(map[string]vtab.Connection),
	}
}

func (s *Server) Create(ctx context.Context, req *CreateRequest) (*CreateReply, error) {
	cols := make([]vtab.ColumnSpec, len(req.Columns))
	for i, c := range req.Columns {
		cols[i] = vtab.ColumnSpec{Name: c.Name, Logical: logicalOf(c.Physical), Nullable: c.Nullable}
	}
	spec := vtab.TableSpec{
		SchemaName: req.SchemaName,
		TableName:  req.TableName,
		Columns:    cols,
		PrimaryKey: req.PrimaryKey,
		ModuleArgs: req.ModuleArgs,
	}
	t, err := s.backing.Create(ctx, spec)
	if err != nil {
		return nil, toStatusErr(err)
	}
	key := serverTableKey{req.SchemaName, req.TableName}
	s.mu.Lock()
	s.tables[key] = t
	s.specs[key] = spec
	s.mu.Unlock()
	return &CreateReply{}, nil
}

// Connect reattaches to a table this Server's backing module already knows
// about (spec §4.6's Connect, for a backend that can reattach — e.g. this
// same Server process restarting against a persistent backing module); it
// requires the table to have been Created through this Server at least
// once in its lifetime, since the wire reply needs the column spec to
// describe rows and this server has nowhere else to recover it from.
func (s *Server) Connect(ctx context.Context, req *ConnectRequest) (*ConnectReply, error) {
	key := serverTableKey{req.SchemaName, req.TableName}
	s.mu.Lock()
	spec, ok := s.specs[key]
	s.mu.Unlock()
	if !ok {
		return nil, notFoundErr("remote: %s.%s has no recorded column spec; Create it through this server first", req.SchemaName, req.TableName)
	}
	t, err := s.backing.Connect(ctx, req.SchemaName, req.TableName, req.Options)
	if err != nil {
		return nil, toStatusErr(err)
	}
	s.mu.Lock()
	s.tables[key] = t
	s.mu.Unlock()
	return &ConnectReply{Columns: toColumnDescriptors(spec.Columns), PrimaryKey: spec.PrimaryKey}, nil
}

func (s *Server) Destroy(ctx context.Context, req *DestroyRequest) (*DestroyReply, error) {
	key := serverTableKey{req.SchemaName, req.TableName}
	if err := s.backing.Destroy(ctx, req.SchemaName, req.TableName); err != nil {
		return nil, toStatusErr(err)
	}
	s.mu.Lock()
	delete(s.tables, key)
	delete(s.specs, key)
	s.mu.Unlock()
	return &DestroyReply{}, nil
}

func (s *Server) tableFor(schema, table string) (vtab.Table, vtab.TableSpec, error) {
	key := serverTableKey{schema, table}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[key]
	if !ok {
		return nil, vtab.TableSpec{}, notFoundErr("remote: no such table %s.%s", schema, table)
	}
	return t, s.specs[key], nil
}

func (s *Server) Query(req *QueryRequest, stream TableService_QueryServer) error {
	t, _, err := s.tableFor(req.SchemaName, req.TableName)
	if err != nil {
		return err
	}
	params, err := pbToParams(req.Params)
	if err != nil {
		return err
	}
	filter := vtab.FilterInfo{
		Constraints: wireToConstraints(req.Constraints),
		Params:      params,
	}
	if req.HasLimit {
		filter.Limit = &req.Limit
	}
	rows, err := t.Query(stream.Context(), filter)
	if err != nil {
		return toStatusErr(err)
	}
	defer rows.Close()
	for {
		row, err := rows.Next(stream.Context())
		if err != nil {
			return toStatusErr(err)
		}
		if row == nil {
			return stream.Send(&QueryReply{Done: true})
		}
		wire, err := rowToPB(row)
		if err != nil {
			return err
		}
		if err := stream.Send(&QueryReply{Row: wire}); err != nil {
			return err
		}
	}
}

func (s *Server) Update(ctx context.Context, req *UpdateRequest) (*UpdateReply, error) {
	t, spec, err := s.tableFor(req.SchemaName, req.TableName)
	if err != nil {
		return nil, err
	}
	oldKey, err := pbToRow(req.OldKey, pkColumns(spec))
	if err != nil {
		return nil, err
	}
	newValues, err := pbToRow(req.NewValues, spec.Columns)
	if err != nil {
		return nil, err
	}
	result, err := t.Update(ctx, vtab.UpdateArgs{
		Op:                 vtab.UpdateOp(req.Op),
		OldKey:             oldKey,
		NewValues:          newValues,
		ConflictResolution: vtab.ConflictResolution(req.ConflictResolution),
	})
	if err != nil {
		return nil, toStatusErr(err)
	}
	row, err := rowToPB(result.Row)
	if err != nil {
		return nil, err
	}
	deletedKey, err := rowToPB(result.DeletedKey)
	if err != nil {
		return nil, err
	}
	return &UpdateReply{Row: row, Deleted: result.Deleted, DeletedKey: deletedKey}, nil
}

func (s *Server) Begin(ctx context.Context, req *BeginRequest) (*BeginReply, error) {
	t, _, err := s.tableFor(req.SchemaName, req.TableName)
	if err != nil {
		return nil, err
	}
	conn, err := t.CreateConnection(ctx)
	if err != nil {
		return nil, toStatusErr(err)
	}
	if err := conn.Begin(ctx); err != nil {
		return nil, toStatusErr(err)
	}
	s.mu.Lock()
	s.nextConnID++
	id := strconv.FormatInt(s.nextConnID, 10)
	s.conns[id] = conn
	s.mu.Unlock()
	return &BeginReply{ConnId: id}, nil
}

func (s *Server) connFor(id string) (vtab.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	if !ok {
		return nil, notFoundErr("remote: no such connection %q", id)
	}
	return c, nil
}

func (s *Server) dropConn(id string) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
}

func (s *Server) Commit(ctx context.Context, req *CommitRequest) (*CommitReply, error) {
	c, err := s.connFor(req.ConnId)
	if err != nil {
		return nil, err
	}
	defer s.dropConn(req.ConnId)
	if err := c.Commit(ctx); err != nil {
		return nil, toStatusErr(err)
	}
	return &CommitReply{}, nil
}

func (s *Server) Rollback(ctx context.Context, req *RollbackRequest) (*RollbackReply, error) {
	c, err := s.connFor(req.ConnId)
	if err != nil {
		return nil, err
	}
	defer s.dropConn(req.ConnId)
	if err := c.Rollback(ctx); err != nil {
		return nil, toStatusErr(err)
	}
	return &RollbackReply{}, nil
}

func (s *Server) CreateSavepoint(ctx context.Context, req *SavepointRequest) (*SavepointReply, error) {
	c, err := s.connFor(req.ConnId)
	if err != nil {
		return nil, err
	}
	if err := c.CreateSavepoint(ctx, req.Name); err != nil {
		return nil, toStatusErr(err)
	}
	return &SavepointReply{}, nil
}

func (s *Server) ReleaseSavepoint(ctx context.Context, req *SavepointRequest) (*SavepointReply, error) {
	c, err := s.connFor(req.ConnId)
	if err != nil {
		return nil, err
	}
	if err := c.ReleaseSavepoint(ctx, req.Name); err != nil {
		return nil, toStatusErr(err)
	}
	return &SavepointReply{}, nil
}

func (s *Server) RollbackToSavepoint(ctx context.Context, req *SavepointRequest) (*SavepointReply, error) {
	c, err := s.connFor(req.ConnId)
	if err != nil {
		return nil, err
	}
	if err := c.RollbackToSavepoint(ctx, req.Name); err != nil {
		return nil, toStatusErr(err)
	}
	return &SavepointReply{}, nil
}

var _ TableServiceServer = (*Server)(nil)

// pbToParams decodes a ListValue of untyped filter arguments: a server has
// no column to type them against (they're query parameters, not row
// values), so every scalar round-trips by its structpb-native kind.
func pbToParams(lv *structpb.ListValue) ([]types.Value, error) {
	if lv == nil {
		return nil, nil
	}
	out := make([]types.Value, len(lv.Values))
	for i, v := range lv.Values {
		switch k := v.GetKind().(type) {
		case *structpb.Value_NullValue:
			out[i] = types.Null
		case *structpb.Value_NumberValue:
			out[i] = types.Real(k.NumberValue)
		case *structpb.Value_BoolValue:
			out[i] = types.Bool(k.BoolValue)
		case *structpb.Value_StringValue:
			out[i] = types.Text(k.StringValue)
		default:
			return nil, errs.New(errs.KindVirtualTable, "remote: unsupported filter param kind %T", k)
		}
	}
	return out, nil
}

// toStatusErr maps a SchemaMissing errs.Error to a gRPC NotFound status, the
// one code mapGRPCError translates back to the same kind; every other error
// is returned unchanged.
func toStatusErr(err error) error {
	if err == nil {
		return nil
	}
	if errs.Is(err, errs.KindSchemaMissing) {
		return notFoundErr("%s", err.Error())
	}
	return err
}
