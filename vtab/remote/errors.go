package remote

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Digithought/quereus-sub006/errs"
)

// mapGRPCError translates a gRPC status code back into the core error
// taxonomy (errs.Kind), the same boundary-translation role sqlbridge's
// mapError plays for database/sql driver errors.
func mapGRPCError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return errs.Wrap(errs.KindVirtualTable, err, "remote: transport error")
	}
	switch st.Code() {
	case codes.NotFound:
		return errs.Wrap(errs.KindSchemaMissing, err, "remote: %s", st.Message())
	case codes.AlreadyExists:
		return errs.Wrap(errs.KindMisuse, err, "remote: %s", st.Message())
	case codes.InvalidArgument:
		return errs.Wrap(errs.KindMismatch, err, "remote: %s", st.Message())
	case codes.Canceled, codes.DeadlineExceeded:
		return errs.Wrap(errs.KindCancelled, err, "remote: %s", st.Message())
	case codes.Unimplemented:
		return errs.Wrap(errs.KindUnsupported, err, "remote: %s", st.Message())
	default:
		return errs.Wrap(errs.KindVirtualTable, err, "remote: %s", st.Message())
	}
}
