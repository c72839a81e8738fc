// Package rpc provides Connect-style service implementations for the
// Argo engine.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/oceanlens/argo-engine/internal/engine"
	"github.com/oceanlens/argo-engine/internal/observability"
	"github.com/oceanlens/argo-engine/internal/query"
	"github.com/oceanlens/argo-engine/internal/storage"
)

// Procedure paths for the query service.
const (
	QueryProcedure   = "/argo.v1.QueryService/Query"
	CompareProcedure = "/argo.v1.QueryService/Compare"
)

// QueryService implements the Connect query service.
type QueryService struct {
	logger *observability.Logger
	engine *engine.Engine
}

// NewQueryService creates a new query service.
func NewQueryService(logger *observability.Logger, eng *engine.Engine) *QueryService {
	return &QueryService{
		logger: logger.WithComponent("rpc"),
		engine: eng,
	}
}

// QueryRequest is the RPC request message for queries.
type QueryRequest struct {
	Question string          `json:"question,omitempty"`
	Criteria *query.Criteria `json:"criteria,omitempty"`
	Limit    int             `json:"limit,omitempty"`
}

// QueryResponse is the RPC response message for queries.
type QueryResponse struct {
	Kind       string                     `json:"kind"`
	Query      *engine.QueryResponse      `json:"query,omitempty"`
	Comparison *engine.ComparisonResponse `json:"comparison,omitempty"`
}

// CompareRequest is the RPC request message for comparisons.
type CompareRequest struct {
	Regions   []string           `json:"regions"`
	Variables []storage.Variable `json:"variables,omitempty"`
}

// CompareResponse is the RPC response message for comparisons.
type CompareResponse struct {
	Comparison *engine.ComparisonResponse `json:"comparison"`
}

// Query handles Connect query calls. A question routes through the
// extraction chain; explicit criteria skip it.
func (s *QueryService) Query(ctx context.Context, req *connect.Request[QueryRequest]) (*connect.Response[QueryResponse], error) {
	msg := req.Msg

	if msg.Question == "" && msg.Criteria == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("question or criteria is required"))
	}

	ctx = observability.ContextWithTraceID(ctx, uuid.New().String())

	if msg.Question != "" {
		result, err := s.engine.Ask(ctx, msg.Question)
		if err != nil {
			return nil, rpcError(err)
		}
		return connect.NewResponse(&QueryResponse{
			Kind:       result.Kind,
			Query:      result.Query,
			Comparison: result.Comparison,
		}), nil
	}

	result, err := s.engine.Query(ctx, *msg.Criteria, msg.Limit)
	if err != nil {
		return nil, rpcError(err)
	}
	return connect.NewResponse(&QueryResponse{Kind: "query", Query: result}), nil
}

// Compare handles Connect comparison calls.
func (s *QueryService) Compare(ctx context.Context, req *connect.Request[CompareRequest]) (*connect.Response[CompareResponse], error) {
	msg := req.Msg

	if len(msg.Regions) < 2 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("at least two regions are required"))
	}

	ctx = observability.ContextWithTraceID(ctx, uuid.New().String())

	result, err := s.engine.Compare(ctx, msg.Regions, msg.Variables)
	if err != nil {
		return nil, rpcError(err)
	}
	return connect.NewResponse(&CompareResponse{Comparison: result}), nil
}

// rpcError maps engine errors to Connect codes.
func rpcError(err error) *connect.Error {
	var validationErr *query.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, engine.ErrUnknownRegion):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// QueryHandler returns an http.Handler exposing Query as a unary
// JSON procedure.
func (s *QueryService) QueryHandler() http.Handler {
	return unaryJSONHandler(s.logger, s.Query)
}

// CompareHandler returns an http.Handler exposing Compare as a unary
// JSON procedure.
func (s *QueryService) CompareHandler() http.Handler {
	return unaryJSONHandler(s.logger, s.Compare)
}

// unaryJSONHandler adapts a Connect unary method to a plain JSON
// endpoint so the procedures mount on the HTTP router.
func unaryJSONHandler[Req, Res any](
	logger *observability.Logger,
	method func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error),
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var msg Req
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			writeRPCError(w, connect.NewError(connect.CodeInvalidArgument, err))
			return
		}

		resp, err := method(r.Context(), connect.NewRequest(&msg))
		if err != nil {
			var connectErr *connect.Error
			if !errors.As(err, &connectErr) {
				connectErr = connect.NewError(connect.CodeInternal, err)
			}
			logger.Warn().Err(err).Msg("RPC call failed")
			writeRPCError(w, connectErr)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp.Msg); err != nil {
			logger.Error().Err(err).Msg("Encode RPC response failed")
		}
	})
}

// writeRPCError renders a Connect error as JSON with the matching
// HTTP status.
func writeRPCError(w http.ResponseWriter, err *connect.Error) {
	status := http.StatusInternalServerError
	switch err.Code() {
	case connect.CodeInvalidArgument:
		status = http.StatusBadRequest
	case connect.CodeNotFound:
		status = http.StatusNotFound
	case connect.CodeDeadlineExceeded:
		status = http.StatusGatewayTimeout
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"code":    err.Code().String(),
		"message": err.Message(),
	})
}
