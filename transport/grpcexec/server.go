package grpcexec

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	coregraphql "github.com/stitchgql/federate/graphql"
	"github.com/stitchgql/federate/subschema"
)

// server adapts an in-process subschema.Subschema to ExecutorServer,
// grounded on the teacher's federation server.go (an Executor wrapping a
// schema.Schema for remote callers).
type server struct {
	sub *subschema.Subschema

	mu      sync.Mutex
	streams map[string]subschema.Source
}

// NewServer wraps sub for serving over this transport's ServiceDesc.
func NewServer(sub *subschema.Subschema) ExecutorServer {
	return &server{sub: sub, streams: make(map[string]subschema.Source)}
}

func (s *server) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	result, err := s.sub.Executor(ctx, fromWireExecuteRequest(req))
	if err != nil {
		return nil, err
	}

	if result.InitialResult == nil {
		return &ExecuteResponse{Data: result.Data, Errors: toWireErrors(result.Errors)}, nil
	}

	resp := &ExecuteResponse{
		Data:    result.InitialResult.Data,
		Errors:  toWireErrors(result.InitialResult.Errors),
		HasNext: result.InitialResult.HasNext,
	}
	if resp.HasNext && result.SubsequentResults != nil {
		id := uuid.New().String()
		s.mu.Lock()
		s.streams[id] = result.SubsequentResults
		s.mu.Unlock()
		resp.StreamID = id
	}
	return resp, nil
}

func (s *server) Follow(req *FollowRequest, stream Executor_FollowServer) error {
	s.mu.Lock()
	src, ok := s.streams[req.StreamID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("grpcexec: unknown stream id %q", req.StreamID)
	}
	defer func() {
		s.mu.Lock()
		delete(s.streams, req.StreamID)
		s.mu.Unlock()
		src.Close()
	}()

	return pumpSource(stream.Context(), src, stream)
}

func (s *server) Subscribe(req *SubscribeRequest, stream Executor_SubscribeServer) error {
	if s.sub.Subscriber == nil {
		return fmt.Errorf("grpcexec: subschema %q does not support subscriptions", s.sub.Name)
	}

	result, err := s.sub.Subscriber(stream.Context(), fromWireSubscribeRequest(req))
	if err != nil {
		return err
	}
	if result.SubsequentResults == nil {
		return fmt.Errorf("grpcexec: subscriber for %q returned no stream", s.sub.Name)
	}
	defer result.SubsequentResults.Close()

	return pumpSource(stream.Context(), result.SubsequentResults, stream)
}

// sender is the common Send method of Executor_FollowServer/Executor_SubscribeServer.
type sender interface {
	Send(*IncrementalPayload) error
}

func pumpSource(ctx context.Context, src subschema.Source, out sender) error {
	for {
		payload, ok, err := src.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := out.Send(toWirePayload(payload)); err != nil {
			return err
		}
		if !payload.HasNext {
			return nil
		}
	}
}

func fromWireExecuteRequest(req *ExecuteRequest) subschema.Request {
	return subschema.Request{
		Document: &coregraphql.Document{
			Operations: []*coregraphql.OperationDefinition{{
				Name:         req.OperationName,
				Kind:         coregraphql.OperationKind(req.OperationKind),
				SelectionSet: fromWireSelections(req.Selections),
			}},
		},
		Variables: req.Variables,
	}
}

func fromWireSubscribeRequest(req *SubscribeRequest) subschema.Request {
	return subschema.Request{
		Document: &coregraphql.Document{
			Operations: []*coregraphql.OperationDefinition{{
				Name:         req.OperationName,
				Kind:         coregraphql.Subscription,
				SelectionSet: fromWireSelections(req.Selections),
			}},
		},
		Variables: req.Variables,
	}
}

func fromWireSelections(wire []WireSelection) *coregraphql.SelectionSet {
	out := &coregraphql.SelectionSet{Selections: make([]*coregraphql.Selection, 0, len(wire))}
	for _, w := range wire {
		out.Selections = append(out.Selections, &coregraphql.Selection{
			Alias:        w.Alias,
			Name:         w.Name,
			Args:         w.Args,
			SelectionSet: fromWireSelections(w.Children),
		})
	}
	return out
}

func toWireErrors(errs []*coregraphql.Error) []WireError {
	if len(errs) == 0 {
		return nil
	}
	out := make([]WireError, 0, len(errs))
	for _, e := range errs {
		out = append(out, WireError{Message: e.Message, Path: e.Path})
	}
	return out
}

func toWirePayload(p subschema.IncrementalPayload) *IncrementalPayload {
	items := make([]IncrementalItem, 0, len(p.Incremental))
	for _, it := range p.Incremental {
		items = append(items, IncrementalItem{Path: it.Path, Data: it.Data, Errors: toWireErrors(it.Errors)})
	}
	return &IncrementalPayload{Incremental: items, HasNext: p.HasNext}
}
