package grpcexec

import (
	"context"

	"google.golang.org/grpc"

	coregraphql "github.com/stitchgql/federate/graphql"
	"github.com/stitchgql/federate/subschema"
)

// jsonSubtype selects this package's JSON codec for every call, since these
// messages are plain structs rather than proto.Message values.
func jsonSubtype() grpc.CallOption {
	return grpc.CallContentSubtype(codecName)
}

type executorClient struct {
	cc *grpc.ClientConn
}

func (c *executorClient) execute(ctx context.Context, in *ExecuteRequest) (*ExecuteResponse, error) {
	out := new(ExecuteResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Execute", in, out, jsonSubtype()); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *executorClient) follow(ctx context.Context, in *FollowRequest) (grpc.ClientStream, error) {
	desc := &grpc.StreamDesc{StreamName: "Follow", ServerStreams: true}
	stream, err := c.cc.NewStream(ctx, desc, "/"+serviceName+"/Follow", jsonSubtype())
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return stream, nil
}

func (c *executorClient) subscribe(ctx context.Context, in *SubscribeRequest) (grpc.ClientStream, error) {
	desc := &grpc.StreamDesc{StreamName: "Subscribe", ServerStreams: true}
	stream, err := c.cc.NewStream(ctx, desc, "/"+serviceName+"/Subscribe", jsonSubtype())
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return stream, nil
}

// streamSource adapts a grpc.ClientStream of IncrementalPayload messages to
// subschema.Source (spec.md §4.4, §6).
type streamSource struct {
	stream grpc.ClientStream
}

func (s *streamSource) Next(ctx context.Context) (subschema.IncrementalPayload, bool, error) {
	m := new(IncrementalPayload)
	if err := s.stream.RecvMsg(m); err != nil {
		if err.Error() == "EOF" {
			return subschema.IncrementalPayload{}, false, nil
		}
		return subschema.IncrementalPayload{}, false, err
	}
	return fromWirePayload(*m), true, nil
}

func (s *streamSource) Close() error {
	if cs, ok := s.stream.(interface{ CloseSend() error }); ok {
		return cs.CloseSend()
	}
	return nil
}

// NewSubschema builds a subschema.Subschema whose Executor and Subscriber
// dispatch over cc to a remote grpcexec server, for one federated backend
// reachable at addr/cc (SPEC_FULL.md §6).
func NewSubschema(name string, schema *coregraphql.Schema, cc *grpc.ClientConn) *subschema.Subschema {
	client := &executorClient{cc: cc}

	return &subschema.Subschema{
		Name:   name,
		Schema: schema,
		Executor: func(ctx context.Context, req subschema.Request) (subschema.Result, error) {
			wireReq := toWireExecuteRequest(req)
			resp, err := client.execute(ctx, wireReq)
			if err != nil {
				return subschema.Result{}, err
			}

			result := subschema.Result{Data: resp.Data, Errors: fromWireErrors(resp.Errors)}
			if resp.HasNext && resp.StreamID != "" {
				stream, err := client.follow(ctx, &FollowRequest{StreamID: resp.StreamID})
				if err != nil {
					return subschema.Result{}, err
				}
				result = subschema.Result{
					InitialResult: &subschema.InitialResult{
						Data:    resp.Data,
						Errors:  fromWireErrors(resp.Errors),
						HasNext: true,
					},
					SubsequentResults: &streamSource{stream: stream},
				}
			}
			return result, nil
		},
		Subscriber: func(ctx context.Context, req subschema.Request) (subschema.Result, error) {
			wireReq := toWireSubscribeRequest(req)
			stream, err := client.subscribe(ctx, wireReq)
			if err != nil {
				return subschema.Result{}, err
			}
			return subschema.Result{SubsequentResults: &streamSource{stream: stream}}, nil
		},
	}
}

func toWireExecuteRequest(req subschema.Request) *ExecuteRequest {
	out := &ExecuteRequest{Variables: req.Variables}
	if op := firstOperation(req.Document); op != nil {
		out.OperationKind = string(op.Kind)
		out.OperationName = op.Name
		out.Selections = toWireSelections(op.SelectionSet)
	}
	return out
}

func toWireSubscribeRequest(req subschema.Request) *SubscribeRequest {
	out := &SubscribeRequest{Variables: req.Variables}
	if op := firstOperation(req.Document); op != nil {
		out.OperationName = op.Name
		out.Selections = toWireSelections(op.SelectionSet)
	}
	return out
}

func firstOperation(doc *coregraphql.Document) *coregraphql.OperationDefinition {
	if doc == nil || len(doc.Operations) == 0 {
		return nil
	}
	return doc.Operations[0]
}

func toWireSelections(sel *coregraphql.SelectionSet) []WireSelection {
	if sel == nil {
		return nil
	}
	out := make([]WireSelection, 0, len(sel.Selections))
	for _, s := range sel.Selections {
		out = append(out, WireSelection{
			Alias:    s.Alias,
			Name:     s.Name,
			Args:     s.Args,
			Children: toWireSelections(s.SelectionSet),
		})
	}
	return out
}

func fromWireErrors(errs []WireError) []*coregraphql.Error {
	if len(errs) == 0 {
		return nil
	}
	out := make([]*coregraphql.Error, 0, len(errs))
	for _, e := range errs {
		out = append(out, &coregraphql.Error{Message: e.Message, Path: e.Path})
	}
	return out
}

func fromWirePayload(m IncrementalPayload) subschema.IncrementalPayload {
	items := make([]subschema.IncrementalItem, 0, len(m.Incremental))
	for _, it := range m.Incremental {
		items = append(items, subschema.IncrementalItem{Path: it.Path, Data: it.Data, Errors: fromWireErrors(it.Errors)})
	}
	return subschema.IncrementalPayload{Incremental: items, HasNext: m.HasNext}
}
