// Package subschema defines the contract every federated backend must
// implement (spec.md §6): a typed schema plus an executor, and optionally a
// subscriber for subscription operations.
package subschema

import (
	"context"

	"github.com/stitchgql/federate/graphql"
)

// Request is what the composer sends to a subschema for one sub-query: the
// outgoing operation document (operation header and selections, with
// fragment spreads already inlined) and the coerced variable values it
// references.
type Request struct {
	Document  *graphql.Document
	Variables map[string]interface{}
}

// IncrementalPayload is one `subsequentResults` delta (spec.md §6).
type IncrementalPayload struct {
	Incremental []IncrementalItem `json:"incremental,omitempty"`
	HasNext     bool              `json:"hasNext"`
}

// IncrementalItem is one entry of an incremental payload's `incremental`
// array: data to be deep-merged at Path, plus any errors scoped to it.
type IncrementalItem struct {
	Path   []interface{} `json:"path"`
	Data   interface{}   `json:"data"`
	Errors []*graphql.Error
}

// Result is the shape an executor or subscriber call resolves to
// (spec.md §6).
type Result struct {
	Data   interface{}
	Errors []*graphql.Error

	// Incremental results: when non-nil, Data/Errors above are ignored in
	// favor of InitialResult, and SubsequentResults carries the lazy
	// sequence of follow-up payloads.
	InitialResult     *InitialResult
	SubsequentResults Source
}

// InitialResult is the first payload of an incremental response.
type InitialResult struct {
	Data    interface{}
	Errors  []*graphql.Error
	HasNext bool
}

// Source is a lazy sequence of incremental payloads, the shape the stream
// consolidator (spec.md §4.4) fans in. Next blocks until a payload is ready,
// ctx is cancelled, or the sequence is exhausted (ok == false). Close
// releases any resources backing the sequence and must be safe to call
// after a partial consumption (cancellation, spec.md §5).
type Source interface {
	Next(ctx context.Context) (payload IncrementalPayload, ok bool, err error)
	Close() error
}

// Executor resolves one Request into a Result, synchronously. An
// implementation backed by a remote call (gRPC, HTTP) should block its
// goroutine rather than the caller's — the composer calls Executor from its
// own dispatch goroutines, except for root mutation fetches, which run one
// after another on the goroutine that called Compose (spec.md §5).
type Executor func(ctx context.Context, req Request) (Result, error)

// Subscriber is the subscription analogue of Executor. Absent means the
// subschema cannot serve subscriptions (spec.md §6, scenario 5 of §8).
type Subscriber func(ctx context.Context, req Request) (Result, error)

// Subschema is one federated backend (spec.md §3).
type Subschema struct {
	Name       string
	Schema     *graphql.Schema
	Executor   Executor
	Subscriber Subscriber // optional
}
