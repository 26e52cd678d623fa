package grpcexec

// WireSelection is the wire form of a graphql.Selection, mirroring the
// teacher's federation.Selection/convertSelectionSet shape.
type WireSelection struct {
	Alias    string                 `json:"alias,omitempty"`
	Name     string                 `json:"name"`
	Args     map[string]interface{} `json:"args,omitempty"`
	Children []WireSelection        `json:"children,omitempty"`
}

// WireError is the wire form of a graphql.Error.
type WireError struct {
	Message string        `json:"message"`
	Path    []interface{} `json:"path,omitempty"`
}

// ExecuteRequest asks the remote subschema to resolve one selection set.
type ExecuteRequest struct {
	OperationKind string                 `json:"operationKind"`
	OperationName string                 `json:"operationName,omitempty"`
	Selections    []WireSelection        `json:"selections"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

// ExecuteResponse is the initial (possibly only) payload of an Execute call.
// When HasNext is true, StreamID names a Follow stream the client should
// open to receive the remaining incremental payloads.
type ExecuteResponse struct {
	Data     interface{} `json:"data"`
	Errors   []WireError `json:"errors,omitempty"`
	HasNext  bool        `json:"hasNext,omitempty"`
	StreamID string      `json:"streamId,omitempty"`
}

// FollowRequest resumes the incremental stream registered under StreamID by
// a prior ExecuteResponse.
type FollowRequest struct {
	StreamID string `json:"streamId"`
}

// IncrementalPayload is the wire form of subschema.IncrementalPayload.
type IncrementalPayload struct {
	Incremental []IncrementalItem `json:"incremental,omitempty"`
	HasNext     bool              `json:"hasNext"`
}

// IncrementalItem is the wire form of subschema.IncrementalItem.
type IncrementalItem struct {
	Path   []interface{} `json:"path"`
	Data   interface{}   `json:"data"`
	Errors []WireError   `json:"errors,omitempty"`
}

// SubscribeRequest starts a subscription over the same selection shape as
// ExecuteRequest.
type SubscribeRequest struct {
	OperationName string                 `json:"operationName,omitempty"`
	Selections    []WireSelection        `json:"selections"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}
