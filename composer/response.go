package composer

import "github.com/stitchgql/federate/graphql"

// Response is the assembled result of one Compose() call (spec.md §6
// "Returned Result shape").
type Response struct {
	Data    map[string]interface{} `json:"data"`
	Errors  []*graphql.Error       `json:"errors,omitempty"`
	HasNext bool                   `json:"hasNext,omitempty"`
}
