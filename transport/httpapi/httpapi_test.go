package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchgql/federate/gateway"
	coregraphql "github.com/stitchgql/federate/graphql"
	"github.com/stitchgql/federate/subschema"
	"github.com/stitchgql/federate/superschema"
)

func buildWidgetSuper(t *testing.T) *superschema.SuperSchema {
	t.Helper()

	str := &coregraphql.Scalar{Name: "String", Specified: true}
	widget := &coregraphql.Object{
		Name: "Widget",
		Fields: map[string]*coregraphql.Field{
			"id": {Name: "id", Type: &coregraphql.NonNull{Type: str}},
		},
	}
	schema := &coregraphql.Schema{
		Types: map[string]coregraphql.Type{"Widget": widget, "String": str},
		Query: &coregraphql.Object{
			Name:   "Query",
			Fields: map[string]*coregraphql.Field{"widget": {Name: "widget", Type: widget}},
		},
	}
	schema.Types["Query"] = schema.Query

	sub := &subschema.Subschema{
		Name:   "sub1",
		Schema: schema,
		Executor: func(ctx context.Context, req subschema.Request) (subschema.Result, error) {
			return subschema.Result{Data: map[string]interface{}{
				"widget": map[string]interface{}{"id": "1"},
			}}, nil
		},
	}

	super, err := superschema.Build([]*subschema.Subschema{sub})
	require.NoError(t, err)
	return super
}

func TestServeHTTP_SimpleQuery(t *testing.T) {
	super := buildWidgetSuper(t)
	h := NewHandler(gateway.New(super), nil)

	body, _ := json.Marshal(requestBody{Query: `{ widget { id } }`})
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got responseBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Empty(t, got.Errors)
	assert.Equal(t, "1", got.Data["widget"].(map[string]interface{})["id"])
}

func TestServeHTTP_MissingBodyErrors(t *testing.T) {
	super := buildWidgetSuper(t)
	h := NewHandler(gateway.New(super), nil)

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.Body = nil
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeHTTP_GatewayErrorReturnsOKWithErrorsField(t *testing.T) {
	super := buildWidgetSuper(t)
	h := NewHandler(gateway.New(super), nil)

	body, _ := json.Marshal(requestBody{Query: `{ nope`})
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got responseBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, got.Errors)
}

func TestRouter_OptionsHandlesPreflight(t *testing.T) {
	super := buildWidgetSuper(t)
	h := NewHandler(gateway.New(super), nil)

	req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()

	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
