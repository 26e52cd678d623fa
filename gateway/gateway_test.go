package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coregraphql "github.com/stitchgql/federate/graphql"
	"github.com/stitchgql/federate/subschema"
	"github.com/stitchgql/federate/superschema"
)

func stringScalar() *coregraphql.Scalar {
	return &coregraphql.Scalar{Name: "String", Specified: true}
}

func buildWidgetSuper(t *testing.T) *superschema.SuperSchema {
	t.Helper()

	widget := &coregraphql.Object{
		Name: "Widget",
		Fields: map[string]*coregraphql.Field{
			"id":  {Name: "id", Type: &coregraphql.NonNull{Type: stringScalar()}},
			"sku": {Name: "sku", Type: stringScalar()},
		},
	}
	schema := &coregraphql.Schema{
		Types: map[string]coregraphql.Type{"Widget": widget, "String": stringScalar()},
		Query: &coregraphql.Object{
			Name: "Query",
			Fields: map[string]*coregraphql.Field{
				"widget": {Name: "widget", Args: map[string]coregraphql.Type{"id": &coregraphql.NonNull{Type: stringScalar()}}, Type: widget},
			},
		},
	}
	schema.Types["Query"] = schema.Query

	sub := &subschema.Subschema{
		Name:   "sub1",
		Schema: schema,
		Executor: func(ctx context.Context, req subschema.Request) (subschema.Result, error) {
			// Answer only the widget fields the outgoing document selects.
			row := map[string]interface{}{"id": "1", "sku": "abc"}
			widget := map[string]interface{}{}
			for _, f := range req.Document.Operations[0].SelectionSet.Selections {
				if f.Name != "widget" || f.SelectionSet == nil {
					continue
				}
				for _, child := range f.SelectionSet.Selections {
					widget[child.ResponseKey()] = row[child.Name]
				}
			}
			return subschema.Result{Data: map[string]interface{}{"widget": widget}}, nil
		},
	}

	super, err := superschema.Build([]*subschema.Subschema{sub})
	require.NoError(t, err)
	return super
}

func TestExecute_SimpleQuery(t *testing.T) {
	super := buildWidgetSuper(t)
	g := New(super)

	resp, err := g.Execute(context.Background(), Request{Query: `{ widget(id: "1") { id sku } }`})
	require.NoError(t, err)
	require.Empty(t, resp.Errors)

	widget := resp.Data["widget"].(map[string]interface{})
	assert.Equal(t, "1", widget["id"])
	assert.Equal(t, "abc", widget["sku"])
}

func TestExecute_MissingRequiredVariableErrors(t *testing.T) {
	super := buildWidgetSuper(t)
	g := New(super)

	resp, err := g.Execute(context.Background(), Request{
		Query: `query($id: String!) { widget(id: $id) { id } }`,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Errors)
}

func TestExecute_UnknownOperationNameErrors(t *testing.T) {
	super := buildWidgetSuper(t)
	g := New(super)

	_, err := g.Execute(context.Background(), Request{
		Query:         `{ widget(id: "1") { id } }`,
		OperationName: "DoesNotExist",
	})
	assert.Error(t, err)
}

func TestExecute_SkipDirectiveOmitsField(t *testing.T) {
	super := buildWidgetSuper(t)
	g := New(super)

	resp, err := g.Execute(context.Background(), Request{
		Query:     `query($omit: Boolean!) { widget(id: "1") { id sku @skip(if: $omit) } }`,
		Variables: map[string]interface{}{"omit": true},
	})
	require.NoError(t, err)
	require.Empty(t, resp.Errors)

	widget := resp.Data["widget"].(map[string]interface{})
	_, hasSku := widget["sku"]
	assert.False(t, hasSku)
}

// Scenario 6 (spec.md §8): a document with multiple operations and no
// operationName must fail with the exact "must provide operation name"
// message rather than silently picking one.
func TestExecute_MultipleOperationsWithoutOperationNameErrors(t *testing.T) {
	super := buildWidgetSuper(t)
	g := New(super)

	_, err := g.Execute(context.Background(), Request{
		Query: `query One { widget(id: "1") { id } } query Two { widget(id: "1") { sku } }`,
	})
	assert.EqualError(t, err, "Must provide operation name if query contains multiple operations.")
}

// The same document resolves cleanly once operationName disambiguates it.
func TestExecute_MultipleOperationsWithOperationNameSelectsNamedOne(t *testing.T) {
	super := buildWidgetSuper(t)
	g := New(super)

	resp, err := g.Execute(context.Background(), Request{
		Query:         `query One { widget(id: "1") { id } } query Two { widget(id: "1") { sku } }`,
		OperationName: "Two",
	})
	require.NoError(t, err)
	require.Empty(t, resp.Errors)

	widget := resp.Data["widget"].(map[string]interface{})
	_, hasID := widget["id"]
	assert.False(t, hasID)
	assert.Equal(t, "abc", widget["sku"])
}

func buildSubscriptionSuperWithoutSubscriber(t *testing.T) *superschema.SuperSchema {
	t.Helper()

	schema := &coregraphql.Schema{
		Types: map[string]coregraphql.Type{"String": stringScalar()},
		Query: &coregraphql.Object{Name: "Query", Fields: map[string]*coregraphql.Field{}},
		Subscription: &coregraphql.Object{
			Name:   "Subscription",
			Fields: map[string]*coregraphql.Field{"ticks": {Name: "ticks", Type: stringScalar()}},
		},
	}
	schema.Types["Query"] = schema.Query
	schema.Types["Subscription"] = schema.Subscription

	sub := &subschema.Subschema{Name: "sub1", Schema: schema}
	super, err := superschema.Build([]*subschema.Subschema{sub})
	require.NoError(t, err)
	return super
}

func TestExecute_SubscriptionWithoutSubscriberErrors(t *testing.T) {
	super := buildSubscriptionSuperWithoutSubscriber(t)
	g := New(super)

	_, err := g.Execute(context.Background(), Request{Query: `subscription { ticks }`})
	assert.EqualError(t, err, "Subschema is not configured to execute subscription operation.")
}
