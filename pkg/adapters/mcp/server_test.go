package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	b := dsl.New("household")
	b.Question("has_pet").Text("Do you have a pet?").Choice("yes", "no").Required()
	b.If("has_pet", domain.OpEquals, "yes").Then(func(s *dsl.Scope) {
		s.Question("pet_name").Text("What is its name?")
	})
	b.Question("notes").Text("Anything else?")

	loader, err := b.Build()
	require.NoError(t, err)
	eng, err := arbor.New(loader)
	require.NoError(t, err)
	return NewServer(eng)
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}}
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestServer_ListGroups(t *testing.T) {
	s := newTestServer(t)

	out, err := s.handleListGroups(context.Background(), mcp.CallToolRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"household"}, out.Groups)
}

func TestServer_Evaluate(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	out, err := s.handleEvaluate(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"group_id": "household",
	})
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "household.has_pet", out.Items[0].Identifier)
	assert.Equal(t, []string{"yes", "no"}, out.Items[0].Options)
	assert.True(t, out.Items[0].Required)
	assert.Equal(t, "household.notes", out.Items[1].Identifier)
	assert.Equal(t, 1, out.Page)
	assert.True(t, out.IsLastPage)
	assert.Contains(t, out.Dependencies, "has_pet")

	out, err = s.handleEvaluate(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"group_id": "household",
		"answers":  `{"household.has_pet": "yes"}`,
		"page":     float64(3),
	})
	require.NoError(t, err)
	require.Len(t, out.Items, 3)
	assert.Equal(t, "household.pet_name", out.Items[1].Identifier)
	assert.Equal(t, 1, out.Items[1].Depth)
	assert.Equal(t, "yes", out.Items[0].Answer)
	assert.Equal(t, 1, out.Page, "page is clamped")
}

func TestServer_EvaluateErrors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleEvaluate(ctx, mcp.CallToolRequest{}, map[string]interface{}{})
	assert.Error(t, err)

	_, err = s.handleEvaluate(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"group_id": "household",
		"answers":  "[1, 2]",
	})
	assert.ErrorContains(t, err, "JSON object")

	_, err = s.handleEvaluate(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"group_id": "missing",
	})
	assert.ErrorIs(t, err, domain.ErrGroupNotFound)
}

func TestServer_GetTree(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleGetTree(ctx, callRequest("get_tree", map[string]any{"group_id": "household"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, textOf(t, res), "if has_pet equals yes")

	res, err = s.handleGetTree(ctx, callRequest("get_tree", map[string]any{"group_id": "household", "format": "mermaid"}))
	require.NoError(t, err)
	assert.Contains(t, textOf(t, res), "graph TD")

	res, err = s.handleGetTree(ctx, callRequest("get_tree", map[string]any{"group_id": "household", "format": "svg"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleGetTree(ctx, callRequest("get_tree", map[string]any{"group_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServer_ReadGroupResource(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "arbor://groups/household"
	contents, err := s.readGroup(ctx, req)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/json", text.MIMEType)

	var g domain.Group
	require.NoError(t, json.Unmarshal([]byte(text.Text), &g))
	assert.Equal(t, "household", g.ID)
	assert.Len(t, g.Questions, 3)

	req.Params.URI = "file:///etc/passwd"
	_, err = s.readGroup(ctx, req)
	assert.Error(t, err)
}
