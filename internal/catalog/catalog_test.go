package catalog

import (
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `{
  "openapi": "3.0.0",
  "info": {"title": "t", "version": "1"},
  "paths": {
    "/api/users": {
      "get": {"responses": {"200": {"description": "ok"}}},
      "post": {
        "requestBody": {
          "required": true,
          "content": {"application/json": {"schema": {"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}, "age": {"type": "integer"}}}}}
        },
        "responses": {"201": {"description": "created"}}
      }
    },
    "/api/users/{id}": {
      "get": {
        "parameters": [{"name": "id", "in": "path", "required": true, "schema": {"type": "integer"}}],
        "responses": {"200": {"description": "ok"}}
      },
      "put": {
        "parameters": [{"name": "id", "in": "path", "required": true, "schema": {"type": "integer"}}],
        "responses": {"200": {"description": "ok"}}
      },
      "delete": {
        "parameters": [{"name": "id", "in": "path", "required": true, "schema": {"type": "integer"}}],
        "responses": {"204": {"description": "no content"}}
      }
    }
  }
}`

func loadSample(t *testing.T) *Catalog {
	t.Helper()
	doc, err := openapi3.NewLoader().LoadFromData([]byte(sampleDoc))
	require.NoError(t, err)
	return FromDocument(doc, nil)
}

func TestFromDocument_EndpointCount(t *testing.T) {
	cat := loadSample(t)
	require.Len(t, cat.All(), 5)
}

func TestMatches_TemplateAndLiteral(t *testing.T) {
	cat := loadSample(t)

	ep, ok := cat.Matches("/api/users/42", "GET")
	require.True(t, ok)
	require.Equal(t, "/api/users/{id}", ep.PathPattern)

	_, ok = cat.Matches("/api/users/42/extra", "GET")
	require.False(t, ok)

	ep, ok = cat.Matches("/api/users", "POST")
	require.True(t, ok)
	require.NotNil(t, ep.Body)
	require.Equal(t, "application/json", ep.Body.MediaType)
	require.True(t, ep.Body.Schema.IsRequiredField("name"))
}

func TestMethodsFor(t *testing.T) {
	cat := loadSample(t)
	methods := cat.MethodsFor("/api/users/7")
	require.Contains(t, methods, "GET")
	require.Contains(t, methods, "PUT")
	require.Contains(t, methods, "DELETE")
	require.NotContains(t, methods, "POST")
}

// TestCatalogClosure is property #1 from spec.md §8: every concrete request
// produced for an endpoint resolves back to that same endpoint.
func TestCatalogClosure(t *testing.T) {
	cat := loadSample(t)
	for _, ep := range cat.All() {
		concrete := ep.PathPattern
		// Replace the one path placeholder this sample uses.
		concrete = replaceAll(concrete, "{id}", "42")
		matched, ok := cat.Matches(concrete, ep.Method)
		require.True(t, ok)
		require.Equal(t, ep.PathPattern, matched.PathPattern)
	}
}

func replaceAll(s, old, new string) string {
	out := ""
	for {
		i := indexOf(s, old)
		if i < 0 {
			return out + s
		}
		out += s[:i] + new
		s = s[i+len(old):]
	}
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
