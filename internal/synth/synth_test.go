package synth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"apiconform/internal/model"
)

type stubSource struct {
	keys map[string]interface{}
}

func (s *stubSource) EntityKinds(ctx context.Context) ([]model.EntityKindDescriptor, error) {
	return []model.EntityKindDescriptor{{Name: "users", KeyFieldName: "id"}}, nil
}

func (s *stubSource) Count(ctx context.Context, kind string) (int, error) { return 1, nil }

func (s *stubSource) ListAll(ctx context.Context, kind string) ([]interface{}, error) {
	return nil, nil
}

func (s *stubSource) RandomKey(ctx context.Context, kind string) (interface{}, bool, error) {
	v, ok := s.keys[kind]
	return v, ok, nil
}

func sampleEndpoint() model.Endpoint {
	maxLen := 10
	return model.Endpoint{
		Method:      "GET",
		PathPattern: "/api/users/{userId}",
		Parameters: []model.Parameter{
			{Name: "userId", In: model.InPath, Required: true, Schema: &model.Schema{Kind: model.KindInteger}},
			{Name: "verbose", In: model.InQuery, Required: false, Schema: &model.Schema{Kind: model.KindBoolean}},
			{Name: "name", In: model.InQuery, Required: true, Schema: &model.Schema{Kind: model.KindString, MaxLength: &maxLen}},
		},
	}
}

// TestSynthesize_Deterministic is property #2's determinism half of spec.md §8:
// the same seed over the same catalog and live data produces the same requests.
func TestSynthesize_Deterministic(t *testing.T) {
	endpoint := sampleEndpoint()
	src := &stubSource{keys: map[string]interface{}{"users": 42}}

	a := New(src, 7).Synthesize(context.Background(), endpoint, 5)
	b := New(src, 7).Synthesize(context.Background(), endpoint, 5)

	require.Equal(t, len(a), len(b))
	for i := range a {
		require.Equal(t, a[i].Path, b[i].Path)
		require.Equal(t, string(a[i].Body), string(b[i].Body))
	}
}

func TestSynthesize_UsesLiveIdentifier(t *testing.T) {
	endpoint := sampleEndpoint()
	src := &stubSource{keys: map[string]interface{}{"users": 42}}

	reqs := New(src, 1).Synthesize(context.Background(), endpoint, 1)
	require.Len(t, reqs, 1)
	require.Contains(t, reqs[0].Path, "/api/users/42")
}

func TestSynthesize_FallsBackWhenNoLiveIdentifier(t *testing.T) {
	endpoint := model.Endpoint{
		Method:      "GET",
		PathPattern: "/api/widgets/{widgetId}",
		Parameters: []model.Parameter{
			{Name: "widgetId", In: model.InPath, Required: true, Schema: &model.Schema{Kind: model.KindInteger}},
		},
	}
	src := &stubSource{keys: map[string]interface{}{}}

	reqs := New(src, 1).Synthesize(context.Background(), endpoint, 3)
	// No live key and an integer schema still yields a synthesized fallback
	// value, so the request is never dropped purely for lacking a live id.
	require.Len(t, reqs, 3)
	for _, r := range reqs {
		require.NotContains(t, r.Path, "{")
	}
}

func TestSynthesize_SetsDefaultUserAgent(t *testing.T) {
	endpoint := sampleEndpoint()
	src := &stubSource{keys: map[string]interface{}{"users": 1}}

	reqs := New(src, 3).Synthesize(context.Background(), endpoint, 1)
	require.Len(t, reqs, 1)
	require.Equal(t, []string{"apiconform/1.0"}, reqs[0].HeaderValues("User-Agent"))
}

// TestSynthesize_BodyCloneIndependence covers spec.md §8 property #2's clone
// half: cloning a synthesized request's body must not alias the original.
func TestSynthesize_BodyCloneIndependence(t *testing.T) {
	endpoint := model.Endpoint{
		Method:      "POST",
		PathPattern: "/api/widgets",
		Body: &model.MediaBody{
			MediaType: "application/json",
			Schema: &model.Schema{
				Kind:       model.KindObject,
				Properties: map[string]*model.Schema{"name": {Kind: model.KindString}},
				Required:   []string{"name"},
			},
		},
	}
	src := &stubSource{}
	reqs := New(src, 9).Synthesize(context.Background(), endpoint, 1)
	require.Len(t, reqs, 1)

	original := reqs[0]
	clone := original.Clone()
	clone.Body[0] = 'X'

	require.NotEqual(t, original.Body[0], clone.Body[0])
}

func TestEntityStem(t *testing.T) {
	require.Equal(t, "user", entityStem("userId"))
	require.Equal(t, "order", entityStem("order_id"))
	require.Equal(t, "", entityStem("id"))
}
