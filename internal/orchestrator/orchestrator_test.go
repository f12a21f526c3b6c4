package orchestrator

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"apiconform/internal/catalog"
	"apiconform/internal/engine"
	"apiconform/internal/model"
	"apiconform/internal/property"
	"apiconform/internal/synth"
)

type stubSource struct{}

func (stubSource) EntityKinds(ctx context.Context) ([]model.EntityKindDescriptor, error) {
	return nil, nil
}
func (stubSource) Count(ctx context.Context, kind string) (int, error)             { return 0, nil }
func (stubSource) ListAll(ctx context.Context, kind string) ([]interface{}, error) { return nil, nil }
func (stubSource) RandomKey(ctx context.Context, kind string) (interface{}, bool, error) {
	return nil, false, nil
}

type stubClient struct {
	fail bool
}

func (c *stubClient) Send(ctx context.Context, req *model.Request) (*model.Response, error) {
	if c.fail {
		return nil, errors.New("connection refused")
	}
	return &model.Response{StatusCode: 200}, nil
}

func sampleCatalog(t *testing.T) *catalog.Catalog {
	doc := `{
		"openapi": "3.0.0",
		"info": {"title": "t", "version": "1"},
		"paths": {
			"/api/widgets": {"get": {"responses": {"200": {"description": "ok"}}}}
		}
	}`
	return mustLoad(t, doc)
}

func TestRunAll_Sequential(t *testing.T) {
	defer goleak.VerifyNone(t)

	cat := sampleCatalog(t)
	synthesizer := synth.New(stubSource{}, 1)
	client := &stubClient{}
	eng := engine.New(nil, nil)

	orch := New(cat, synthesizer, client, eng, property.Collaborators{Source: stubSource{}}, Config{MaxPerEndpoint: 2}, nil)
	reports := orch.RunAll(context.Background())

	require.Len(t, reports, 2)
	for _, r := range reports {
		require.Equal(t, 200, r.ResponseStatusCode)
	}
}

func TestRunAll_SendFailureProducesSyntheticReport(t *testing.T) {
	defer goleak.VerifyNone(t)

	cat := sampleCatalog(t)
	synthesizer := synth.New(stubSource{}, 1)
	client := &stubClient{fail: true}
	eng := engine.New(nil, nil)

	orch := New(cat, synthesizer, client, eng, property.Collaborators{Source: stubSource{}}, Config{MaxPerEndpoint: 1}, nil)
	reports := orch.RunAll(context.Background())

	require.Len(t, reports, 1)
	require.Equal(t, 500, reports[0].ResponseStatusCode)
	require.False(t, reports[0].OverallPassed())
	require.Equal(t, "RequestFailed", reports[0].PropertyOutcomes[0].Name)
}

func TestRunAll_Parallel(t *testing.T) {
	defer goleak.VerifyNone(t)

	cat := sampleCatalog(t)
	synthesizer := synth.New(stubSource{}, 1)
	client := &stubClient{}
	eng := engine.New(nil, nil)

	orch := New(cat, synthesizer, client, eng, property.Collaborators{Source: stubSource{}},
		Config{MaxPerEndpoint: 1, ParallelEndpoints: true, MaxEndpointWorkers: 4}, nil)
	reports := orch.RunAll(context.Background())
	require.Len(t, reports, 1)
}

func mustLoad(t *testing.T, doc string) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load(writeTemp(t, doc), nil)
	require.NoError(t, err)
	return cat
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "catalog-*.json")
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}
