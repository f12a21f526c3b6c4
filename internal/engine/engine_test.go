package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"apiconform/internal/model"
	"apiconform/internal/property"
)

type stubProperty struct {
	name   string
	result model.PropertyResult
	panics bool
}

func (s *stubProperty) Name() string         { return s.name }
func (s *stubProperty) RFCReference() string { return "test" }
func (s *stubProperty) Description() string  { return "" }
func (s *stubProperty) Check(ctx context.Context, req *model.Request, resp *model.Response, collab property.Collaborators) model.PropertyResult {
	if s.panics {
		panic("boom")
	}
	return s.result
}

func TestEvaluate_AggregatesResults(t *testing.T) {
	props := []property.Property{
		&stubProperty{name: "a", result: model.Pass()},
		&stubProperty{name: "b", result: model.Fail("nope", "details")},
	}
	e := New(props, nil)
	report := e.Evaluate(context.Background(), &model.Request{Method: "GET", Path: "/x"}, &model.Response{StatusCode: 200}, property.Collaborators{})

	require.Len(t, report.PropertyOutcomes, 2)
	require.False(t, report.OverallPassed())
	passed, failed := report.Counts()
	require.Equal(t, 1, passed)
	require.Equal(t, 1, failed)
}

func TestEvaluate_RecoversFromPanic(t *testing.T) {
	props := []property.Property{&stubProperty{name: "crasher", panics: true}}
	e := New(props, nil)
	report := e.Evaluate(context.Background(), &model.Request{Method: "GET"}, &model.Response{StatusCode: 200}, property.Collaborators{})

	require.Len(t, report.PropertyOutcomes, 1)
	require.False(t, report.PropertyOutcomes[0].Result.Passed)
	require.Equal(t, "panic", report.PropertyOutcomes[0].Result.FailureReason)
}

func TestEvaluate_OrderPreserved(t *testing.T) {
	props := []property.Property{
		&stubProperty{name: "first", result: model.Pass()},
		&stubProperty{name: "second", result: model.Pass()},
		&stubProperty{name: "third", result: model.Pass()},
	}
	e := New(props, nil)
	report := e.Evaluate(context.Background(), &model.Request{Method: "GET"}, &model.Response{StatusCode: 200}, property.Collaborators{})

	require.Equal(t, []string{"first", "second", "third"},
		[]string{report.PropertyOutcomes[0].Name, report.PropertyOutcomes[1].Name, report.PropertyOutcomes[2].Name})
}

func TestEvaluate_CancellationYieldsCancelledNotPassed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	props := []property.Property{&stubProperty{name: "a", result: model.Pass()}}
	e := New(props, nil)
	report := e.Evaluate(ctx, &model.Request{Method: "GET"}, &model.Response{StatusCode: 200}, property.Collaborators{})

	require.False(t, report.PropertyOutcomes[0].Result.Passed)
	require.Equal(t, "cancelled", report.PropertyOutcomes[0].Result.FailureReason)
}
