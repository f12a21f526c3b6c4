package conformance

import (
	"context"

	"go.uber.org/zap"

	"apiconform/internal/engine"
	"apiconform/internal/model"
	"apiconform/internal/orchestrator"
	"apiconform/internal/property"
	"apiconform/internal/synth"
)

// Tester is the built, runnable conformance engine (spec.md §6's "Tester").
type Tester struct {
	catalog    orchestrator.EndpointSource
	synth      *synth.Synthesizer
	client     orchestrator.ServiceClient
	propEngine *engine.PropertyEngine
	collab     property.Collaborators
	orchCfg    orchestrator.Config
	log        *zap.Logger
	properties []property.Property
}

// RunAll drives every catalog endpoint through synthesis, send, and
// property evaluation, synthesizing up to maxPerEndpoint requests per
// endpoint (spec.md §4.8).
func (t *Tester) RunAll(ctx context.Context, maxPerEndpoint int) []model.RequestReport {
	cfg := t.orchCfg
	cfg.MaxPerEndpoint = maxPerEndpoint
	orch := orchestrator.New(t.catalog, t.synth, t.client, t.propEngine, t.collab, cfg, t.log)
	return orch.RunAll(ctx)
}

// CheckRequest sends req once and evaluates every configured property
// against the resulting response, bypassing the synthesizer entirely —
// for ad hoc single-request checks (spec.md §6's checkRequest).
func (t *Tester) CheckRequest(ctx context.Context, req *model.Request) model.RequestReport {
	resp, err := t.client.Send(ctx, req)
	if err != nil {
		return model.RequestReport{
			RequestMethod:      req.Method,
			RequestPath:        req.Path,
			ResponseStatusCode: 500,
			PropertyOutcomes: []model.PropertyOutcome{{
				Name:   "RequestFailed",
				Result: model.Fail("request failed", err.Error()),
			}},
		}
	}
	return t.propEngine.Evaluate(ctx, req, resp, t.collab)
}

// Endpoints returns the (possibly filtered) endpoint set this Tester runs
// against.
func (t *Tester) Endpoints() []model.Endpoint {
	return t.catalog.All()
}

// Properties returns every property this Tester evaluates, in registered
// order: built-ins first (minus exclusions), then custom rules.
func (t *Tester) Properties() []property.Property {
	return t.properties
}
