// Package orchestrator drives endpoints through the synthesizer, a
// ServiceClient, and the PropertyEngine, producing one RequestReport per
// synthesized request, per spec.md §4.8. Grounded on the teacher's
// internal/executor/runner.go TestExecutor, whose worker-pool shape
// supplies the optional cross-endpoint concurrency here.
package orchestrator

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"apiconform/internal/engine"
	"apiconform/internal/model"
	"apiconform/internal/property"
	"apiconform/internal/synth"
)

// ServiceClient sends a synthesized request and returns the service's
// response. Implemented by internal/httpclient.
type ServiceClient interface {
	Send(ctx context.Context, req *model.Request) (*model.Response, error)
}

// EndpointSource supplies the endpoints to run. Implemented by
// *catalog.Catalog directly, and by conformance.Builder's narrowed view
// over it when endpoint include/exclude filters are configured.
type EndpointSource interface {
	All() []model.Endpoint
}

// Config controls how the orchestrator schedules work.
type Config struct {
	MaxPerEndpoint       int
	Seed                 int64
	ParallelEndpoints    bool // when true, endpoints run concurrently; per-endpoint concurrency is always 1
	MaxEndpointWorkers   int
}

// Orchestrator runs every catalog endpoint through synthesis, send, and
// property evaluation.
type Orchestrator struct {
	catalog      EndpointSource
	synthesizer  *synth.Synthesizer
	client       ServiceClient
	propEngine   *engine.PropertyEngine
	collaborators property.Collaborators
	config       Config
	log          *zap.Logger
}

// New builds an Orchestrator.
func New(cat EndpointSource, synthesizer *synth.Synthesizer, client ServiceClient, propEngine *engine.PropertyEngine, collab property.Collaborators, config Config, log *zap.Logger) *Orchestrator {
	if config.MaxPerEndpoint <= 0 {
		config.MaxPerEndpoint = 1
	}
	if config.MaxEndpointWorkers <= 0 {
		config.MaxEndpointWorkers = runtime.NumCPU()
	}
	return &Orchestrator{
		catalog:       cat,
		synthesizer:   synthesizer,
		client:        client,
		propEngine:    propEngine,
		collaborators: collab,
		config:        config,
		log:           log,
	}
}

// RunAll implements spec.md §4.8: for every endpoint, synthesize up to
// maxPerEndpoint requests, send each, evaluate properties, and collect the
// resulting reports. When config.ParallelEndpoints is set, distinct
// endpoints run concurrently (bounded by MaxEndpointWorkers); requests
// within one endpoint are always sequential to preserve property
// causality (spec.md §5).
func (o *Orchestrator) RunAll(ctx context.Context) []model.RequestReport {
	endpoints := o.catalog.All()
	if !o.config.ParallelEndpoints {
		return o.runSequential(ctx, endpoints)
	}
	return o.runParallel(ctx, endpoints)
}

func (o *Orchestrator) runSequential(ctx context.Context, endpoints []model.Endpoint) []model.RequestReport {
	var reports []model.RequestReport
	for _, ep := range endpoints {
		if ctx.Err() != nil {
			break
		}
		reports = append(reports, o.runEndpoint(ctx, ep)...)
	}
	return reports
}

func (o *Orchestrator) runParallel(ctx context.Context, endpoints []model.Endpoint) []model.RequestReport {
	sem := semaphore.NewWeighted(int64(o.config.MaxEndpointWorkers))
	var mu sync.Mutex
	var reports []model.RequestReport
	var wg sync.WaitGroup

	for _, ep := range endpoints {
		if ctx.Err() != nil {
			break
		}
		ep := ep
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			epReports := o.runEndpoint(ctx, ep)
			mu.Lock()
			reports = append(reports, epReports...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return reports
}

// runEndpoint synthesizes and evaluates requests for one endpoint,
// sequentially (spec.md §4.8 steps 1.1-1.2).
func (o *Orchestrator) runEndpoint(ctx context.Context, ep model.Endpoint) []model.RequestReport {
	reqs := o.synthesizer.Synthesize(ctx, ep, o.config.MaxPerEndpoint)
	reports := make([]model.RequestReport, 0, len(reqs))

	for _, req := range reqs {
		if ctx.Err() != nil {
			break
		}
		req := req
		resp, err := o.client.Send(ctx, &req)
		if err != nil {
			reports = append(reports, requestFailedReport(req, err))
			continue
		}
		reports = append(reports, o.propEngine.Evaluate(ctx, &req, resp, o.collaborators))
	}
	return reports
}

// requestFailedReport builds the synthetic report spec.md §4.8's "Failure
// semantics" describes for a transport-level send failure: a single
// RequestFailed property result with status recorded as 500 for
// downstream sorting.
func requestFailedReport(req model.Request, err error) model.RequestReport {
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
