// Package engine evaluates a battery of properties against one
// (request, response) pair and aggregates the results into a
// RequestReport, per spec.md §4.7.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"apiconform/internal/model"
	"apiconform/internal/property"
)

// PropertyEngine runs properties sequentially against a single
// (request, response) pair so properties that share the live StateSource
// observe a consistent causal order.
type PropertyEngine struct {
	properties []property.Property
	log        *zap.Logger
}

// New builds a PropertyEngine over the given properties, run in the order
// given (spec.md §5 "Ordering guarantees").
func New(properties []property.Property, log *zap.Logger) *PropertyEngine {
	return &PropertyEngine{properties: properties, log: log}
}

// Evaluate runs every property against (req, resp) and aggregates a
// RequestReport. A property that panics or whose Check call cannot be
// trusted is recorded as a failure rather than propagated, since one
// broken property must not abort evaluation of the rest.
func (e *PropertyEngine) Evaluate(ctx context.Context, req *model.Request, resp *model.Response, collab property.Collaborators) model.RequestReport {
	start := time.Now()
	outcomes := make([]model.PropertyOutcome, 0, len(e.properties))

	for _, p := range e.properties {
		select {
		case <-ctx.Done():
			outcomes = append(outcomes, model.PropertyOutcome{
				Name:         p.Name(),
				RFCReference: p.RFCReference(),
				Description:  p.Description(),
				Result:       model.Cancelled(),
			})
			continue
		default:
		}
		outcomes = append(outcomes, e.runOne(ctx, p, req, resp, collab))
	}

	return model.RequestReport{
		RequestMethod:      req.Method,
		RequestPath:        req.Path,
		ResponseStatusCode: resp.StatusCode,
		PropertyOutcomes:   outcomes,
		ExecutionTime:      time.Since(start),
	}
}

func (e *PropertyEngine) runOne(ctx context.Context, p property.Property, req *model.Request, resp *model.Response, collab property.Collaborators) (outcome model.PropertyOutcome) {
	propStart := time.Now()
	outcome = model.PropertyOutcome{Name: p.Name(), RFCReference: p.RFCReference(), Description: p.Description()}

	defer func() {
		outcome.ExecutionTime = time.Since(propStart)
		if r := recover(); r != nil {
			if e.log != nil {
				e.log.Error("property panicked", zap.String("property", p.Name()), zap.Any("recovered", r))
			}
			outcome.Result = model.Fail("panic", panicDetails(r))
		}
	}()

	outcome.Result = p.Check(ctx, req, resp, collab)
	return outcome
}

func panicDetails(r interface{}) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return stringify(r)
}

func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return "non-error panic value"
}
