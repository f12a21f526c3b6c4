package property

import (
	"context"

	"go.uber.org/zap"

	"apiconform/internal/model"
	"apiconform/internal/state"
)

// SafetyProperty checks that a GET, HEAD or OPTIONS request produced no
// observable state change.
//
// It reproduces a quirk the source implementation has: both the "before"
// and "after" snapshots are taken here, after the orchestrator has already
// sent the triggering request and received its response, so what this
// actually measures is steady-state drift between two post-request
// samples rather than a true before/after delta around the request. A
// corrected design would have the orchestrator capture a snapshot before
// sending the request and pass it in; this property does not do that, by
// design, to match the reference behavior.
type SafetyProperty struct {
	method        string
	name          string
	samplerConfig state.SamplerConfig
	log           *zap.Logger
}

// NewSafetyProperty builds the safety property for one of GET, HEAD, OPTIONS.
func NewSafetyProperty(method string, samplerConfig state.SamplerConfig, log *zap.Logger) *SafetyProperty {
	return &SafetyProperty{method: method, name: safetyName(method), samplerConfig: samplerConfig, log: log}
}

func safetyName(method string) string {
	switch method {
	case "GET":
		return "GET Method Safety"
	case "HEAD":
		return "HEAD Method Safety"
	case "OPTIONS":
		return "OPTIONS Method Safety"
	default:
		return method + " Method Safety"
	}
}

func (p *SafetyProperty) Name() string         { return p.name }
func (p *SafetyProperty) RFCReference() string { return "RFC 7231 §4.2.1" }
func (p *SafetyProperty) Description() string {
	return "A " + p.method + " request must not produce an observable change in backing store state."
}

func (p *SafetyProperty) Check(ctx context.Context, req *model.Request, resp *model.Response, collab Collaborators) model.PropertyResult {
	if req.Method != p.method {
		return skip()
	}
	sampler := state.NewSampler(collab.Source, p.samplerConfig, p.log)

	before, err := sampler.Capture(ctx)
	if err != nil {
		return errResult(p.name, err)
	}
	select {
	case <-ctx.Done():
		return model.Cancelled()
	default:
	}
	after, err := sampler.Capture(ctx)
	if err != nil {
		return errResult(p.name, err)
	}

	diff := model.Diff(before, after)
	if diff.HasChanges() {
		return model.Fail("state changed during a safe request", summarizeDiff(diff))
	}
	return model.Pass()
}

func summarizeDiff(diff model.StateDiff) string {
	out := ""
	for i, c := range diff.Changes {
		if i > 0 {
			out += "; "
		}
		out += c.Summary()
	}
	return out
}
