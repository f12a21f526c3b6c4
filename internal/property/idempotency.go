package property

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"apiconform/internal/model"
	"apiconform/internal/state"
)

var errNoClient = errors.New("property requires a ServiceClient for follow-up requests")

// IdempotencyProperty checks that repeating a PUT or DELETE request is
// equivalent, in its effect on backing state, to sending it once.
type IdempotencyProperty struct {
	method        string
	name          string
	samplerConfig state.SamplerConfig
	log           *zap.Logger
}

// NewIdempotencyProperty builds the idempotency property for PUT or DELETE.
func NewIdempotencyProperty(method string, samplerConfig state.SamplerConfig, log *zap.Logger) *IdempotencyProperty {
	return &IdempotencyProperty{method: method, name: method + " Method Idempotency", samplerConfig: samplerConfig, log: log}
}

func (p *IdempotencyProperty) Name() string         { return p.name }
func (p *IdempotencyProperty) RFCReference() string { return "RFC 7231 §4.2.2" }
func (p *IdempotencyProperty) Description() string {
	return "Repeating a " + p.method + " request must not change backing state beyond the first application."
}

func (p *IdempotencyProperty) Check(ctx context.Context, req *model.Request, resp *model.Response, collab Collaborators) model.PropertyResult {
	if req.Method != p.method {
		return skip()
	}
	if p.method == "PUT" && !is2xx(resp.StatusCode) {
		return skip()
	}
	if collab.Client == nil {
		return errResult(p.name, errNoClient)
	}

	sampler := state.NewSampler(collab.Source, p.samplerConfig, p.log)
	before, err := sampler.Capture(ctx)
	if err != nil {
		return errResult(p.name, err)
	}

	clone := req.Clone()
	second, err := collab.Client.Send(ctx, clone)
	if err != nil {
		return model.Fail("repeat request failed", err.Error())
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
		return model.Fail("second request caused additional state changes", summarizeDiff(diff))
	}

	switch p.method {
	case "PUT":
		if resp.StatusCode != second.StatusCode {
			return model.Fail("different status codes on repeat", statusPair(resp.StatusCode, second.StatusCode))
		}
	case "DELETE":
		if !deleteStatusesIdempotent(resp.StatusCode, second.StatusCode) {
			return model.Fail("non-idempotent status transition", statusPair(resp.StatusCode, second.StatusCode))
		}
	}
	return model.Pass()
}

// deleteStatusesIdempotent implements spec.md §8 property #6's acceptance
// matrix: equal statuses are idempotent, and a first success (200/202/204)
// followed by 404 is idempotent (the resource is simply already gone).
func deleteStatusesIdempotent(first, second int) bool {
	if first == second {
		return true
	}
	if second != 404 {
		return false
	}
	switch first {
	case 200, 202, 204:
		return true
	default:
		return false
	}
}

func statusPair(first, second int) string {
	return "first=" + itoa(first) + " second=" + itoa(second)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
