package property

import (
	"context"
	"sort"
	"strings"

	"apiconform/internal/model"
)

// HeadGetConsistencyProperty checks that a HEAD response carries no body
// and otherwise matches the GET response at the same URI.
type HeadGetConsistencyProperty struct{}

// NewHeadGetConsistencyProperty builds the property.
func NewHeadGetConsistencyProperty() *HeadGetConsistencyProperty { return &HeadGetConsistencyProperty{} }

func (p *HeadGetConsistencyProperty) Name() string         { return "HEAD-GET Response Consistency" }
func (p *HeadGetConsistencyProperty) RFCReference() string { return "RFC 7231 §4.3.2" }
func (p *HeadGetConsistencyProperty) Description() string {
	return "A HEAD response must carry no body and otherwise match the GET response at the same URI."
}

func (p *HeadGetConsistencyProperty) Check(ctx context.Context, req *model.Request, resp *model.Response, collab Collaborators) model.PropertyResult {
	if req.Method != "HEAD" {
		return skip()
	}
	if hasBody(resp) {
		return model.Fail("HEAD response carried a body", "HEAD must never return a message body regardless of the matching GET")
	}
	if collab.Client == nil {
		return errResult(p.Name(), errNoClient)
	}

	getReq := req.Clone()
	getReq.Method = "GET"
	getReq.Body = nil

	getResp, err := collab.Client.Send(ctx, getReq)
	if err != nil {
		return model.Fail("paired GET request failed", err.Error())
	}

	select {
	case <-ctx.Done():
		return model.Cancelled()
	default:
	}

	if resp.StatusCode != getResp.StatusCode {
		return model.Fail("status codes differ between HEAD and GET", statusPair(resp.StatusCode, getResp.StatusCode))
	}

	if diff := diffHeaders(resp.Headers, getResp.Headers); diff != "" {
		return model.Fail("response headers differ between HEAD and GET", diff)
	}
	return model.Pass()
}

func hasBody(resp *model.Response) bool {
	if len(resp.Body) > 0 {
		return true
	}
	for _, v := range resp.HeaderValues("Content-Length") {
		if v != "" && v != "0" {
			return true
		}
	}
	return false
}

// diffHeaders compares the union of header names present on either side,
// joining multi-valued headers before comparison, and reports every name
// whose joined value differs.
func diffHeaders(a, b []model.KV) string {
	joinedA := joinHeaders(a)
	joinedB := joinHeaders(b)

	names := map[string]struct{}{}
	for k := range joinedA {
		names[k] = struct{}{}
	}
	for k := range joinedB {
		names[k] = struct{}{}
	}

	var mismatched []string
	for name := range names {
		if joinedA[name] != joinedB[name] {
			mismatched = append(mismatched, name)
		}
	}
	sort.Strings(mismatched)
	if len(mismatched) == 0 {
		return ""
	}
	return "differing headers: " + strings.Join(mismatched, ", ")
}

func joinHeaders(kvs []model.KV) map[string]string {
	out := map[string]string{}
	for _, kv := range kvs {
		lower := strings.ToLower(kv.Key)
		if existing, ok := out[lower]; ok {
			out[lower] = existing + "," + kv.Value
		} else {
			out[lower] = kv.Value
		}
	}
	return out
}
