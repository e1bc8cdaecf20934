package orchestrator

import (
	"context"
	"strings"

	"github.com/resolvr-ai/resolvr/pkg/models"
	"github.com/resolvr-ai/resolvr/pkg/tools"
)

// prefetchConfidence is the minimum entity confidence to start a lookup
// before the LLM asks for one.
const prefetchConfidence = 0.9

// promise is a tool call started early. The result is computed once; an
// unconsumed promise completes in the background and discards its output.
type promise struct {
	tool   string
	done   chan struct{}
	result *models.ToolResult
}

func startPromise(tool string, run func() *models.ToolResult) *promise {
	p := &promise{tool: tool, done: make(chan struct{})}
	go func() {
		p.result = run()
		close(p.done)
	}()
	return p
}

// await blocks until the promise resolves or ctx ends.
func (p *promise) await(ctx context.Context) *models.ToolResult {
	select {
	case <-p.done:
		return p.result
	case <-ctx.Done():
		return nil
	}
}

// prefetchSet holds in-flight promises keyed by "order_no:<v>" / "phone:<v>".
type prefetchSet map[string]*promise

// startPrefetch kicks off order lookups for every high-confidence order
// number and phone entity. All lookups run in parallel.
func (o *Orchestrator) startPrefetch(ctx context.Context, entities []models.Entity, call tools.CallContext) prefetchSet {
	if o.deps.Runtime == nil {
		return nil
	}
	set := make(prefetchSet)
	for _, e := range entities {
		if e.Confidence < prefetchConfidence {
			continue
		}
		var key, argName string
		switch e.Type {
		case models.EntityOrderNumber:
			key, argName = "order_no:"+strings.ToUpper(e.Value), "order_no"
		case models.EntityPhone:
			key, argName = "phone:"+e.Value, "phone"
		default:
			continue
		}
		if _, dup := set[key]; dup {
			continue
		}
		args := map[string]any{argName: e.Value}
		set[key] = startPromise("lookup_customer_orders", func() *models.ToolResult {
			return o.deps.Runtime.Execute(ctx, "lookup_customer_orders", args, call)
		})
	}
	return set
}

// match returns the promise covering a requested tool call, if one exists.
// A promise matches when the tool name agrees and the call's order_no or
// phone argument equals the prefetched key.
func (s prefetchSet) match(call models.ToolCallRequest) *promise {
	if len(s) == 0 {
		return nil
	}
	for _, argName := range []string{"order_no", "phone"} {
		value, _ := call.Args[argName].(string)
		if value == "" {
			continue
		}
		if argName == "order_no" {
			value = strings.ToUpper(value)
		}
		if p, ok := s[argName+":"+value]; ok && p.tool == call.Name {
			return p
		}
	}
	return nil
}
