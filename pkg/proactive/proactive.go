// Package proactive inspects known orders before the LLM sees a message,
// so the agent can lead with "your shipment is delayed" instead of waiting
// for the customer to dig for it.
package proactive

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/resolvr-ai/resolvr/pkg/models"
	"github.com/resolvr-ai/resolvr/pkg/tools"
)

const (
	// maxOrders bounds how many orders one message can trigger lookups for.
	maxOrders = 2
	// checkTimeout caps the whole proactive pass. The pipeline treats the
	// result as optional context, so a slow check degrades to no context.
	checkTimeout = 3 * time.Second
)

// ToolExecutor runs a governed tool call. Satisfied by tools.Runtime.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any, call tools.CallContext) *models.ToolResult
}

// Checker resolves order state from memory, the shared order index, or a
// live lookup, and reports issues worth surfacing unprompted.
type Checker struct {
	runtime ToolExecutor     // optional; nil disables live lookups
	index   tools.OrderIndex // optional
}

// NewChecker wires a proactive checker. Both dependencies may be nil.
func NewChecker(runtime ToolExecutor, index tools.OrderIndex) *Checker {
	return &Checker{runtime: runtime, index: index}
}

// Input carries the per-turn signals the checker works from.
type Input struct {
	Entities []models.Entity
	Memory   *models.StructuredMemory
	Call     tools.CallContext
}

// issueFor maps an order status to a customer-facing issue description.
// Unlisted statuses are healthy and produce no context.
func issueFor(status string) string {
	switch strings.ToLower(status) {
	case "delayed", "delivery_delayed", "stuck_in_transit", "rto_initiated":
		return "shipment is delayed"
	case "payment_failed", "payment_pending":
		return "payment did not go through"
	case "return_initiated", "return_open", "refund_pending":
		return "a return is open"
	default:
		return ""
	}
}

// Check returns a context block naming known issues for the orders this
// conversation is about, or "" when everything looks healthy. Lookups run
// concurrently and the whole pass is time-boxed.
func (c *Checker) Check(ctx context.Context, in Input) string {
	if c == nil {
		return ""
	}
	orderNos := collectOrderNumbers(in)
	if len(orderNos) == 0 {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	lines := make([]string, len(orderNos))
	g, gctx := errgroup.WithContext(ctx)
	for i, orderNo := range orderNos {
		i, orderNo := i, orderNo
		g.Go(func() error {
			order := c.resolveOrder(gctx, orderNo, in)
			if order == nil {
				return nil
			}
			if issue := issueFor(order.Status); issue != "" {
				lines[i] = formatIssue(order, issue)
			}
			return nil
		})
	}
	_ = g.Wait()

	var found []string
	for _, line := range lines {
		if line != "" {
			found = append(found, line)
		}
	}
	return strings.Join(found, "\n")
}

func formatIssue(order *models.CachedOrder, issue string) string {
	line := fmt.Sprintf("- Order %s: %s (status: %s", order.OrderNo, issue, order.Status)
	if order.ETA != "" {
		line += fmt.Sprintf(", ETA %s", order.ETA)
	}
	if order.Courier != "" {
		line += fmt.Sprintf(", courier %s", order.Courier)
	}
	return line + ")"
}

// collectOrderNumbers gathers order numbers from this turn's entities first,
// then conversation memory, deduplicated and capped at maxOrders.
func collectOrderNumbers(in Input) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(orderNo string) {
		orderNo = strings.ToUpper(strings.TrimSpace(orderNo))
		if orderNo == "" {
			return
		}
		if _, dup := seen[orderNo]; dup {
			return
		}
		seen[orderNo] = struct{}{}
		out = append(out, orderNo)
	}

	for _, e := range in.Entities {
		if e.Type == models.EntityOrderNumber {
			add(e.Value)
		}
	}
	if in.Memory != nil {
		mem := append([]string(nil), in.Memory.OrderNumbers...)
		sort.Strings(mem)
		for _, orderNo := range mem {
			add(orderNo)
		}
	}
	if len(out) > maxOrders {
		out = out[:maxOrders]
	}
	return out
}

// resolveOrder finds order state, cheapest source first: conversation
// memory, the shared order index, then a live governed lookup.
func (c *Checker) resolveOrder(ctx context.Context, orderNo string, in Input) *models.CachedOrder {
	if in.Memory != nil {
		if order, ok := in.Memory.OrderDataCache[orderNo]; ok {
			return &order
		}
	}
	if c.index != nil {
		if order, ok := c.index.Get(ctx, orderNo); ok {
			return order
		}
	}
	if c.runtime == nil {
		return nil
	}

	result := c.runtime.Execute(ctx, "lookup_customer_orders", map[string]any{"order_no": orderNo}, in.Call)
	if result == nil || !result.Success {
		return nil
	}
	orders, _ := result.Data["orders"].([]any)
	for _, raw := range orders {
		fields, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		order := orderFromMap(fields)
		if strings.EqualFold(order.OrderNo, orderNo) {
			return &order
		}
	}
	return nil
}

func orderFromMap(fields map[string]any) models.CachedOrder {
	str := func(key string) string {
		s, _ := fields[key].(string)
		return s
	}
	return models.CachedOrder{
		OrderNo: str("order_no"),
		Status:  str("status"),
		AWB:     str("awb"),
		Courier: str("courier"),
		ETA:     str("eta"),
	}
}
