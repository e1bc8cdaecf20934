package agent

import (
	"fmt"
	"strings"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

// BuildToolResultsFallback deterministically formats successful tool results
// into a user-visible message. Used when the refinement LLM call fails or
// when every executed tool is on the fast path.
func BuildToolResultsFallback(results []*models.ToolResult) string {
	var parts []string
	for _, result := range results {
		if result == nil || !result.Success {
			continue
		}
		if text := formatResult(result); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "I looked into that but could not retrieve the details right now. Please try again in a moment."
	}
	return strings.Join(parts, "\n\n")
}

func formatResult(result *models.ToolResult) string {
	switch result.Tool {
	case "lookup_customer_orders":
		return formatOrders(result.Data)
	case "track_shipment":
		return formatTracking(result.Data)
	case "initiate_refund":
		return formatRefund(result.Data)
	case "generate_payment_link":
		if link, ok := result.Data["payment_link"].(string); ok && link != "" {
			return fmt.Sprintf("Here is your payment link: %s", link)
		}
	case "handoff_to_human":
		return "I've connected you with our support team. An agent will be with you shortly."
	case "create_ar_session":
		if url, ok := result.Data["session_url"].(string); ok && url != "" {
			return fmt.Sprintf("You can preview the product in AR here: %s", url)
		}
	case "search_knowledge_base":
		return formatKnowledge(result.Data)
	}
	return ""
}

func formatOrders(data map[string]any) string {
	orders, _ := data["orders"].([]any)
	if len(orders) == 0 {
		return "I could not find any orders for those details."
	}
	var lines []string
	for _, o := range orders {
		order, ok := o.(map[string]any)
		if !ok {
			continue
		}
		line := fmt.Sprintf("Order %v: %v", order["order_no"], order["status"])
		if eta, ok := order["eta"].(string); ok && eta != "" {
			line += fmt.Sprintf(", expected by %s", eta)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatTracking(data map[string]any) string {
	status, _ := data["status"].(string)
	if status == "" {
		return ""
	}
	text := fmt.Sprintf("Your shipment is %s", strings.ReplaceAll(status, "_", " "))
	if eta, ok := data["eta"].(string); ok && eta != "" {
		text += fmt.Sprintf(", expected %s", eta)
	}
	return text + "."
}

func formatRefund(data map[string]any) string {
	refundID, _ := data["refund_id"].(string)
	if refundID == "" {
		return ""
	}
	text := fmt.Sprintf("Your refund has been initiated (reference %s)", refundID)
	if timeline, ok := data["expected_timeline"].(string); ok && timeline != "" {
		text += fmt.Sprintf(" and should reach you in %s", timeline)
	}
	return text + "."
}

func formatKnowledge(data map[string]any) string {
	results, _ := data["results"].([]any)
	if len(results) == 0 {
		return ""
	}
	top, ok := results[0].(map[string]any)
	if !ok {
		return ""
	}
	snippet, _ := top["snippet"].(string)
	return snippet
}

// staticFallbacks are canned replies used when the LLM is unavailable and
// the conversation's primary intent is already known.
var staticFallbacks = map[string]string{
	"greeting":         "Hi! I'm here to help with orders, shipments, returns, and product questions. What can I do for you?",
	"order_status":     "I'm having trouble pulling up live order details right now. Please share your order number and I'll check as soon as I can, or you can track it from the orders page.",
	"track_shipment":   "Shipment tracking is briefly unavailable. Your AWB tracking link from the dispatch message will have the latest status.",
	"return_request":   "You can start a return from the orders page within the return window. If you'd rather I handle it, please hold on a moment and try again.",
	"refund_status":    "Refunds normally reach the original payment method within 5-7 business days of approval. I can check your specific refund shortly.",
	"product_question": "I can't reach the product catalogue right now. Meanwhile, the product page lists sizing, materials, and care details.",
	"pricing_inquiry":  "Our team will be happy to walk you through pricing. Please share your requirements and someone will follow up shortly.",
	"book_meeting":     "I can't open the calendar right now. Please share a couple of times that suit you and we'll confirm one.",
	"technical_issue":  "Sorry you're running into trouble. I've noted the issue; our support team will pick this up shortly.",
	"talk_to_human":    "Connecting you with our support team now. An agent will be with you shortly.",
}

// StaticFallback returns a canned response for the intent when one exists.
// The response always escalates softly by flagging low confidence.
func StaticFallback(intent, supportContact string) (*models.AgentResponse, bool) {
	message, ok := staticFallbacks[strings.ToLower(intent)]
	if !ok {
		return nil, false
	}
	if supportContact != "" {
		message += fmt.Sprintf(" You can also reach us at %s.", supportContact)
	}
	score := 0.3
	return &models.AgentResponse{
		UserFacingMessage: message,
		Intent:            strings.ToLower(intent),
		ConfidenceScore:   &score,
	}, true
}
