package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/voxhall/armory/internal/event"
)

// formatPayload returns the request body and content-type for a delivery.
func formatPayload(w *Webhook, e event.Event) ([]byte, string) {
	switch w.Type {
	case TypeDiscord:
		return formatDiscord(e)
	case TypeSlack:
		return formatSlack(e)
	default:
		return formatGeneric(e)
	}
}

func formatGeneric(e event.Event) ([]byte, string) {
	payload := map[string]any{
		"event":     string(e.Type),
		"timestamp": e.Timestamp,
		"data":      e.Data,
	}
	body, _ := json.Marshal(payload)
	return body, "application/json"
}

func formatDiscord(e event.Event) ([]byte, string) {
	payload := map[string]any{
		"embeds": []map[string]any{
			{
				"title":       fmt.Sprintf("Armory: %s", e.Type),
				"description": formatDescription(e),
				"color":       15105570, // orange
				"timestamp":   e.Timestamp.Format("2006-01-02T15:04:05Z"),
			},
		},
	}
	body, _ := json.Marshal(payload)
	return body, "application/json"
}

func formatSlack(e event.Event) ([]byte, string) {
	payload := map[string]any{
		"text": fmt.Sprintf("*Armory: %s*\n%s", e.Type, formatDescription(e)),
	}
	body, _ := json.Marshal(payload)
	return body, "application/json"
}

// formatDescription renders a short human-readable line for the event.
func formatDescription(e event.Event) string {
	switch e.Type {
	case event.DirectoryAdded:
		return fmt.Sprintf("Directory added: %s", dataString(e, "path"))
	case event.DirectoryRemoved:
		return fmt.Sprintf("Directory removed: %s", dataString(e, "path"))
	case event.DirectoryValidated:
		return fmt.Sprintf("Directory revalidated: %s (valid: %v)", dataString(e, "path"), e.Data["valid"])
	case event.ScanCompleted:
		return fmt.Sprintf("Scan %s: %v of %v directories, %v errors",
			dataString(e, "state"), e.Data["completed"], e.Data["total"], e.Data["errors"])
	case event.FSChanged:
		return fmt.Sprintf("Filesystem change in %s", dataString(e, "path"))
	}
	if e.Data == nil {
		return string(e.Type)
	}
	b, _ := json.Marshal(e.Data)
	return string(b)
}

func dataString(e event.Event, key string) string {
	if e.Data == nil {
		return ""
	}
	s, _ := e.Data[key].(string)
	return s
}
