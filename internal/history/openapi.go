package history

import (
	"net/http"

	"github.com/JaimeStill/seedlab/pkg/openapi"
)

// Schemas returns the component schemas for history entries.
func Schemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"HistoryEntry": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":          openapi.StringSchema("uuid", ""),
				"analysis_id": openapi.StringSchema("uuid", ""),
				"lot_id":      {Type: "string"},
				"kind":        openapi.EnumSchema("", KindCreation, KindModification),
				"status":      {Type: "string"},
				"snapshot":    openapi.SchemaRef("Analysis"),
				"recorded_at": openapi.StringSchema("date-time", ""),
			},
		},
	}
}

// Paths returns the path items for history endpoints.
func Paths() map[string]*openapi.PathItem {
	return map[string]*openapi.PathItem{
		"/analyses/{id}/history": {
			Get: &openapi.Operation{
				Summary: "List analysis history",
				Tags:    []string{"History"},
				Parameters: []*openapi.Parameter{
					openapi.PathParam("id", "Analysis ID"),
					openapi.QueryParam("page", "integer", "Page number", false),
					openapi.QueryParam("page_size", "integer", "Results per page", false),
					openapi.QueryParam("sort", "string", "Sort fields", false),
					openapi.QueryParam("kind", "string", "Entry kind", false),
					openapi.QueryParam("status", "string", "Status at the time of the entry", false),
				},
				Responses: map[int]*openapi.Response{
					http.StatusOK:         openapi.ResponseJSON("History entries", "HistoryEntry"),
					http.StatusBadRequest: openapi.ResponseRef("BadRequest"),
					http.StatusNotFound:   openapi.ResponseRef("NotFound"),
				},
			},
		},
	}
}
