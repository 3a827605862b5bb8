package analyses

import (
	"net/http"

	"github.com/JaimeStill/seedlab/pkg/openapi"
)

var tags = []string{"Analyses"}

func decimalSchema(desc string) *openapi.Schema {
	return openapi.StringSchema("decimal", desc)
}

func actorSchema() *openapi.Schema {
	return openapi.EnumSchema("Role of the acting user", RoleAnalyst, RoleAdministrator)
}

// Schemas returns the component schemas referenced by the analysis operations.
func Schemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"AnalysisConfig": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"replicates_per_batch": {Type: "integer", Description: "Replicates required to complete a batch (1-16)"},
				"texture":              openapi.EnumSchema("", TextureNormal, TextureFriable),
				"trash_compliant":      {Type: "boolean"},
			},
		},
		"Analysis": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":            openapi.StringSchema("uuid", ""),
				"type":          {Type: "string"},
				"lot_id":        {Type: "string"},
				"status":        {Type: "string"},
				"config":        openapi.SchemaRef("AnalysisConfig"),
				"mean":          decimalSchema("Mean over all replicates"),
				"std_dev":       decimalSchema("Population standard deviation over all replicates"),
				"cv":            decimalSchema("Coefficient of variation in percent"),
				"derived_raw":   decimalSchema("Mean scaled to thousand-seed weight"),
				"rounded_final": decimalSchema("Manually reviewed final value"),
				"batch_count":   {Type: "integer"},
				"started_at":    openapi.StringSchema("date-time", ""),
				"finished_at":   openapi.StringSchema("date-time", ""),
				"updated_at":    openapi.StringSchema("date-time", ""),
			},
		},
		"Replicate": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":          openapi.StringSchema("uuid", ""),
				"analysis_id": openapi.StringSchema("uuid", ""),
				"index":       {Type: "integer"},
				"value":       decimalSchema("Measured value"),
				"batch":       {Type: "integer"},
				"validity":    openapi.EnumSchema("", "unknown", "valid", "invalid"),
			},
		},
		"ReplicateResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"replicate":       openapi.SchemaRef("Replicate"),
				"assigned_batch":  {Type: "integer"},
				"validity":        {Type: "string"},
				"evaluation":      {Type: "object", Description: "Outcome of the affected batch evaluation"},
				"batch_count":     {Type: "integer"},
				"escalated":       {Type: "boolean"},
				"complete":        {Type: "boolean"},
				"ceiling_reached": {Type: "boolean"},
				"analysis":        openapi.SchemaRef("Analysis"),
			},
		},
		"Statistics": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"analysis_id":   openapi.StringSchema("uuid", ""),
				"mean":          decimalSchema(""),
				"std_dev":       decimalSchema(""),
				"cv":            decimalSchema(""),
				"derived_raw":   decimalSchema(""),
				"rounded_final": decimalSchema(""),
				"batch_count":   {Type: "integer"},
				"replicates":    {Type: "integer"},
				"threshold":     decimalSchema("Accepted CV threshold"),
				"status":        {Type: "string"},
				"can_finalize":  {Type: "boolean"},
			},
		},
		"CreateCommand": {
			Type:     "object",
			Required: []string{"type", "lot_id", "actor"},
			Properties: map[string]*openapi.Schema{
				"type": openapi.EnumSchema("",
					TypePurity, TypeGermination, TypeMassPerSample,
					TypeViability, TypeOtherSeedCount,
				),
				"lot_id": {Type: "string"},
				"config": openapi.SchemaRef("AnalysisConfig"),
				"actor":  actorSchema(),
			},
		},
		"ValueCommand": {
			Type:     "object",
			Required: []string{"value", "actor"},
			Properties: map[string]*openapi.Schema{
				"value": decimalSchema(""),
				"actor": actorSchema(),
			},
		},
		"TransitionCommand": {
			Type:     "object",
			Required: []string{"actor"},
			Properties: map[string]*openapi.Schema{
				"actor": actorSchema(),
			},
		},
	}
}

func op(summary, body string, status int, schema string) *openapi.Operation {
	o := &openapi.Operation{
		Summary: summary,
		Tags:    tags,
		Responses: map[int]*openapi.Response{
			status:                         openapi.ResponseJSON(summary, schema),
			http.StatusBadRequest:          openapi.ResponseRef("BadRequest"),
			http.StatusNotFound:            openapi.ResponseRef("NotFound"),
			http.StatusConflict:            openapi.ResponseRef("Conflict"),
			http.StatusUnprocessableEntity: openapi.ResponseRef("Unprocessable"),
		},
	}
	if body != "" {
		o.RequestBody = openapi.RequestBodyJSON(body, true)
	}
	return o
}

func withID(o *openapi.Operation, desc string) *openapi.Operation {
	o.Parameters = append(o.Parameters, openapi.PathParam("id", desc))
	return o
}

func timeParam(name, desc string) *openapi.Parameter {
	p := openapi.QueryParam(name, "string", desc, false)
	p.Schema.Format = "date-time"
	return p
}

// Paths returns the path items for the analysis and replicate endpoints.
func Paths() map[string]*openapi.PathItem {
	list := op("List analyses", "", http.StatusOK, "Analysis")
	list.Parameters = []*openapi.Parameter{
		openapi.QueryParam("page", "integer", "Page number", false),
		openapi.QueryParam("page_size", "integer", "Results per page", false),
		openapi.QueryParam("search", "string", "Lot id search", false),
		openapi.QueryParam("sort", "string", "Sort fields", false),
		openapi.QueryParam("type", "string", "Analysis type", false),
		openapi.QueryParam("status", "string", "Lifecycle status", false),
		openapi.QueryParam("lot_id", "string", "Exact lot id", false),
		timeParam("started_from", "Earliest start time, inclusive"),
		timeParam("started_to", "Latest start time, exclusive"),
	}

	deleteReplicate := withID(op("Delete replicate", "", http.StatusOK, "ReplicateResult"), "Replicate ID")
	deleteReplicate.Parameters = append(deleteReplicate.Parameters,
		openapi.QueryParam("actor", "string", "Role of the acting user", true))

	return map[string]*openapi.PathItem{
		"/analyses": {
			Get:  list,
			Post: op("Register analysis", "CreateCommand", http.StatusCreated, "Analysis"),
		},
		"/analyses/search": {
			Post: op("Search analyses", "PageRequest", http.StatusOK, "Analysis"),
		},
		"/analyses/{id}": {
			Get: withID(op("Find analysis", "", http.StatusOK, "Analysis"), "Analysis ID"),
		},
		"/analyses/{id}/statistics": {
			Get: withID(op("Analysis statistics", "", http.StatusOK, "Statistics"), "Analysis ID"),
		},
		"/analyses/{id}/replicates": {
			Get:  withID(op("List replicates", "", http.StatusOK, "Replicate"), "Analysis ID"),
			Post: withID(op("Add replicate", "ValueCommand", http.StatusCreated, "ReplicateResult"), "Analysis ID"),
		},
		"/analyses/{id}/rounded-value": {
			Put: withID(op("Set rounded final value", "ValueCommand", http.StatusOK, "Analysis"), "Analysis ID"),
		},
		"/analyses/{id}/finalize": {
			Post: withID(op("Finalize analysis", "TransitionCommand", http.StatusOK, "Analysis"), "Analysis ID"),
		},
		"/analyses/{id}/approve": {
			Post: withID(op("Approve analysis", "TransitionCommand", http.StatusOK, "Analysis"), "Analysis ID"),
		},
		"/analyses/{id}/repeat": {
			Post: withID(op("Mark analysis for repeat", "TransitionCommand", http.StatusOK, "Analysis"), "Analysis ID"),
		},
		"/analyses/{id}/deactivate": {
			Post: withID(op("Deactivate analysis", "TransitionCommand", http.StatusOK, "Analysis"), "Analysis ID"),
		},
		"/replicates/{id}": {
			Put:    withID(op("Update replicate", "ValueCommand", http.StatusOK, "ReplicateResult"), "Replicate ID"),
			Delete: deleteReplicate,
		},
	}
}
