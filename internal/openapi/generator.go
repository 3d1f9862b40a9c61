// Package openapi generates the OpenAPI 3.1 document for the opsdesk
// dashboard API.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// GenerateSpec builds the OpenAPI document describing the dashboard API.
func GenerateSpec(baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Opsdesk API",
			Description: "Admin dashboard API: aggregated user statistics, system metrics, and the support-ticket triage workflow.",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["apiKey"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: "X-API-Key",
		},
	}
	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}

	doc.Security = openapi3.SecurityRequirements{
		{"apiKey": {}},
		{"bearerAuth": {}},
	}

	addSchemas(doc)

	doc.Paths = openapi3.NewPaths()
	addSessionPaths(doc)
	addDashboardPaths(doc)
	addTicketPaths(doc)

	return doc
}

func addSchemas(doc *openapi3.T) {
	doc.Components.Schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": objectSchema(openapi3.Schemas{
					"code":      schemaOf("integer"),
					"message":   schemaOf("string"),
					"retryable": schemaOf("boolean"),
					"context":   schemaOf("object"),
				}),
			},
		},
	}

	doc.Components.Schemas["TicketRow"] = objectSchema(openapi3.Schemas{
		"id":             schemaOf("integer"),
		"user_name":      schemaOf("string"),
		"subject":        schemaOf("string"),
		"message":        schemaOf("string"),
		"status":         enumSchema("new", "open", "in-progress", "resolved", "closed"),
		"category":       enumSchema("general", "technical", "billing", "account", "other"),
		"admin_response": schemaOf("string"),
		"created_at":     schemaOf("string"),
	})

	doc.Components.Schemas["Registration"] = objectSchema(openapi3.Schemas{
		"id":         schemaOf("integer"),
		"name":       schemaOf("string"),
		"email":      schemaOf("string"),
		"created_at": schemaOf("string"),
		"status":     enumSchema("active", "inactive"),
	})

	doc.Components.Schemas["UserStats"] = objectSchema(openapi3.Schemas{
		"total":          schemaOf("integer"),
		"active":         schemaOf("integer"),
		"new_this_month": schemaOf("integer"),
	})
}

func addSessionPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/v1/session", &openapi3.PathItem{
		Post: &openapi3.Operation{
			OperationID: "login",
			Summary:     "Sign in as an operator and receive a bearer token",
			Tags:        []string{"session"},
			Security:    &openapi3.SecurityRequirements{},
			RequestBody: jsonRequestBody(objectSchema(openapi3.Schemas{
				"email":    schemaOf("string"),
				"password": schemaOf("string"),
			})),
			Responses: standardResponses("Session token issued"),
		},
		Delete: &openapi3.Operation{
			OperationID: "logout",
			Summary:     "Invalidate the current session",
			Tags:        []string{"session"},
			Security:    &openapi3.SecurityRequirements{},
			Responses:   standardResponses("Session invalidated"),
		},
	})
}

func addDashboardPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/v1/dashboard", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "getDashboard",
			Summary:     "Full dashboard snapshot: stats, registrations, tickets, chart series",
			Tags:        []string{"dashboard"},
			Responses:   standardResponses("Dashboard snapshot"),
		},
	})
	doc.Paths.Set("/api/v1/metrics/system", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "getSystemMetrics",
			Summary:     "24-bucket hourly CPU/memory/request series",
			Tags:        []string{"metrics"},
			Responses:   standardResponses("System metrics series"),
		},
	})
	doc.Paths.Set("/api/v1/metrics/activity", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "getActivityMetrics",
			Summary:     "24-bucket hourly active-user series",
			Tags:        []string{"metrics"},
			Responses:   standardResponses("Activity metrics series"),
		},
	})
}

func addTicketPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/v1/tickets", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "listTickets",
			Summary:     "List all support tickets",
			Tags:        []string{"tickets"},
			Responses:   standardResponses("Ticket list"),
		},
	})

	ticketIDParam := &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:     "ticketID",
			In:       "path",
			Required: true,
			Schema:   schemaOf("integer"),
		},
	}

	doc.Paths.Set("/api/v1/tickets/{ticketID}", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "getTicket",
			Summary:     "Fetch one ticket; viewing a new ticket moves it to open",
			Tags:        []string{"tickets"},
			Parameters:  openapi3.Parameters{ticketIDParam},
			Responses:   standardResponses("Ticket detail"),
		},
	})

	doc.Paths.Set("/api/v1/tickets/{ticketID}/status", &openapi3.PathItem{
		Put: &openapi3.Operation{
			OperationID: "updateTicketStatus",
			Summary:     "Apply a triage action (start, resolve, close) to a ticket",
			Tags:        []string{"tickets"},
			Parameters:  openapi3.Parameters{ticketIDParam},
			RequestBody: jsonRequestBody(objectSchema(openapi3.Schemas{
				"action":         schemaOf("string"),
				"admin_response": schemaOf("string"),
			})),
			Responses: standardResponses("Updated ticket"),
		},
	})
}

// ---------------------------------------------------------------------------
// Schema construction helpers
// ---------------------------------------------------------------------------

func schemaOf(typ string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{typ}}}
}

func enumSchema(values ...string) *openapi3.SchemaRef {
	enum := make([]interface{}, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type: &openapi3.Types{"string"},
		Enum: enum,
	}}
}

func objectSchema(props openapi3.Schemas) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: props,
	}}
}

func jsonRequestBody(schema *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Required: true,
			Content: openapi3.Content{
				"application/json": &openapi3.MediaType{Schema: schema},
			},
		},
	}
}

func standardResponses(okDescription string) *openapi3.Responses {
	responses := openapi3.NewResponses()
	responses.Set("200", &openapi3.ResponseRef{
		Value: &openapi3.Response{Description: &okDescription},
	})
	errDesc := "Error"
	responses.Set("default", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &errDesc,
			Content: openapi3.Content{
				"application/json": &openapi3.MediaType{
					Schema: &openapi3.SchemaRef{Ref: "#/components/schemas/ErrorResponse"},
				},
			},
		},
	})
	return responses
}
