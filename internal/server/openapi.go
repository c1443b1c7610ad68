// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package server

import (
	"fmt"
	"net/http"
)

// BaseURL is the public address of the service. Behind the proxy it is
// https://<domain>; locally it is http://localhost:<port>.
func (s *Server) BaseURL() string {
	if s.opts.Domain == "" || s.opts.Domain == "localhost" {
		return fmt.Sprintf("http://localhost:%d", s.opts.Port)
	}
	return "https://" + s.opts.Domain
}

type obj = map[string]any

func sheetValuesSchema() obj {
	return obj{
		"type": "object",
		"properties": obj{
			"values":         obj{"type": "array", "items": obj{"type": "array", "items": obj{}}},
			"issues_present": obj{"type": "boolean", "default": false},
		},
		"required": []string{"values"},
	}
}

func jsonBody(schema obj) obj {
	return obj{"required": true, "content": obj{"application/json": obj{"schema": schema}}}
}

func okResponse() obj {
	return obj{
		"200": obj{"description": "Successful Response", "content": obj{"application/json": obj{"schema": obj{"$ref": "#/components/schemas/GoogleSheetValues"}}}},
		"400": obj{"description": "Invalid input", "content": obj{"application/json": obj{"schema": obj{"$ref": "#/components/schemas/Error"}}}},
	}
}

func resourceParam(values ...string) []obj {
	return []obj{{
		"name":     "target_resource",
		"in":       "query",
		"required": true,
		"schema":   obj{"type": "string", "enum": values},
	}}
}

func (s *Server) openAPIDocument() obj {
	ref := obj{"$ref": "#/components/schemas/GoogleSheetValues"}
	return obj{
		"openapi": "3.1.0",
		"info":    obj{"title": "google-sheets", "version": s.opts.Version},
		"servers": []obj{{"url": s.BaseURL(), "description": "google-sheets server"}},
		"paths": obj{
			"/process-campaign-data": obj{"post": obj{
				"summary": "Create campaigns from the campaign template for every new campaign row",
				"requestBody": jsonBody(obj{
					"type": "object",
					"properties": obj{
						"template_sheet_values":     ref,
						"new_campaign_sheet_values": ref,
					},
				}),
				"responses": okResponse(),
			}},
			"/process-data": obj{"post": obj{
				"summary":    "Create ads or keywords from a template for every new campaign row",
				"parameters": resourceParam("ad", "keyword"),
				"requestBody": jsonBody(obj{
					"type": "object",
					"properties": obj{
						"template_sheet_values":                   ref,
						"new_campaign_sheet_values":               ref,
						"merged_campaigns_ad_groups_sheet_values": ref,
					},
				}),
				"responses": okResponse(),
			}},
			"/validate-output": obj{"post": obj{
				"summary":     "Check generated rows against the ad platform limits",
				"parameters":  resourceParam("ad", "campaign", "keyword"),
				"requestBody": jsonBody(ref),
				"responses":   okResponse(),
			}},
			"/healthz": obj{"get": obj{"summary": "Liveness probe", "responses": obj{"200": obj{"description": "ok"}}}},
			"/version": obj{"get": obj{"summary": "Build version", "responses": obj{"200": obj{"description": "version"}}}},
		},
		"components": obj{"schemas": obj{
			"GoogleSheetValues": sheetValuesSchema(),
			"Error": obj{
				"type":       "object",
				"properties": obj{"detail": obj{"type": "string"}},
			},
		}},
	}
}

func (s *Server) openAPI(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.openAPIDocument())
}
