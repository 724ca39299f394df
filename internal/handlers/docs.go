package handlers

import (
	"encoding/json"
	"net/http"
)

type docField struct {
	name     string
	typ      string
	required bool
}

// formBody describes an application/x-www-form-urlencoded request body
func formBody(fields ...docField) map[string]interface{} {
	props := map[string]interface{}{}
	var required []string
	for _, f := range fields {
		props[f.name] = map[string]string{"type": f.typ}
		if f.required {
			required = append(required, f.name)
		}
	}
	return map[string]interface{}{
		"required": true,
		"content": map[string]interface{}{
			"application/x-www-form-urlencoded": map[string]interface{}{
				"schema": map[string]interface{}{
					"type":       "object",
					"properties": props,
					"required":   required,
				},
			},
		},
	}
}

func queryParam(name, typ, description string) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      map[string]string{"type": typ},
	}
}

func pathParam(name, typ string) map[string]interface{} {
	return map[string]interface{}{
		"name":     name,
		"in":       "path",
		"required": true,
		"schema":   map[string]string{"type": typ},
	}
}

// responses maps status codes to descriptions
func responses(codes map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(codes))
	for code, desc := range codes {
		out[code] = map[string]string{"description": desc}
	}
	return out
}

func operation(summary, description string, extra map[string]interface{}) map[string]interface{} {
	op := map[string]interface{}{
		"summary":     summary,
		"description": description,
	}
	for k, v := range extra {
		op[k] = v
	}
	return op
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the Farm Advisor API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	soilFields := []docField{
		{"nitrogen", "number", true},
		{"phosphorus", "number", true},
		{"potassium", "number", true},
		{"temperature", "number", true},
		{"humidity", "number", true},
		{"ph", "number", true},
		{"rainfall", "number", true},
	}
	fertilizerFields := []docField{
		{"temperature", "number", true},
		{"moisture", "number", true},
		{"rainfall", "number", true},
		{"ph", "number", true},
		{"nitrogen", "number", true},
		{"phosphorus", "number", true},
		{"potassium", "number", true},
		{"carbon", "number", true},
		{"soil", "string", true},
		{"crop", "string", true},
	}
	paging := []map[string]interface{}{
		queryParam("limit", "integer", "Records per page (default: 50, max: 500)"),
		queryParam("offset", "integer", "Records to skip (default: 0)"),
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Farm Advisor API",
			"description": "Crop, fertilizer and plant disease advisory service with a farm diary, task planner and knowledge hub",
			"version":     "1.0.0",
			"contact": map[string]string{
				"name": "Farm Advisor Team",
			},
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"components": map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]string{"type": "http", "scheme": "bearer"},
				"cookieAuth": map[string]string{"type": "apiKey", "in": "cookie", "name": SessionCookie},
			},
		},
		"paths": map[string]interface{}{
			"/api/crop-recommendation": map[string]interface{}{
				"post": operation("Recommend a crop", "Rule-based crop recommendation from soil nutrients and climate", map[string]interface{}{
					"requestBody": formBody(soilFields...),
					"responses":   responses(map[string]string{"200": "Recommended crop", "400": "Missing or non-numeric field"}),
				}),
			},
			"/api/fertilizer-recommendation": map[string]interface{}{
				"post": operation("Recommend a fertilizer", "Model-based fertilizer recommendation", map[string]interface{}{
					"requestBody": formBody(fertilizerFields...),
					"responses": responses(map[string]string{
						"200": "Recommended fertilizer",
						"400": "Missing or non-numeric field",
						"422": "Soil or crop label unknown to the model",
					}),
				}),
			},
			"/api/fertilizer-recommendation/options": map[string]interface{}{
				"get": operation("List fertilizer form options", "Crop and soil labels accepted by the fertilizer model", map[string]interface{}{
					"responses": responses(map[string]string{"200": "Crop and soil vocabularies"}),
				}),
			},
			"/api/disease-detection": map[string]interface{}{
				"post": operation("Detect plant disease", "Classifies an uploaded plant image", map[string]interface{}{
					"requestBody": map[string]interface{}{
						"required": true,
						"content": map[string]interface{}{
							"multipart/form-data": map[string]interface{}{
								"schema": map[string]interface{}{
									"type": "object",
									"properties": map[string]interface{}{
										ImageField: map[string]string{"type": "string", "format": "binary"},
									},
								},
							},
						},
					},
					"responses": responses(map[string]string{
						"200": "Disease name, cause and cure",
						"400": "Missing plant_image field",
						"413": "Image too large",
					}),
				}),
			},
			"/api/recommendations/history": map[string]interface{}{
				"get": operation("Recommendation history", "The caller's most recent crop and fertilizer recommendations", map[string]interface{}{
					"parameters": []map[string]interface{}{queryParam("limit", "integer", "Entries per kind (default: 20, max: 100)")},
					"responses":  responses(map[string]string{"200": "History", "401": "Authentication required"}),
				}),
			},
			"/api/recommendations/stats": map[string]interface{}{
				"get": operation("Crop recommendation counts", "How often each crop was recommended", map[string]interface{}{
					"parameters": []map[string]interface{}{queryParam("days", "integer", "Look-back window in days (default: 30, max: 365)")},
					"responses":  responses(map[string]string{"200": "Counts per crop", "400": "Invalid window"}),
				}),
			},
			"/api/auth/register": map[string]interface{}{
				"post": operation("Register", "Create an account", map[string]interface{}{
					"requestBody": formBody(docField{"username", "string", true}, docField{"email", "string", true}, docField{"password", "string", true}),
					"responses":   responses(map[string]string{"201": "Account created", "400": "Invalid input", "409": "Username or email taken"}),
				}),
			},
			"/api/auth/login": map[string]interface{}{
				"post": operation("Log in", "Start a session; the token is returned and set as a cookie", map[string]interface{}{
					"requestBody": formBody(docField{"username", "string", true}, docField{"password", "string", true}),
					"responses":   responses(map[string]string{"200": "Session token", "401": "Invalid credentials"}),
				}),
			},
			"/api/auth/logout": map[string]interface{}{
				"post": operation("Log out", "End the current session", map[string]interface{}{
					"responses": responses(map[string]string{"204": "Logged out", "401": "Authentication required"}),
				}),
			},
			"/api/auth/me": map[string]interface{}{
				"get": operation("Current user", "The authenticated account", map[string]interface{}{
					"responses": responses(map[string]string{"200": "User", "401": "Authentication required"}),
				}),
			},
			"/api/diary": map[string]interface{}{
				"get": operation("List diary entries", "Newest first", map[string]interface{}{
					"parameters": paging,
					"responses":  responses(map[string]string{"200": "Diary entries", "401": "Authentication required"}),
				}),
				"post": operation("Add a diary entry", "Records an activity, expense or harvest", map[string]interface{}{
					"requestBody": formBody(
						docField{"entry_type", "string", true},
						docField{"date", "string", true},
						docField{"crop", "string", false},
						docField{"details", "string", false},
						docField{"amount", "number", false},
					),
					"responses": responses(map[string]string{"201": "Entry created", "400": "Invalid input", "401": "Authentication required"}),
				}),
			},
			"/api/diary/{id}": map[string]interface{}{
				"delete": operation("Delete a diary entry", "Only the owner may delete an entry", map[string]interface{}{
					"parameters": []map[string]interface{}{pathParam("id", "integer")},
					"responses":  responses(map[string]string{"204": "Deleted", "404": "No such entry"}),
				}),
			},
			"/api/tasks": map[string]interface{}{
				"get": operation("List tasks", "Open tasks first, then by date", map[string]interface{}{
					"parameters": paging,
					"responses":  responses(map[string]string{"200": "Tasks", "401": "Authentication required"}),
				}),
				"post": operation("Add a task", "Schedules a farm task", map[string]interface{}{
					"requestBody": formBody(
						docField{"task_name", "string", true},
						docField{"task_date", "string", true},
						docField{"task_type", "string", false},
						docField{"task_details", "string", false},
					),
					"responses": responses(map[string]string{"201": "Task created", "400": "Invalid input", "401": "Authentication required"}),
				}),
			},
			"/api/tasks/{id}/complete": map[string]interface{}{
				"post": operation("Complete a task", "Marks a task done", map[string]interface{}{
					"parameters": []map[string]interface{}{pathParam("id", "integer")},
					"responses":  responses(map[string]string{"204": "Completed", "404": "No such task"}),
				}),
			},
			"/api/tasks/{id}": map[string]interface{}{
				"delete": operation("Delete a task", "Only the owner may delete a task", map[string]interface{}{
					"parameters": []map[string]interface{}{pathParam("id", "integer")},
					"responses":  responses(map[string]string{"204": "Deleted", "404": "No such task"}),
				}),
			},
			"/api/knowledge": map[string]interface{}{
				"get": operation("List articles", "Knowledge hub index, optionally filtered by category", map[string]interface{}{
					"parameters": []map[string]interface{}{queryParam("category", "string", "Category filter")},
					"responses":  responses(map[string]string{"200": "Categories and article summaries"}),
				}),
			},
			"/api/knowledge/{slug}": map[string]interface{}{
				"get": operation("Get an article", "Full article text", map[string]interface{}{
					"parameters": []map[string]interface{}{pathParam("slug", "string")},
					"responses":  responses(map[string]string{"200": "Article", "404": "No such article"}),
				}),
			},
			"/health": map[string]interface{}{
				"get": operation("Health check", "Reports database reachability and model load time", map[string]interface{}{
					"responses": responses(map[string]string{"200": "Healthy", "503": "Database unreachable"}),
				}),
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
