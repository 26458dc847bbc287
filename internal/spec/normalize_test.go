package spec

import (
	"encoding/json"
	"strings"
	"testing"
)

const petstoreV2JSON = `{
  "swagger": "2.0",
  "info": {"title": "Swagger Petstore", "version": "1.0.6", "description": "Sample server"},
  "host": "petstore.swagger.io",
  "basePath": "/v2",
  "schemes": ["https", "http"],
  "paths": {
    "/pet": {
      "post": {
        "tags": ["pet"], "summary": "Add a new pet to the store", "operationId": "addPet",
        "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/Pet"}}],
        "responses": {"405": {"description": "Invalid input"}}
      },
      "put": {
        "tags": ["pet"], "summary": "Update an existing pet", "operationId": "updatePet",
        "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/Pet"}}],
        "responses": {"400": {"description": "Invalid ID supplied"}}
      }
    },
    "/pet/findByStatus": {
      "get": {
        "tags": ["pet"], "summary": "Finds Pets by status", "operationId": "findPetsByStatus",
        "parameters": [{"name": "status", "in": "query", "required": true, "type": "array", "items": {"type": "string"}}],
        "responses": {"200": {"description": "successful operation", "schema": {"type": "array", "items": {"$ref": "#/definitions/Pet"}}}}
      }
    },
    "/pet/{petId}": {
      "parameters": [{"$ref": "#/parameters/petId"}],
      "get": {
        "tags": ["pet"], "summary": "Find pet by ID", "description": "Returns a single pet", "operationId": "getPetById",
        "responses": {"200": {"description": "successful operation", "schema": {"$ref": "#/definitions/Pet"}}, "404": {"description": "Pet not found"}}
      },
      "post": {
        "tags": ["pet"], "operationId": "updatePetWithForm",
        "parameters": [
          {"name": "name", "in": "formData", "required": false, "type": "string"},
          {"name": "status", "in": "formData", "required": false, "type": "string"}
        ],
        "responses": {"405": {"description": "Invalid input"}}
      },
      "delete": {
        "tags": ["pet"], "summary": "Deletes a pet", "operationId": "deletePet",
        "parameters": [{"name": "api_key", "in": "header", "required": false, "type": "string"}],
        "responses": {"404": {"description": "Pet not found"}}
      }
    }
  },
  "parameters": {
    "petId": {"name": "petId", "in": "path", "description": "ID of pet", "required": true, "type": "integer", "format": "int64"}
  },
  "definitions": {
    "Pet": {"type": "object", "required": ["name"], "properties": {"id": {"type": "integer"}, "name": {"type": "string"}}}
  }
}`

const usersV3YAML = `openapi: 3.0.3
info:
  title: Users API
  version: "2.1.0"
servers:
  - url: https://api.example.com/v1
  - url: https://staging.example.com/v1
paths:
  /users:
    parameters:
      - in: query
        name: limit
        required: false
        schema:
          type: integer
    get:
      operationId: listUsers
      summary: List users
      tags: [users]
      parameters:
        - in: query
          name: limit
          required: true
          description: page size
          schema:
            type: integer
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: array
                items:
                  $ref: '#/components/schemas/User'
    post:
      operationId: createUser
      tags: [users, write]
      requestBody:
        required: true
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/User'
      responses:
        "201":
          description: created
  /admin/audit:
    get:
      operationId: audit
      summary: Audit log
      tags: [admin]
      responses:
        "200": { description: ok }
  /users/{id}:
    get:
      operationId: getUser
      parameters:
        - in: path
          name: id
          required: true
          schema: { type: string }
      responses:
        "200": { description: ok }
    head:
      responses:
        "200": { description: ok }
components:
  schemas:
    User:
      type: object
      properties:
        email: { type: string }
`

func parse(t *testing.T, raw string, opts ...BuildOption) *Document {
	t.Helper()
	doc, err := Parse([]byte(raw), "test", opts...)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func keys(doc *Document) []string {
	out := make([]string, 0, len(doc.Endpoints))
	for _, ep := range doc.Endpoints {
		out = append(out, ep.Key())
	}
	return out
}

func TestParse_SwaggerV2Petstore(t *testing.T) {
	t.Parallel()
	doc := parse(t, petstoreV2JSON)

	if doc.Title != "Swagger Petstore" || doc.Version != "1.0.6" {
		t.Fatalf("info: got %q %q", doc.Title, doc.Version)
	}
	if doc.SpecVersion != SwaggerV2 {
		t.Fatalf("spec version: got %q", doc.SpecVersion)
	}
	if doc.BaseURL != "https://petstore.swagger.io/v2" {
		t.Fatalf("base url: got %q", doc.BaseURL)
	}
	want := []string{"POST /pet", "PUT /pet", "GET /pet/findByStatus", "GET /pet/{petId}", "POST /pet/{petId}", "DELETE /pet/{petId}"}
	if got := keys(doc); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("endpoints:\n got %v\nwant %v", got, want)
	}

	ep, ok := doc.Find("/pet/{petId}", GET)
	if !ok {
		t.Fatalf("GET /pet/{petId} missing")
	}
	if len(ep.Parameters) != 1 || ep.Parameters[0].Name != "petId" || ep.Parameters[0].Location != InPath || !ep.Parameters[0].Required {
		t.Fatalf("path-level $ref parameter not resolved: %+v", ep.Parameters)
	}
	var schema map[string]any
	if err := ep.Parameters[0].Schema.Decode(&schema); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	if schema["type"] != "integer" || schema["format"] != "int64" {
		t.Fatalf("inline type keywords not kept as schema: %v", schema)
	}
	if _, has := schema["name"]; has {
		t.Fatalf("parameter identity leaked into schema: %v", schema)
	}
	if ep.Responses["404"].Description != "Pet not found" {
		t.Fatalf("responses: %+v", ep.Responses)
	}
	if !strings.Contains(ep.Responses["200"].Content.String(), "#/definitions/Pet") {
		t.Fatalf("response schema missing: %s", ep.Responses["200"].Content)
	}

	add, _ := doc.Find("/pet", POST)
	if len(add.Parameters) != 1 || add.Parameters[0].Location != InBody {
		t.Fatalf("body parameter: %+v", add.Parameters)
	}
	if add.RequestBody != nil {
		t.Fatalf("swagger 2.0 carries bodies as parameters, got request body %s", add.RequestBody)
	}

	form, _ := doc.Find("/pet/{petId}", POST)
	if len(form.Parameters) != 3 {
		t.Fatalf("expected path param plus two form fields, got %+v", form.Parameters)
	}
	if form.Parameters[1].Location != InFormData {
		t.Fatalf("form location: %q", form.Parameters[1].Location)
	}
	if form.Summary != NoDescription || form.Description != NoDescription {
		t.Fatalf("missing summary/description should use the sentinel, got %q / %q", form.Summary, form.Description)
	}
}

func TestParse_OpenAPIV3(t *testing.T) {
	t.Parallel()
	doc := parse(t, usersV3YAML)

	if doc.SpecVersion != "OpenAPI 3.0" {
		t.Fatalf("spec version: got %q", doc.SpecVersion)
	}
	if doc.BaseURL != "https://api.example.com/v1" {
		t.Fatalf("base url should be the first server, got %q", doc.BaseURL)
	}
	want := []string{"GET /users", "POST /users", "GET /admin/audit", "GET /users/{id}"}
	if got := keys(doc); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("endpoints (head skipped, document order kept):\n got %v\nwant %v", got, want)
	}

	list, _ := doc.Find("/users", GET)
	if len(list.Parameters) != 1 {
		t.Fatalf("path-level and operation-level limit should merge, got %+v", list.Parameters)
	}
	if !list.Parameters[0].Required || list.Parameters[0].Description != "page size" {
		t.Fatalf("operation-level parameter should win: %+v", list.Parameters[0])
	}

	create, _ := doc.Find("/users", POST)
	var body struct {
		Required bool `json:"required"`
	}
	if err := create.RequestBody.Decode(&body); err != nil || !body.Required {
		t.Fatalf("request body: %s (%v)", create.RequestBody, err)
	}
	if create.Responses["201"].Description != "created" {
		t.Fatalf("responses: %+v", create.Responses)
	}
}

func TestParse_NoServersMeansEmptyBaseURL(t *testing.T) {
	t.Parallel()
	doc := parse(t, `{"openapi":"3.1.0","info":{"title":"t","version":"1"},"paths":{}}`)
	if doc.BaseURL != "" {
		t.Fatalf("expected empty base url, got %q", doc.BaseURL)
	}
	if doc.SpecVersion != "OpenAPI 3.1" {
		t.Fatalf("spec version: %q", doc.SpecVersion)
	}
	if len(doc.Endpoints) != 0 {
		t.Fatalf("expected no endpoints")
	}
}

func TestParse_V2DefaultsSchemeToHTTP(t *testing.T) {
	t.Parallel()
	doc := parse(t, `{"swagger":"2.0","info":{"title":"t","version":"1"},"host":"h.example","basePath":"/api","paths":{}}`)
	if doc.BaseURL != "http://h.example/api" {
		t.Fatalf("base url: got %q", doc.BaseURL)
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		raw  string
		code ErrorCode
	}{
		{"missing info", `{"swagger":"2.0","paths":{}}`, ParseError},
		{"neither family", `{"info":{"title":"t","version":"1"},"paths":{}}`, UnsupportedSpec},
		{"not an object", `[1, 2, 3]`, ParseError},
		{"garbage", "key: [unclosed", ParseError},
		{"empty", "  \n", ParseError},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tc.raw), "inline")
			if !IsCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestParse_Filters(t *testing.T) {
	t.Parallel()
	doc := parse(t, usersV3YAML, WithExcludeTags([]string{"admin"}), WithMethods([]HttpMethod{GET}))
	want := []string{"GET /users", "GET /users/{id}"}
	if got := keys(doc); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v want %v", got, want)
	}

	doc = parse(t, usersV3YAML, WithIncludeTags([]string{"write"}))
	if got := keys(doc); len(got) != 1 || got[0] != "POST /users" {
		t.Fatalf("include tags: got %v", got)
	}

	doc = parse(t, usersV3YAML, WithPathPatterns([]string{`^/admin`, `(`}))
	if got := keys(doc); len(got) != 1 || got[0] != "GET /admin/audit" {
		t.Fatalf("path patterns: got %v", got)
	}
}

func TestDocument_JSONRoundTrip(t *testing.T) {
	t.Parallel()
	doc := parse(t, petstoreV2JSON)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Document
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	again, err := json.Marshal(&back)
	if err != nil {
		t.Fatalf("marshal again: %v", err)
	}
	first, _ := json.Marshal(doc)
	if string(first) != string(again) {
		t.Fatalf("round trip changed the document:\n%s\n%s", first, again)
	}
}
