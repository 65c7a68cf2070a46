package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	httpapi "hordeforge/engine/internal/http"
	"hordeforge/engine/internal/logging"
)

func TestRouteDocsListEveryEndpoint(t *testing.T) {
	handlers := httpapi.NewHandlerSet(httpapi.Options{Logger: logging.NewTestLogger()})
	router := handlers.Router()
	registerRouteDocEndpoint(router)

	req := httptest.NewRequest(http.MethodGet, "/api/routes", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var docs []RouteDoc
	if err := json.Unmarshal(rec.Body.Bytes(), &docs); err != nil {
		t.Fatalf("decode docs: %v", err)
	}
	byPath := make(map[string]RouteDoc, len(docs))
	for _, doc := range docs {
		byPath[doc.Path] = doc
	}
	run, ok := byPath["/runs/{id}"]
	if !ok {
		t.Fatalf("expected /runs/{id} in %#v", docs)
	}
	if len(run.Methods) != 2 || run.Methods[0] != http.MethodDelete || run.Methods[1] != http.MethodGet {
		t.Fatalf("expected GET and DELETE on /runs/{id}, got %v", run.Methods)
	}
	for path := range routeDescriptions {
		doc, ok := byPath[path]
		if !ok {
			t.Fatalf("route %s missing from listing", path)
		}
		if doc.Description == "" {
			t.Fatalf("route %s missing description", path)
		}
	}
}
