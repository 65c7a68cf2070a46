package main

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/mux"
)

// RouteDoc describes one HTTP endpoint exposed by the engine.
type RouteDoc struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description,omitempty"`
}

var routeDescriptions = map[string]string{
	"/livez":             "Liveness probe.",
	"/readyz":            "Readiness probe including journal storage and active run counts.",
	"/metrics":           "Prometheus text metrics.",
	"/catalog":           "Upgrade catalog entries, malformed ones flagged.",
	"/loadouts":          "Starting loadouts and their unlock requirements.",
	"/runs":              "Start a run and receive its run token.",
	"/runs/{id}":         "Fetch or finish a run.",
	"/runs/{id}/levelup": "Grant a level and draw an offer.",
	"/runs/{id}/choose":  "Apply one offered upgrade.",
	"/runs/{id}/decline": "Discard the pending offer.",
	"/runs/{id}/kill":    "Record an enemy kill.",
	"/runs/{id}/ws":      "Websocket stream of run snapshots that also accepts commands.",
	"/api/routes":        "This listing.",
}

// collectRouteDocs walks router and documents every path template it serves.
func collectRouteDocs(router *mux.Router) ([]RouteDoc, error) {
	byPath := make(map[string]*RouteDoc)
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, err := route.GetMethods()
		if err != nil {
			//1.- Subrouter prefixes carry no methods of their own.
			return nil
		}
		doc, ok := byPath[path]
		if !ok {
			doc = &RouteDoc{Path: path, Description: routeDescriptions[path]}
			byPath[path] = doc
		}
		doc.Methods = append(doc.Methods, methods...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	docs := make([]RouteDoc, 0, len(byPath))
	for _, doc := range byPath {
		sort.Strings(doc.Methods)
		docs = append(docs, *doc)
	}
	sort.Slice(docs, func(i, j int) bool { return strings.Compare(docs[i].Path, docs[j].Path) < 0 })
	return docs, nil
}

// registerRouteDocEndpoint serves the route listing. Call it after every other
// route is registered so the listing is complete.
func registerRouteDocEndpoint(router *mux.Router) {
	router.HandleFunc("/api/routes", func(w http.ResponseWriter, r *http.Request) {
		docs, err := collectRouteDocs(router)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(docs); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}).Methods(http.MethodGet)
}
