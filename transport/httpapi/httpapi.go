// Package httpapi adapts gateway.Gateway to HTTP/JSON (SPEC_FULL.md §2, §4.5),
// grounded on saurabh1e-entgo-microservices' chi-based gateway router: a POST
// endpoint decodes {query, variables, operationName}, runs it through the
// gateway, and writes back either a single JSON response or, when the
// operation produced subsequent results, a multipart/mixed stream of
// incremental payloads.
package httpapi

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	coregraphql "github.com/stitchgql/federate/graphql"
	"github.com/stitchgql/federate/gateway"
	"github.com/stitchgql/federate/internal/logging"
)

// Handler serves one Gateway over HTTP.
type Handler struct {
	gw  *gateway.Gateway
	log logging.Logger
}

// NewHandler builds a Handler over gw. A nil log installs a no-op logger.
func NewHandler(gw *gateway.Gateway, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop{}
	}
	return &Handler{gw: gw, log: log}
}

// Router builds a chi.Router exposing the handler at POST /graphql, with
// permissive CORS suitable for a browser-based GraphQL client.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))
	r.Options("/graphql", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Post("/graphql", h.ServeHTTP)
	return r
}

type requestBody struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

type responseBody struct {
	Data   map[string]interface{} `json:"data,omitempty"`
	Errors []wireError            `json:"errors,omitempty"`
}

type wireError struct {
	Message string        `json:"message"`
	Path    []interface{} `json:"path,omitempty"`
}

func toWireErrors(errs []*coregraphql.Error) []wireError {
	if len(errs) == 0 {
		return nil
	}
	out := make([]wireError, 0, len(errs))
	for _, e := range errs {
		out = append(out, wireError{Message: e.Message, Path: e.Path})
	}
	return out
}

// ServeHTTP implements the entry point over HTTP/JSON.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		http.Error(w, "request must include a query", http.StatusBadRequest)
		return
	}

	var body requestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.gw.Execute(r.Context(), gateway.Request{
		Query:         body.Query,
		OperationName: body.OperationName,
		Variables:     body.Variables,
	})
	if err != nil {
		h.writeJSON(w, http.StatusOK, responseBody{Errors: toWireErrors([]*coregraphql.Error{coregraphql.WrapError(err, nil)})})
		return
	}

	if !resp.HasNext || resp.Subsequent == nil {
		h.writeJSON(w, http.StatusOK, responseBody{Data: resp.Data, Errors: toWireErrors(resp.Errors)})
		return
	}

	h.streamMultipart(w, r, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body responseBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn("httpapi: failed writing response", "error", err)
	}
}

// streamMultipart writes resp's initial payload followed by every subsequent
// payload from resp.Subsequent as a multipart/mixed stream, the convention
// used by incremental-delivery GraphQL clients for @defer/@stream and
// subscription responses (SPEC_FULL.md §4.4).
func (h *Handler) streamMultipart(w http.ResponseWriter, r *http.Request, resp *gateway.Response) {
	mw := multipart.NewWriter(w)
	defer mw.Close()

	w.Header().Set("Content-Type", fmt.Sprintf("multipart/mixed; boundary=%s", mw.Boundary()))
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	writePart := func(v interface{}) bool {
		part, err := mw.CreatePart(map[string][]string{"Content-Type": {"application/json"}})
		if err != nil {
			h.log.Warn("httpapi: failed creating multipart part", "error", err)
			return false
		}
		if err := json.NewEncoder(part).Encode(v); err != nil {
			h.log.Warn("httpapi: failed encoding multipart part", "error", err)
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	if !writePart(responseBody{Data: resp.Data, Errors: toWireErrors(resp.Errors)}) {
		return
	}

	ctx := r.Context()
	for {
		payload, ok, err := resp.Subsequent.Next(ctx)
		if err != nil {
			h.log.Warn("httpapi: subsequent stream error", "error", err)
			return
		}
		if !ok {
			return
		}
		if !writePart(payload) {
			return
		}
		if !payload.HasNext {
			return
		}
	}
}
