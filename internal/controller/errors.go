package controller

import (
    "encoding/json"
    "errors"
    "net/http"

    "github.com/local/tableminer/internal/docstore"
    "github.com/local/tableminer/internal/pagerange"
    "github.com/local/tableminer/internal/registry"
)

// errorBody is the JSON error envelope for every non-2xx response.
type errorBody struct {
    Error  string `json:"error"`
    Detail string `json:"detail,omitempty"`
    // PagesLeft accompanies quota_exceeded so the client can show the
    // user what remains.
    PagesLeft *int `json:"pages_left,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, detail string) {
    writeJSON(w, status, errorBody{Error: code, Detail: detail})
}

// writeTaxonomyErr maps the domain error taxonomy onto HTTP statuses.
func writeTaxonomyErr(w http.ResponseWriter, err error, pagesLeft int) {
    switch {
    case errors.Is(err, pagerange.ErrInvalidRange):
        writeErr(w, http.StatusBadRequest, "invalid_range", err.Error())
    case errors.Is(err, pagerange.ErrOutOfBounds):
        writeErr(w, http.StatusBadRequest, "out_of_bounds", err.Error())
    case errors.Is(err, pagerange.ErrQuotaExceeded):
        writeJSON(w, http.StatusForbidden, errorBody{Error: "quota_exceeded", Detail: err.Error(), PagesLeft: &pagesLeft})
    case errors.Is(err, registry.ErrConflict):
        writeErr(w, http.StatusConflict, "conflict", "a job is already running for this document; poll /status instead of resubmitting")
    case errors.Is(err, docstore.ErrNotFound):
        writeErr(w, http.StatusNotFound, "not_found", err.Error())
    case errors.Is(err, docstore.ErrNotPDF):
        writeErr(w, http.StatusBadRequest, "not_pdf", err.Error())
    default:
        writeErr(w, http.StatusInternalServerError, "extraction_failure", err.Error())
    }
}
