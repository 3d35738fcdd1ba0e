package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apperrors "parkingsystem/internal/errors"
)

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API: error encoding response: %v", err)
	}
}

// writeError maps err to its HTTP response. Internal defects are logged
// with the request that hit them and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	httpErr, defect := apperrors.FromError(err)
	if defect {
		log.Printf("API: %s %s failed: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, httpErr.Code, errorResponse{Error: httpErr.Message})
}

// decodeJSON reads the request body into v. An empty body is accepted when
// optional is set.
func decodeJSON(r *http.Request, v interface{}, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	if err != nil {
		return apperrors.ErrBadRequest("Invalid request body")
	}
	return nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ErrBadRequest("Invalid " + name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.ErrBadRequest("Invalid " + name)
	}
	return n, nil
}
