package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/voidshard/vidpipe/pkg/api/http/common"
	"github.com/voidshard/vidpipe/pkg/structs"
)

const (
	maxBodyBytes = 1 << 20
)

// writeError writes err with the status it maps to. Errors we don't recognise
// are logged and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := common.StatusCode(err)
	if code >= http.StatusInternalServerError && code != http.StatusServiceUnavailable {
		s.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("internal error")
		http.Error(w, "internal error", code)
		return
	}
	http.Error(w, err.Error(), code)
}

func writeJson(w http.ResponseWriter, code int, obj interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(obj)
}

func unmarshalQuery(w http.ResponseWriter, r *http.Request, out *structs.Query) error {
	q := r.URL.Query()

	if q.Has("limit") {
		limit, err := strconv.Atoi(q.Get("limit"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return fmt.Errorf("bad limit: %v", err)
		}
		out.Limit = limit
	}

	out.PageToken = q.Get("page_token")
	out.Owner = q.Get("owner")

	if q.Has("states") {
		out.States = []structs.Status{}
		for _, s := range q["states"] {
			st := structs.ToStatus(s)
			if st == "" {
				http.Error(w, "bad state", http.StatusBadRequest)
				return fmt.Errorf("bad state: %v", s)
			}
			out.States = append(out.States, st)
		}
	}

	out.Sanitize()
	return nil
}

// unmarshalJson reads the body of a request and attempts to unmarshal it into the given object.
// This function write an error to the writer if an error occurs, and returns the error.
func unmarshalJson(w http.ResponseWriter, r *http.Request, obj interface{}) error {
	if r.Body == nil {
		http.Error(w, "No body", http.StatusBadRequest)
		return fmt.Errorf("no body")
	}
	d := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	d.DisallowUnknownFields() // catch unwanted fields

	err := d.Decode(obj)
	if err != nil {
		// bad JSON or unrecognized json field
		http.Error(w, err.Error(), http.StatusBadRequest)
		return fmt.Errorf("bad json: %v", err)
	}

	return nil
}
