package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/power-analytics/internal/reading"
)

// Filter query parameters. Names are matched case-insensitively.
const (
	paramStartDate = "startdate"
	paramEndDate   = "enddate"
	paramMinValue  = "minvalue"
	paramMaxValue  = "maxvalue"
)

var filterParams = []string{paramStartDate, paramEndDate, paramMinValue, paramMaxValue}

// handleListReadings returns every reading matching the query filter.
func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	readings, err := s.service.List(r.Context(), f)
	if err != nil {
		s.storageError(w, r, "listing readings", err)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

// handleGetReading returns one reading.
func (s *Server) handleGetReading(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	dto, err := s.service.GetByID(r.Context(), id)
	if err != nil {
		s.storageError(w, r, "getting reading", err)
		return
	}
	if dto == nil {
		writeNotFound(w, msgReadingNotFound)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// handleCreateReadings stores a JSON array of readings as one batch.
// A missing body, null or an empty array is rejected before storage.
func (s *Server) handleCreateReadings(w http.ResponseWriter, r *http.Request) {
	var dtos []reading.DTO
	if err := decodeBody(r, &dtos); err != nil {
		if errors.Is(err, io.EOF) {
			writeBadRequest(w, msgNoReadings)
			return
		}
		s.bodyError(w, err)
		return
	}

	created, err := s.service.Create(r.Context(), dtos)
	if err != nil {
		if errors.Is(err, reading.ErrInvalidArgument) {
			writeBadRequest(w, msgNoReadings)
			return
		}
		s.storageError(w, r, "creating readings", err)
		return
	}

	w.Header().Set("Location", "/")
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateReading replaces the value and loggedAt of one reading.
// The body must carry the same id as the path; that is checked before
// storage is touched.
func (s *Server) handleUpdateReading(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var dto reading.DTO
	if err := decodeBody(r, &dto); err != nil {
		if errors.Is(err, io.EOF) {
			writeBadRequest(w, "request body is required")
			return
		}
		s.bodyError(w, err)
		return
	}

	if err := reading.CheckIdentity(id, dto); err != nil {
		writeBadRequest(w, fmt.Sprintf("body id does not match path id %d", id))
		return
	}

	updated, err := s.service.Update(r.Context(), dto)
	if err != nil {
		if errors.Is(err, reading.ErrInvalidArgument) {
			writeBadRequest(w, err.Error())
			return
		}
		s.storageError(w, r, "updating reading", err)
		return
	}
	if updated == nil {
		writeNotFound(w, msgReadingNotFound)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteReading removes one reading.
func (s *Server) handleDeleteReading(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	deleted, err := s.service.DeleteByID(r.Context(), id)
	if err != nil {
		s.storageError(w, r, "deleting reading", err)
		return
	}
	if !deleted {
		writeNotFound(w, msgReadingNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// storageError logs err with the request ID and writes a generic 500.
func (s *Server) storageError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Error(op+" failed",
		"error", err,
		"request_id", requestIDFrom(r.Context()),
	)
	writeInternalError(w, msgInternalError)
}

// bodyError reports a body that could not be decoded.
func (s *Server) bodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	writeBadRequest(w, "invalid JSON body: "+err.Error())
}

// decodeBody decodes a single JSON value from the request body. An empty
// body yields io.EOF.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return io.EOF
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// parseID reads the {id} path parameter, writing a 400 when it is not an
// integer.
func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeBadRequest(w, fmt.Sprintf("invalid reading id %q", raw))
		return 0, false
	}
	return id, true
}

// parseFilter builds a Filter from the query string. Parameter names are
// case-insensitive and empty values mean "no constraint". A parameter given
// more than once must repeat the same value. Unknown parameters are ignored.
func parseFilter(r *http.Request) (reading.Filter, error) {
	var f reading.Filter

	query := r.URL.Query()
	params := make(map[string]string)
	for _, key := range slices.Sorted(maps.Keys(query)) {
		name := strings.ToLower(key)
		if !slices.Contains(filterParams, name) {
			continue
		}
		for _, v := range query[key] {
			if v == "" {
				continue
			}
			if prev, ok := params[name]; ok && prev != v {
				return f, fmt.Errorf("conflicting values for %s: %q and %q", name, prev, v)
			}
			params[name] = v
		}
	}

	for name, v := range params {
		switch name {
		case paramStartDate, paramEndDate:
			t, err := reading.ParseTimestamp(v)
			if err != nil {
				return f, fmt.Errorf("invalid %s: %q", name, v)
			}
			if name == paramStartDate {
				f.StartDate = &t
			} else {
				f.EndDate = &t
			}
		case paramMinValue, paramMaxValue:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return f, fmt.Errorf("invalid %s: %q", name, v)
			}
			if name == paramMinValue {
				f.MinValue = &n
			} else {
				f.MaxValue = &n
			}
		}
	}
	return f, nil
}
