package metadatahandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/metadata-governance-backend/api"
	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/handlers"
	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// Handler serves the governance metadata REST API. Every request is made on
// behalf of the user named by the X-Metadata-User header, with the zone
// configuration of the server.
type Handler struct {
	externalIDs    *handlers.ExternalIdentifierHandler[*beans.ExternalIdentifierElement, *beans.MetadataElement]
	definitions    *handlers.GovernanceDefinitionHandler[*beans.GovernanceDefinitionElement]
	zones          *handlers.GovernanceZoneHandler[*beans.GovernanceZoneElement]
	infrastructure *handlers.ITInfrastructureHandler[*beans.InfrastructureElement]
	locations      *handlers.LocationHandler[*beans.LocationElement]
	projects       *handlers.ProjectHandler[*beans.ProjectElement]

	zoneConfig interfaces.ZoneConfig
	log        *slog.Logger
}

// NewHandler builds the bean handlers over repo.
func NewHandler(repo *handlers.RepositoryHandler, zoneConfig interfaces.ZoneConfig, log *slog.Logger) *Handler {
	return &Handler{
		externalIDs:    handlers.NewExternalIdentifierHandler(repo, beans.NewExternalIdentifierElement, beans.NewMetadataElement, log),
		definitions:    handlers.NewGovernanceDefinitionHandler(repo, beans.NewGovernanceDefinitionElement, log),
		zones:          handlers.NewGovernanceZoneHandler(repo, beans.NewGovernanceZoneElement, log),
		infrastructure: handlers.NewITInfrastructureHandler(repo, beans.NewInfrastructureElement, log),
		locations:      handlers.NewLocationHandler(repo, beans.NewLocationElement, log),
		projects:       handlers.NewProjectHandler(repo, beans.NewProjectElement, log),
		zoneConfig:     zoneConfig,
		log:            log,
	}
}

// RegisterRoutes configures the router with every /api/v1 route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		h.externalIdentifierRoutes(r)
		h.governanceDefinitionRoutes(r)
		h.governanceZoneRoutes(r)
		h.infrastructureRoutes(r)
		h.locationRoutes(r)
		h.projectRoutes(r)
	})
}

// caller builds the caller for r from its headers.
func (h *Handler) caller(r *http.Request) (interfaces.Caller, error) {
	caller := interfaces.NewCaller(r.Header.Get(api.UserHeader), h.zoneConfig)
	if asOf := r.Header.Get(api.AsOfHeader); asOf != "" {
		t, err := time.Parse(time.RFC3339, asOf)
		if err != nil {
			return caller, fmt.Errorf("%w: %s must be an RFC 3339 time: %w", interfaces.ErrInvalidParameter, api.AsOfHeader, err)
		}
		caller = caller.AsOf(t)
	}
	return caller, caller.Validate()
}

func queryInt(r *http.Request, name string) (int64, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", interfaces.ErrInvalidParameter, name, value)
	}
	return n, nil
}

func paging(r *http.Request) (interfaces.Paging, error) {
	startFrom, err := queryInt(r, "startFrom")
	if err != nil {
		return interfaces.Paging{}, err
	}
	pageSize, err := queryInt(r, "pageSize")
	if err != nil {
		return interfaces.Paging{}, err
	}
	return interfaces.Paging{StartFrom: int(startFrom), PageSize: int(pageSize)}, nil
}

// merge reports whether an update merges into the stored properties. Updates
// merge unless ?merge=false.
func merge(r *http.Request) bool {
	return r.URL.Query().Get("merge") != "false"
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", interfaces.ErrInvalidParameter, err)
	}
	return nil
}

// decodeOptional decodes the body into v when there is one.
func decodeOptional(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return decode(r, v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrUserNotAuthorized):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "err", err, slog.String("path", r.URL.Path))
	} else {
		h.log.Debug("Request rejected", "err", err, slog.String("path", r.URL.Path), slog.Int("status", status))
	}
	h.writeJSON(w, status, api.ErrorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

// serve runs fn with the request's caller and writes its result as JSON.
func serve[T any](h *Handler, fn func(r *http.Request, caller interfaces.Caller) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := h.caller(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		out, err := fn(r, caller)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, out)
	}
}

// serveCreated is serve for operations returning the GUID of what they
// created.
func serveCreated(h *Handler, fn func(r *http.Request, caller interfaces.Caller) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := h.caller(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		guid, err := fn(r, caller)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusCreated, api.GUIDResponse{GUID: guid})
	}
}

// serveNoContent is serve for operations without a result.
func serveNoContent(h *Handler, fn func(r *http.Request, caller interfaces.Caller) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := h.caller(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if err := fn(r, caller); err != nil {
			h.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// list is serve for paged queries.
func list[T any](h *Handler, fn func(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]T, error)) http.HandlerFunc {
	return serve(h, func(r *http.Request, caller interfaces.Caller) ([]T, error) {
		p, err := paging(r)
		if err != nil {
			return nil, err
		}
		return fn(r, caller, p)
	})
}

// linkRequest decodes the optional relationship properties of r.
func linkRequest(r *http.Request) (api.LinkRequest, error) {
	var req api.LinkRequest
	err := decodeOptional(r, &req)
	return req, err
}
