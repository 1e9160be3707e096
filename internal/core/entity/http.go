package entity

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/taibuivan/inkwell/internal/platform/apperr"
	requestutil "github.com/taibuivan/inkwell/internal/platform/request"
	"github.com/taibuivan/inkwell/internal/platform/respond"
	"github.com/taibuivan/inkwell/pkg/pagination"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/", handler.createEntity)
	router.Get("/", handler.searchEntities)
	router.Get("/sample", handler.sampleEntities)
	router.Post("/publish", handler.publishEntities)
	router.Post("/unpublish", handler.unpublishEntities)
	router.Get("/{id}", handler.getEntity)
	router.Put("/{id}", handler.updateEntity)
	router.Post("/{id}/archive", handler.archiveEntity)
	router.Post("/{id}/unarchive", handler.unarchiveEntity)
}

func (handler *Handler) createEntity(writer http.ResponseWriter, request *http.Request) {
	var payload CreateRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	created, err := handler.service.CreateEntity(request.Context(), payload)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, created)
}

func (handler *Handler) updateEntity(writer http.ResponseWriter, request *http.Request) {
	var payload UpdateRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}
	payload.ID = requestutil.Param(request, "id")

	updated, err := handler.service.UpdateEntity(request.Context(), payload)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, updated)
}

func (handler *Handler) getEntity(writer http.ResponseWriter, request *http.Request) {
	id := requestutil.Param(request, "id")

	version := -1
	if raw := request.URL.Query().Get("version"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respond.Error(writer, request, apperr.BadRequest("version must be a non-negative integer"))
			return
		}
		version = parsed
	}

	found, err := handler.service.GetEntity(request.Context(), id, version)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, found)
}

func (handler *Handler) searchEntities(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()
	filter := Filter{
		Types:        splitParam(query.Get("type")),
		AuthKeys:     splitParam(query.Get("authKey")),
		Text:         query.Get("text"),
		ReferencesID: query.Get("references"),
	}
	for _, raw := range splitParam(query.Get("status")) {
		status := Status(raw)
		if !status.Valid() {
			respond.Error(writer, request, apperr.BadRequestf("Unknown status %s", raw))
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	params := pagination.FromRequest(request)
	entities, total, err := handler.service.SearchEntities(request.Context(), filter, params.Limit, params.Offset())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Paginated(writer, entities, pagination.NewMeta(params.Page, params.Limit, total))
}

func (handler *Handler) sampleEntities(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()
	seed := query.Get("seed")

	count := pagination.DefaultLimit
	if raw := query.Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > pagination.MaxLimit {
			respond.Error(writer, request, apperr.BadRequestf("count must be between 1 and %d", pagination.MaxLimit))
			return
		}
		count = parsed
	}

	entities, err := handler.service.SampleEntities(request.Context(), seed, count)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, entities)
}

func (handler *Handler) publishEntities(writer http.ResponseWriter, request *http.Request) {
	var payload struct {
		Entities []VersionRef `json:"entities"`
	}
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	results, err := handler.service.PublishEntities(request.Context(), payload.Entities)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, results)
}

func (handler *Handler) unpublishEntities(writer http.ResponseWriter, request *http.Request) {
	var payload struct {
		IDs []string `json:"ids"`
	}
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	results, err := handler.service.UnpublishEntities(request.Context(), payload.IDs)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, results)
}

func (handler *Handler) archiveEntity(writer http.ResponseWriter, request *http.Request) {
	result, err := handler.service.ArchiveEntity(request.Context(), requestutil.Param(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, result)
}

func (handler *Handler) unarchiveEntity(writer http.ResponseWriter, request *http.Request) {
	result, err := handler.service.UnarchiveEntity(request.Context(), requestutil.Param(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, result)
}

// splitParam parses a comma-separated query parameter.
func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
