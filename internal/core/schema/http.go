package schema

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/taibuivan/inkwell/internal/platform/request"
	"github.com/taibuivan/inkwell/internal/platform/respond"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/", handler.getSpecification)
	router.Put("/", handler.updateSpecification)
}

func (handler *Handler) getSpecification(writer http.ResponseWriter, request *http.Request) {
	spec, err := handler.service.GetSpecification(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, spec)
}

func (handler *Handler) updateSpecification(writer http.ResponseWriter, request *http.Request) {
	var update Spec
	if err := requestutil.DecodeJSON(request, &update); err != nil {
		respond.Error(writer, request, err)
		return
	}

	spec, err := handler.service.UpdateSpecification(request.Context(), update)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, spec)
}
