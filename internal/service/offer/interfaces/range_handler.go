package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"merchdash/internal/pkg/logger"
	"merchdash/internal/service/offer/application"
	"merchdash/internal/service/offer/domain"
)

const rangesPath = "/dashboard/ranges/"

// RangeHandler 提供商品范围的 JSON 管理接口。
// 响应格式与远端目录服务一致，因此另一个实例可以把它当作 catalog 使用。
type RangeHandler struct {
	service *application.RangeService
}

func NewRangeHandler(service *application.RangeService) *RangeHandler {
	return &RangeHandler{service: service}
}

func (h *RangeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+rangesPath+"{$}", h.handleList)
	mux.HandleFunc("POST "+rangesPath+"{$}", h.handleCreate)
	mux.HandleFunc("GET "+rangesPath+"{id}/{$}", h.handleGet)
	mux.HandleFunc("DELETE "+rangesPath+"{id}/{$}", h.handleDelete)
}

type errorResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *RangeHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := extractContext(r)
	ranges, err := h.service.List(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if ranges == nil {
		ranges = []*domain.Range{}
	}
	writeJSON(w, http.StatusOK, ranges)
}

func (h *RangeHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := extractContext(r)
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: domain.ErrRangeNotFound.Error()})
		return
	}
	rng, err := h.service.Get(ctx, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rng)
}

func (h *RangeHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := extractContext(r)

	var req application.CreateRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	rng, errs, err := h.service.Create(ctx, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if errs.HasErrors() {
		fields := make(map[string][]string)
		for _, fe := range errs {
			fields[fe.Field] = append(fields[fe.Field], fe.Message)
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: fields})
		return
	}
	writeJSON(w, http.StatusCreated, rng)
}

func (h *RangeHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := extractContext(r)
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: domain.ErrRangeNotFound.Error()})
		return
	}
	if err := h.service.Delete(ctx, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RangeHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrRangeNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrRangeInUse):
		statusCode = http.StatusConflict
	default:
		statusCode = http.StatusInternalServerError
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Range request failed")
	}
	writeJSON(w, statusCode, errorResponse{Error: err.Error()})
}
