package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterLocationRoutes 位置层级管理路由
func (r *Router) RegisterLocationRoutes(h *LocationHandler) {
	r.Handle("/admin/api/v1/rooms", h.Rooms)
	r.Handle("/admin/api/v1/rooms/", func(w http.ResponseWriter, req *http.Request) {
		h.RoomByID(w, req, strings.TrimPrefix(req.URL.Path, "/admin/api/v1/rooms/"))
	})

	r.Handle("/admin/api/v1/devices", h.Devices)
	r.Handle("/admin/api/v1/devices/", func(w http.ResponseWriter, req *http.Request) {
		h.DeviceByID(w, req, strings.TrimPrefix(req.URL.Path, "/admin/api/v1/devices/"))
	})

	r.Handle("/admin/api/v1/shelves", h.Shelves)
	r.Handle("/admin/api/v1/shelves/", func(w http.ResponseWriter, req *http.Request) {
		h.ShelfByID(w, req, strings.TrimPrefix(req.URL.Path, "/admin/api/v1/shelves/"))
	})

	r.Handle("/admin/api/v1/racks", h.Racks)
	r.Handle("/admin/api/v1/racks/", func(w http.ResponseWriter, req *http.Request) {
		h.RackByID(w, req, strings.TrimPrefix(req.URL.Path, "/admin/api/v1/racks/"))
	})

	r.Handle("/admin/api/v1/positions", h.Positions)
	r.Handle("/admin/api/v1/positions/", func(w http.ResponseWriter, req *http.Request) {
		h.PositionByID(w, req, strings.TrimPrefix(req.URL.Path, "/admin/api/v1/positions/"))
	})

	r.Handle("/admin/api/v1/storage-locations/export", h.Export)
}

// RegisterStorageRoutes 样本分配与条码校验路由
func (r *Router) RegisterStorageRoutes(h *StorageHandler) {
	r.Handle("/storage/api/v1/assignments", h.Assignments)
	r.Handle("/storage/api/v1/assignments/", func(w http.ResponseWriter, req *http.Request) {
		h.AssignmentBySampleItem(w, req, strings.TrimPrefix(req.URL.Path, "/storage/api/v1/assignments/"))
	})

	r.Handle("/storage/api/v1/samples/", func(w http.ResponseWriter, req *http.Request) {
		h.Samples(w, req, strings.TrimPrefix(req.URL.Path, "/storage/api/v1/samples/"))
	})

	r.Handle("/storage/api/v1/barcode/validate", h.ValidateBarcode)
	r.Handle("/storage/api/v1/scans", h.Scans)
}

// RegisterHealthRoutes 健康检查
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]any{"status": "ok"}))
	})
}
