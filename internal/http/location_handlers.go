package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"biobank-data/internal/domain"
	"biobank-data/internal/service"
	"biobank-data/internal/store"
)

const capacityCacheTTL = 30 * time.Second

// LocationHandler 存储位置层级管理 API
type LocationHandler struct {
	Locations service.LocationService
	Cache     store.KV
	Logger    *zap.Logger
}

func NewLocationHandler(locations service.LocationService, cache store.KV, logger *zap.Logger) *LocationHandler {
	return &LocationHandler{
		Locations: locations,
		Cache:     cache,
		Logger:    logger,
	}
}

// ============================================
// Room
// ============================================

func (h *LocationHandler) Rooms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		resp, err := h.Locations.ListRooms(r.Context(), &service.ListRoomsRequest{
			Search:     r.URL.Query().Get("search"),
			ActiveOnly: r.URL.Query().Get("active_only") == "true",
			Page:       parseInt(r.URL.Query().Get("page"), 0),
			Size:       parseInt(r.URL.Query().Get("size"), 0),
		})
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(resp))
	case http.MethodPost:
		var req service.CreateRoomRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusOK, Fail("invalid request body"))
			return
		}
		room, err := h.Locations.CreateRoom(r.Context(), &req)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(room))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *LocationHandler) RoomByID(w http.ResponseWriter, r *http.Request, idStr string) {
	roomID, ok := parseInt64(idStr)
	if !ok {
		writeJSON(w, http.StatusOK, Fail("invalid room id"))
		return
	}
	switch r.Method {
	case http.MethodGet:
		room, err := h.Locations.GetRoom(r.Context(), roomID)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(room))
	case http.MethodPut:
		var req service.UpdateRoomRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusOK, Fail("invalid request body"))
			return
		}
		room, err := h.Locations.UpdateRoom(r.Context(), roomID, &req)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(room))
	case http.MethodDelete:
		if err := h.Locations.DeleteRoom(r.Context(), roomID); err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"deleted": true}))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ============================================
// Device
// ============================================

func (h *LocationHandler) Devices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		roomID, _ := parseInt64(r.URL.Query().Get("room_id"))
		views, err := h.Locations.ListDevicesForAPI(r.Context(), roomID)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(views))
	case http.MethodPost:
		var req service.CreateDeviceRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusOK, Fail("invalid request body"))
			return
		}
		device, err := h.Locations.CreateDevice(r.Context(), &req)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		h.invalidateCapacity(r, domain.LocationTypeDevice, device.DeviceID)
		writeJSON(w, http.StatusOK, Ok(device))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// DeviceByID 处理 /devices/{id} 与 /devices/{id}/capacity
func (h *LocationHandler) DeviceByID(w http.ResponseWriter, r *http.Request, rest string) {
	idStr, sub, _ := strings.Cut(rest, "/")
	deviceID, ok := parseInt64(idStr)
	if !ok {
		writeJSON(w, http.StatusOK, Fail("invalid device id"))
		return
	}
	if sub == "capacity" {
		h.capacity(w, r, domain.LocationRef{Type: domain.LocationTypeDevice, ID: deviceID})
		return
	}
	if sub != "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		device, err := h.Locations.GetDevice(r.Context(), deviceID)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(device))
	case http.MethodPut:
		var req service.UpdateDeviceRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusOK, Fail("invalid request body"))
			return
		}
		device, warning, err := h.Locations.UpdateDevice(r.Context(), deviceID, &req)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		h.invalidateCapacity(r, domain.LocationTypeDevice, deviceID)
		writeJSON(w, http.StatusOK, OkWithWarning(device, warning))
	case http.MethodDelete:
		if err := h.Locations.DeleteDevice(r.Context(), deviceID); err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		h.invalidateCapacity(r, domain.LocationTypeDevice, deviceID)
		writeJSON(w, http.StatusOK, Ok(map[string]any{"deleted": true}))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ============================================
// Shelf
// ============================================

func (h *LocationHandler) Shelves(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		deviceID, _ := parseInt64(r.URL.Query().Get("device_id"))
		views, err := h.Locations.ListShelvesForAPI(r.Context(), deviceID)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(views))
	case http.MethodPost:
		var req service.CreateShelfRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusOK, Fail("invalid request body"))
			return
		}
		shelf, err := h.Locations.CreateShelf(r.Context(), &req)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		h.invalidateCapacity(r, domain.LocationTypeDevice, shelf.DeviceID)
		writeJSON(w, http.StatusOK, Ok(shelf))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *LocationHandler) ShelfByID(w http.ResponseWriter, r *http.Request, rest string) {
	idStr, sub, _ := strings.Cut(rest, "/")
	shelfID, ok := parseInt64(idStr)
	if !ok {
		writeJSON(w, http.StatusOK, Fail("invalid shelf id"))
		return
	}
	if sub == "capacity" {
		h.capacity(w, r, domain.LocationRef{Type: domain.LocationTypeShelf, ID: shelfID})
		return
	}
	if sub != "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		shelf, err := h.Locations.GetShelf(r.Context(), shelfID)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(shelf))
	case http.MethodPut:
		var req service.UpdateShelfRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusOK, Fail("invalid request body"))
			return
		}
		shelf, warning, err := h.Locations.UpdateShelf(r.Context(), shelfID, &req)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		h.invalidateCapacity(r, domain.LocationTypeShelf, shelfID)
		h.invalidateCapacity(r, domain.LocationTypeDevice, shelf.DeviceID)
		writeJSON(w, http.StatusOK, OkWithWarning(shelf, warning))
	case http.MethodDelete:
		shelf, err := h.Locations.GetShelf(r.Context(), shelfID)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		if err := h.Locations.DeleteShelf(r.Context(), shelfID); err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		h.invalidateCapacity(r, domain.LocationTypeShelf, shelfID)
		h.invalidateCapacity(r, domain.LocationTypeDevice, shelf.DeviceID)
		writeJSON(w, http.StatusOK, Ok(map[string]any{"deleted": true}))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ============================================
// Rack / Position
// ============================================

func (h *LocationHandler) Racks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		shelfID, _ := parseInt64(r.URL.Query().Get("shelf_id"))
		views, err := h.Locations.ListRacksForAPI(r.Context(), shelfID)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(views))
	case http.MethodPost:
		var req service.CreateRackRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusOK, Fail("invalid request body"))
			return
		}
		rack, err := h.Locations.CreateRack(r.Context(), &req)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		h.invalidateCapacity(r, domain.LocationTypeShelf, rack.ShelfID)
		writeJSON(w, http.StatusOK, Ok(rack))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *LocationHandler) RackByID(w http.ResponseWriter, r *http.Request, rest string) {
	idStr, sub, _ := strings.Cut(rest, "/")
	rackID, ok := parseInt64(idStr)
	if !ok {
		writeJSON(w, http.StatusOK, Fail("invalid rack id"))
		return
	}
	switch sub {
	case "capacity":
		h.capacity(w, r, domain.LocationRef{Type: domain.LocationTypeRack, ID: rackID})
		return
	case "positions":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		positions, err := h.Locations.ListPositions(r.Context(), rackID)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(positions))
		return
	case "":
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rack, err := h.Locations.GetRack(r.Context(), rackID)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(rack))
	case http.MethodPut:
		var req service.UpdateRackRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusOK, Fail("invalid request body"))
			return
		}
		rack, warning, err := h.Locations.UpdateRack(r.Context(), rackID, &req)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		h.invalidateCapacity(r, domain.LocationTypeRack, rackID)
		h.invalidateCapacity(r, domain.LocationTypeShelf, rack.ShelfID)
		writeJSON(w, http.StatusOK, OkWithWarning(rack, warning))
	case http.MethodDelete:
		rack, err := h.Locations.GetRack(r.Context(), rackID)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		if err := h.Locations.DeleteRack(r.Context(), rackID); err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		h.invalidateCapacity(r, domain.LocationTypeRack, rackID)
		h.invalidateCapacity(r, domain.LocationTypeShelf, rack.ShelfID)
		writeJSON(w, http.StatusOK, Ok(map[string]any{"deleted": true}))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *LocationHandler) Positions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rackID, _ := parseInt64(r.URL.Query().Get("rack_id"))
		positions, err := h.Locations.ListPositions(r.Context(), rackID)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(positions))
	case http.MethodPost:
		var req service.CreatePositionRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusOK, Fail("invalid request body"))
			return
		}
		position, err := h.Locations.CreatePosition(r.Context(), &req)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(position))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *LocationHandler) PositionByID(w http.ResponseWriter, r *http.Request, idStr string) {
	positionID, ok := parseInt64(idStr)
	if !ok {
		writeJSON(w, http.StatusOK, Fail("invalid position id"))
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := h.Locations.DeletePosition(r.Context(), positionID); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"deleted": true}))
}

// ============================================
// 容量查询（带 Redis 缓存）
// ============================================

func capacityCacheKey(ref domain.LocationRef) string {
	return fmt.Sprintf("capacity:%s:%d", ref.Type, ref.ID)
}

func (h *LocationHandler) capacity(w http.ResponseWriter, r *http.Request, ref domain.LocationRef) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	key := capacityCacheKey(ref)
	if h.Cache != nil {
		if cached, err := h.Cache.Get(r.Context(), key); err == nil {
			var info service.CapacityInfo
			if json.Unmarshal([]byte(cached), &info) == nil {
				writeJSON(w, http.StatusOK, Ok(&info))
				return
			}
		}
	}

	info, err := h.Locations.CalculateCapacity(r.Context(), ref)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	if h.Cache != nil {
		if raw, err := json.Marshal(info); err == nil {
			if err := h.Cache.Set(r.Context(), key, string(raw), capacityCacheTTL); err != nil {
				h.Logger.Warn("failed to cache capacity", zap.String("key", key), zap.Error(err))
			}
		}
	}
	writeJSON(w, http.StatusOK, Ok(info))
}

// invalidateCapacity 位置结构变更后尽力清缓存，失败只记日志
func (h *LocationHandler) invalidateCapacity(r *http.Request, locationType domain.LocationType, id int64) {
	if h.Cache == nil {
		return
	}
	key := capacityCacheKey(domain.LocationRef{Type: locationType, ID: id})
	if err := h.Cache.Delete(r.Context(), key); err != nil {
		h.Logger.Warn("failed to invalidate capacity cache", zap.String("key", key), zap.Error(err))
	}
}
