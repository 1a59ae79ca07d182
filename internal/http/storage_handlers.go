package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"biobank-data/internal/scanner"
	"biobank-data/internal/service"
)

// StorageHandler 样本分配/移动/处置与条码校验 API
type StorageHandler struct {
	Storage   service.StorageService
	Validator service.BarcodeValidator
	Scanner   *scanner.ScannerGateway
	Logger    *zap.Logger
}

func NewStorageHandler(
	storage service.StorageService,
	validator service.BarcodeValidator,
	gateway *scanner.ScannerGateway,
	logger *zap.Logger,
) *StorageHandler {
	return &StorageHandler{
		Storage:   storage,
		Validator: validator,
		Scanner:   gateway,
		Logger:    logger,
	}
}

// writeServiceError 乐观锁冲突返回 409，其余业务错误走统一 Fail 包装
func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrLocationConflict) {
		writeJSON(w, http.StatusConflict, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Fail(err.Error()))
}

// Assignments POST /storage/api/v1/assignments
func (h *StorageHandler) Assignments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req service.AssignRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}
	resp, err := h.Storage.Assign(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OkWithWarning(resp, resp.CapacityWarning))
}

// AssignmentBySampleItem PUT（移动）/ PATCH（仅改坐标/备注） /storage/api/v1/assignments/{sampleItemID}
func (h *StorageHandler) AssignmentBySampleItem(w http.ResponseWriter, r *http.Request, idStr string) {
	sampleItemID, ok := parseInt64(idStr)
	if !ok {
		writeJSON(w, http.StatusOK, Fail("invalid sample item id"))
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req service.MoveRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusOK, Fail("invalid request body"))
			return
		}
		req.SampleItemID = sampleItemID
		resp, err := h.Storage.Move(r.Context(), &req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, OkWithWarning(resp, resp.CapacityWarning))
	case http.MethodPatch:
		var req service.UpdateMetadataRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusOK, Fail("invalid request body"))
			return
		}
		req.SampleItemID = sampleItemID
		if err := h.Storage.UpdateMetadata(r.Context(), &req); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"updated": true}))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Samples 处理 /storage/api/v1/samples/{id}/{location|movements|dispose}
func (h *StorageHandler) Samples(w http.ResponseWriter, r *http.Request, rest string) {
	idStr, sub, _ := strings.Cut(rest, "/")
	sampleItemID, ok := parseInt64(idStr)
	if !ok {
		writeJSON(w, http.StatusOK, Fail("invalid sample item id"))
		return
	}

	switch sub {
	case "location":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		resp, err := h.Storage.GetSampleLocation(r.Context(), sampleItemID)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(resp))
	case "movements":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		movements, err := h.Storage.ListMovements(r.Context(), sampleItemID)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		out := make([]map[string]any, 0, len(movements))
		for _, m := range movements {
			out = append(out, map[string]any{
				"movement_id":              m.MovementID,
				"sample_item_id":           m.SampleItemID,
				"prev_location_id":         nullInt64JSON(m.PrevLocationID),
				"prev_location_type":       nullStringJSON(m.PrevLocationType),
				"prev_position_coordinate": nullStringJSON(m.PrevPositionCoordinate),
				"new_location_id":          nullInt64JSON(m.NewLocationID),
				"new_location_type":        nullStringJSON(m.NewLocationType),
				"new_position_coordinate":  nullStringJSON(m.NewPositionCoordinate),
				"reason":                   nullStringJSON(m.Reason),
				"moved_by_user_id":         nullInt64JSON(m.MovedByUserID),
				"movement_date":            nullTimeJSON(m.MovementDate),
			})
		}
		writeJSON(w, http.StatusOK, Ok(out))
	case "dispose":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req service.DisposeRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusOK, Fail("invalid request body"))
			return
		}
		req.SampleItemID = sampleItemID
		if err := h.Storage.Dispose(r.Context(), &req); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"disposed": true}))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ValidateBarcode POST /storage/api/v1/barcode/validate
func (h *StorageHandler) ValidateBarcode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Barcode string `json:"barcode"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}
	result, err := h.Validator.Validate(r.Context(), req.Barcode)
	if err != nil {
		h.Logger.Error("barcode validation failed", zap.String("barcode", req.Barcode), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("barcode validation failed"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// Scans POST /storage/api/v1/scans 扫码枪批量上报
func (h *StorageHandler) Scans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("failed to read request body"))
		return
	}
	outcomes, err := h.Scanner.HandleMessage(r.Context(), body)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(outcomes))
}
