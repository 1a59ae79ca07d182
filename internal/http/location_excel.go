package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"biobank-data/internal/service"
)

// StorageLocationExportHeader 存储位置导出表头
var StorageLocationExportHeader = []string{
	"Room Code",
	"Room Name",
	"Device Code",
	"Device Name",
	"Device Type",
	"Shelf Label",
	"Rack Label",
	"Rows",
	"Columns",
	"Capacity",
	"Occupied",
	"Short Code",
	"Active",
}

// GenerateStorageLocationExport 生成存储位置层级导出 Excel
// data: 每行一个 rack（或无 rack 时到 shelf/device 为止），为空时只生成表头
func GenerateStorageLocationExport(data []map[string]any) ([]byte, error) {
	f := excelize.NewFile()
	// 注意：不要在这里 defer Close()，WriteTo 需要文件保持打开

	sheetName := "Storage Locations"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range StorageLocationExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	columnWidths := []float64{12, 22, 12, 22, 14, 12, 12, 8, 8, 10, 10, 12, 8}
	for i := range StorageLocationExportHeader {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, col, col, columnWidths[i]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	keys := []string{
		"room_code", "room_name", "device_code", "device_name", "device_type",
		"shelf_label", "rack_label", "rows", "columns", "capacity", "occupied",
		"short_code", "active",
	}
	for rowIdx, item := range data {
		row := rowIdx + 2
		for col, key := range keys {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, item[key]); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write excel file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close excel file: %w", err)
	}
	return buf.Bytes(), nil
}

// Export GET /admin/api/v1/storage-locations/export
// 逐层展开 Room → Device → Shelf → Rack，每个 rack 一行；无下级时到已有层级为止
func (h *LocationHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	roomsResp, err := h.Locations.ListRooms(ctx, &service.ListRoomsRequest{})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	rows := []map[string]any{}
	for _, room := range roomsResp.Rooms {
		devices, err := h.Locations.ListDevicesForAPI(ctx, room.RoomID)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		if len(devices) == 0 {
			rows = append(rows, map[string]any{
				"room_code": room.Code,
				"room_name": room.Name,
				"active":    room.Active,
			})
			continue
		}
		for _, device := range devices {
			shelves, err := h.Locations.ListShelvesForAPI(ctx, device.DeviceID)
			if err != nil {
				writeJSON(w, http.StatusOK, Fail(err.Error()))
				return
			}
			if len(shelves) == 0 {
				rows = append(rows, map[string]any{
					"room_code":   room.Code,
					"room_name":   room.Name,
					"device_code": device.Code,
					"device_name": device.Name,
					"device_type": device.DeviceType,
					"short_code":  device.ShortCode,
					"active":      device.Active,
					"occupied":    device.Occupied,
				})
				continue
			}
			for _, shelf := range shelves {
				racks, err := h.Locations.ListRacksForAPI(ctx, shelf.ShelfID)
				if err != nil {
					writeJSON(w, http.StatusOK, Fail(err.Error()))
					return
				}
				if len(racks) == 0 {
					rows = append(rows, map[string]any{
						"room_code":   room.Code,
						"room_name":   room.Name,
						"device_code": device.Code,
						"device_name": device.Name,
						"device_type": device.DeviceType,
						"shelf_label": shelf.Label,
						"short_code":  shelf.ShortCode,
						"active":      shelf.Active,
						"occupied":    shelf.Occupied,
					})
					continue
				}
				for _, rack := range racks {
					rows = append(rows, map[string]any{
						"room_code":   room.Code,
						"room_name":   room.Name,
						"device_code": device.Code,
						"device_name": device.Name,
						"device_type": device.DeviceType,
						"shelf_label": shelf.Label,
						"rack_label":  rack.Label,
						"rows":        rack.Rows,
						"columns":     rack.Columns,
						"capacity":    rack.Capacity,
						"occupied":    rack.Occupied,
						"short_code":  rack.ShortCode,
						"active":      rack.Active,
					})
				}
			}
		}
	}

	out, err := GenerateStorageLocationExport(rows)
	if err != nil {
		h.Logger.Error("failed to generate storage location export", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to generate export"))
		return
	}

	filename := fmt.Sprintf("storage-locations-%s.xlsx", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}
