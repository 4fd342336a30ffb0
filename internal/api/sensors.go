package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-onewire/internal/ds18x"
	"github.com/nerrad567/gray-logic-onewire/internal/onewire"
)

// ChannelSensorReading is the WebSocket channel carrying every reading.
// SensorChannel narrows it to one sensor.
const ChannelSensorReading = "sensor.reading"

// SensorChannel returns the channel carrying readings of the named sensor
// only, e.g. "sensor.reading/boiler".
func SensorChannel(name string) string {
	return ChannelSensorReading + "/" + name
}

// SensorView is the JSON form of a sensor record.
type SensorView struct {
	Address     string       `json:"address"`
	Name        string       `json:"name"`
	Family      string       `json:"family"`
	Temperature *float64     `json:"temperature"`
	Value       string       `json:"value,omitempty"`
	Source      ds18x.Source `json:"source"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   *time.Time   `json:"updated_at,omitempty"`
}

// newSensorView converts a record. A sensor that has never been read has a
// null temperature rather than the disconnected sentinel.
func newSensorView(rec ds18x.Record) SensorView {
	v := SensorView{
		Address:   rec.Address.String(),
		Name:      rec.Name,
		Family:    fmt.Sprintf("%02X", rec.Address.Family()),
		Value:     rec.Formatted(),
		Source:    rec.Source,
		CreatedAt: rec.CreatedAt,
	}
	if rec.Temperature != onewire.DisconnectedC {
		t := rec.Temperature
		v.Temperature = &t
	}
	if !rec.UpdatedAt.IsZero() {
		u := rec.UpdatedAt
		v.UpdatedAt = &u
	}
	return v
}

// handleListSensors returns every sensor record sorted by name.
func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	if s.sensors == nil {
		writeError(w, r, ErrCodeUnavailable, "sensor feature is disabled")
		return
	}

	records := s.sensors.Records()
	sensors := make([]SensorView, 0, len(records))
	for _, rec := range records {
		sensors = append(sensors, newSensorView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sensors": sensors, "count": len(sensors)})
}

// handleGetSensor returns one sensor identified by hex address or by name.
func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	if s.sensors == nil {
		writeError(w, r, ErrCodeUnavailable, "sensor feature is disabled")
		return
	}

	id := chi.URLParam(r, "id")
	rec, ok := s.findSensor(id)
	if !ok {
		writeError(w, r, ErrCodeNotFound, "sensor not found")
		return
	}
	writeJSON(w, http.StatusOK, newSensorView(rec))
}

// findSensor resolves id as an address first, then as a name.
func (s *Server) findSensor(id string) (ds18x.Record, bool) {
	if addr, err := onewire.ParseAddress(id); err == nil {
		if rec, ok := s.sensors.Get(addr); ok {
			return rec, true
		}
	}
	for _, rec := range s.sensors.Records() {
		if rec.Name == id {
			return rec, true
		}
	}
	return ds18x.Record{}, false
}

// handleListInventory returns every sensor ever created, including ones not
// seen since the last restart.
func (s *Server) handleListInventory(w http.ResponseWriter, r *http.Request) {
	if s.inventory == nil {
		writeError(w, r, ErrCodeUnavailable, "inventory is disabled")
		return
	}

	entries, err := s.inventory.List(r.Context())
	if err != nil {
		s.logger.Error("listing inventory failed", "error", err)
		writeError(w, r, ErrCodeInternal, "failed to list inventory")
		return
	}
	if entries == nil {
		entries = []ds18x.InventoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sensors": entries, "count": len(entries)})
}

// handleGetInventoryEntry returns the inventory row for one address.
func (s *Server) handleGetInventoryEntry(w http.ResponseWriter, r *http.Request) {
	if s.inventory == nil {
		writeError(w, r, ErrCodeUnavailable, "inventory is disabled")
		return
	}

	addr, err := onewire.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, r, ErrCodeBadRequest, "address must be 16 hex digits")
		return
	}

	entry, ok, err := s.inventory.Lookup(r.Context(), addr)
	if err != nil {
		s.logger.Error("inventory lookup failed", "address", addr.String(), "error", err)
		writeError(w, r, ErrCodeInternal, "failed to look up sensor")
		return
	}
	if !ok {
		writeError(w, r, ErrCodeNotFound, "sensor not in inventory")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// BroadcastReading sends a reading to clients subscribed to
// ChannelSensorReading or to the sensor's own channel. It has the shape of
// a scheduler observer.
func (h *Hub) BroadcastReading(rec ds18x.Record) {
	h.fanOut(ChannelSensorReading, newSensorView(rec), ChannelSensorReading, SensorChannel(rec.Name))
}

// replayReadings seeds a new subscriber with the latest value of every
// sensor the channel covers. Sensors never read are skipped.
func (s *Server) replayReadings(channel string) (string, []any) {
	var name string
	switch {
	case channel == ChannelSensorReading:
	case strings.HasPrefix(channel, ChannelSensorReading+"/"):
		name = strings.TrimPrefix(channel, ChannelSensorReading+"/")
	default:
		return "", nil
	}

	var out []any
	for _, rec := range s.sensors.Records() {
		if rec.UpdatedAt.IsZero() || (name != "" && rec.Name != name) {
			continue
		}
		out = append(out, newSensorView(rec))
	}
	return ChannelSensorReading, out
}
