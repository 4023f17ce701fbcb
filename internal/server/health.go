package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// healthResponse is the /health payload.
type healthResponse struct {
	Status     string  `json:"status"`
	Time       string  `json:"time"`
	CPUPercent float64 `json:"cpu_percent"`
	RAMPercent float64 `json:"ram_percent"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cpuPct, ramPct := s.systemStats()

	resp := healthResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339),
		CPUPercent: cpuPct,
		RAMPercent: ramPct,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode health response")
	}
}

// systemStats samples CPU over a short window so the endpoint stays fast.
func (s *Server) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}
