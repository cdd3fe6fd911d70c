package enginecli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Strob0t/RunForge/internal/domain/environment"
)

// statsEntry mirrors the `stats --no-stream --format {{json .}}` output
// shared by docker-compatible engines. All values arrive humanized.
type statsEntry struct {
	CPUPerc  string `json:"CPUPerc"`
	MemUsage string `json:"MemUsage"`
	NetIO    string `json:"NetIO"`
	BlockIO  string `json:"BlockIO"`
	PIDs     string `json:"PIDs"`
}

// parseStats decodes one stats line into a normalized snapshot. Fields that
// fail to parse are left zero; a stats call never fails on formatting.
func parseStats(line string) (*environment.Stats, error) {
	var e statsEntry
	if err := json.Unmarshal([]byte(line), &e); err != nil {
		return nil, fmt.Errorf("parse stats output: %w", err)
	}

	stats := &environment.Stats{
		CPUPercent: parsePercent(e.CPUPerc),
	}
	stats.MemoryBytes, stats.MemoryLimit = parsePair(e.MemUsage)
	stats.NetRxBytes, stats.NetTxBytes = parsePair(e.NetIO)
	stats.DiskReadBytes, stats.DiskWriteBytes = parsePair(e.BlockIO)
	if n, err := strconv.Atoi(strings.TrimSpace(e.PIDs)); err == nil {
		stats.PIDs = n
	}
	return stats, nil
}

func parsePercent(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// parsePair splits "7.7MiB / 1.9GiB" style values into two byte counts.
func parsePair(s string) (int64, int64) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	return parseSize(parts[0]), parseSize(parts[1])
}

// sizeUnits maps humanized suffixes to byte multipliers. Longer suffixes
// are checked first so "MiB" wins over "B".
var sizeUnits = []struct {
	suffix string
	mult   float64
}{
	{"kib", 1024},
	{"mib", 1024 * 1024},
	{"gib", 1024 * 1024 * 1024},
	{"tib", 1024 * 1024 * 1024 * 1024},
	{"kb", 1000},
	{"mb", 1000 * 1000},
	{"gb", 1000 * 1000 * 1000},
	{"tb", 1000 * 1000 * 1000 * 1000},
	{"b", 1},
}

func parseSize(s string) int64 {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, u := range sizeUnits {
		if strings.HasSuffix(s, u.suffix) {
			num := strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			f, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0
			}
			return int64(f * u.mult)
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}
