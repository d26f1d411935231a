package audioproc

import (
	"fmt"
	"strings"
)

// Single atempo filter stage bounds.
const (
	atempoStageMin = 0.5
	atempoStageMax = 2.0
)

// atempoStages decomposes a speed multiplier into per-stage factors.
// Each stage must lie within the filter's supported window, so speeds
// outside it are expressed as a chain whose product equals the request.
func atempoStages(speed float64) []float64 {
	var stages []float64
	for speed > atempoStageMax {
		stages = append(stages, atempoStageMax)
		speed /= atempoStageMax
	}
	for speed < atempoStageMin {
		stages = append(stages, atempoStageMin)
		speed /= atempoStageMin
	}
	return append(stages, speed)
}

// atempoFilter renders the stage chain as an ffmpeg audio filter spec.
func atempoFilter(speed float64) string {
	stages := atempoStages(speed)
	parts := make([]string, len(stages))
	for i, s := range stages {
		parts[i] = fmt.Sprintf("atempo=%g", s)
	}
	return strings.Join(parts, ",")
}
