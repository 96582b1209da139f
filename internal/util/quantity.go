// Package util holds small parsing helpers shared by the environments.
package util

import (
	"fmt"
	"strconv"
	"strings"
)

// memoryUnits maps a unit suffix to its size in MiB. Decimal and binary
// suffixes are treated alike, as docker does.
var memoryUnits = map[string]float64{
	"":    1.0 / (1024 * 1024),
	"B":   1.0 / (1024 * 1024),
	"K":   1.0 / 1024,
	"KB":  1.0 / 1024,
	"KI":  1.0 / 1024,
	"KIB": 1.0 / 1024,
	"M":   1,
	"MB":  1,
	"MI":  1,
	"MIB": 1,
	"G":   1024,
	"GB":  1024,
	"GI":  1024,
	"GIB": 1024,
	"T":   1024 * 1024,
	"TB":  1024 * 1024,
	"TI":  1024 * 1024,
	"TIB": 1024 * 1024,
}

// ParseMemory converts a memory string such as "2G" or "512Mi" to MiB. A bare
// number is a byte count. An empty string is 0.
func ParseMemory(memory string) (int, error) {
	memory = strings.TrimSpace(memory)
	if memory == "" {
		return 0, nil
	}

	split := strings.IndexFunc(memory, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	if split == -1 {
		split = len(memory)
	}

	value, err := strconv.ParseFloat(memory[:split], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory value: %s", memory)
	}

	unit := strings.ToUpper(strings.TrimSpace(memory[split:]))
	scale, ok := memoryUnits[unit]
	if !ok {
		return 0, fmt.Errorf("unknown memory unit: %s", unit)
	}
	return int(value * scale), nil
}
