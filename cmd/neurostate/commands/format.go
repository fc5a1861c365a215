package commands

import (
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

func formatFloats(x []float64) string {
	parts := make([]string, len(x))
	for i, v := range x {
		parts[i] = strconv.FormatFloat(v, 'f', 4, 64)
	}
	return strings.Join(parts, " ")
}

func argmax(x []float64) int {
	if len(x) == 0 {
		return -1
	}
	return floats.MaxIdx(x)
}
