package exporter

import (
	"math"
	"strconv"
)

// missingValue is written for probesets without an estimate
const missingValue = "NA"

// formatFloat formats an expression value with four decimals
func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return missingValue
	}
	return strconv.FormatFloat(f, 'f', 4, 64)
}

// cellValue maps a value to an XLSX cell; missing values stay empty
func cellValue(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}
