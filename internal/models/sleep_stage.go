package models

import (
	"strconv"
	"strings"
)

// Ring sleep segment type codes.
const (
	SleepTypeAwake = 1
	SleepTypeLight = 2
	SleepTypeDeep  = 3
	SleepTypeREM   = 4
)

// sleepTypeNames maps lowercased stage names some app versions send instead
// of the numeric code.
var sleepTypeNames = map[string]int{
	"awake": SleepTypeAwake,
	"wake":  SleepTypeAwake,
	"light": SleepTypeLight,
	"core":  SleepTypeLight,
	"deep":  SleepTypeDeep,
	"rem":   SleepTypeREM,
}

// NormalizeSleepType maps a segment "type" value to its numeric code.
// Returns the code and true if recognized, 0 and false otherwise.
func NormalizeSleepType(v any) (int, bool) {
	if s, ok := v.(string); ok {
		lower := strings.ToLower(strings.TrimSpace(s))
		if code, ok := sleepTypeNames[lower]; ok {
			return code, true
		}
		if _, err := strconv.Atoi(lower); err != nil {
			return 0, false
		}
	}
	code := ToInt(v)
	if code < SleepTypeAwake || code > SleepTypeREM {
		return code, false
	}
	return code, true
}
