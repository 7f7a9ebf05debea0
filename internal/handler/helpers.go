package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dukerupert/daybook/internal/datemath"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// dayParam extracts and validates the {day} path value.
func dayParam(r *http.Request) (string, error) {
	day := r.PathValue("day")
	if _, err := datemath.ParseDayKey(day); err != nil {
		return "", fmt.Errorf("invalid day %q", day)
	}
	return day, nil
}

func indexParam(r *http.Request, name string) (int, error) {
	return strconv.Atoi(r.PathValue(name))
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
