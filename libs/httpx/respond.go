package httpx

import (
	"encoding/json"
	"net/http"
)

// All services answer with the same envelope: list responses carry
// success/count/data, single resources success/data, and failures
// success=false plus a human-readable message (and optional detail).

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func OKList(w http.ResponseWriter, count int, data any) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   count,
		"data":    data,
	})
}

func OKData(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

func Created(w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func Error(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}

func ErrorDetail(w http.ResponseWriter, status int, message, detail string) {
	WriteJSON(w, status, map[string]any{
		"success": false,
		"message": message,
		"detail":  detail,
	})
}
