package fotohost

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
)

type responseTemplate struct {
	Error   string      `json:"error"`
	Payload interface{} `json:"payload"`
}

type pagePayload struct {
	Items   interface{} `json:"items"`
	Total   int64       `json:"total"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
}

func respondWithJSON(w http.ResponseWriter, err string, payload interface{}, code int) error {
	response := responseTemplate{Error: err, Payload: payload}
	jsonResponse, merror := json.Marshal(response)
	w.Header().Set("Content-Type", "application/json")

	if merror != nil {
		log.Printf("ERROR: failed to marshal response. payload: %v", payload)
		http.Error(w, "Failed to construct response", http.StatusInternalServerError)
		return merror
	}

	w.WriteHeader(code)
	_, herr := w.Write(jsonResponse)
	return herr
}

func failOnError(w http.ResponseWriter, err error, logMessage string, code int) (failed bool) {
	if err != nil {
		if logMessage != "" {
			log.Printf("ERROR: %s - %v", logMessage, err)
		}
		respondWithJSON(w, err.Error(), nil, code)
		return true
	}
	return false
}

// getClientIP prefers the forwarded address set by the reverse proxy.
func getClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// intQueryParam parses a positive integer query parameter with a fallback.
func intQueryParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

// currentUser resolves the optional basic auth credentials to an account
// email. Returns ("", true) for anonymous requests and ("", false) when
// credentials were supplied but rejected.
func currentUser(appCtx *AppContext, r *http.Request) (string, bool) {
	email, password, provided := r.BasicAuth()
	if !provided {
		return "", true
	}
	ok, _ := appCtx.DB.AuthenticateUser(r.Context(), email, password)
	if !ok {
		return "", false
	}
	return email, true
}
