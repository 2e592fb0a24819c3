package server

import (
	"net/http"
	"time"

	"campaignready/internal/app/version"
)

type healthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		OK:      true,
		Service: "campaignready",
		Version: version.Get().BuildVersion,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

func getVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}
