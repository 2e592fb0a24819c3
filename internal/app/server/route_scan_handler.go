package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"campaignready/internal/auth"
	"campaignready/internal/domain"
	"campaignready/internal/inbound"
	"campaignready/internal/report"
	"campaignready/internal/scan"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
)

const maxHistoryLimit = 100

type createScanResponse struct {
	ScanID        string        `json:"scan_id"`
	AccessToken   string        `json:"access_token"`
	VerifyAddress string        `json:"verify_address,omitempty"`
	Report        domain.Report `json:"report"`
}

type scanIDsResponse struct {
	ScanIDs []string `json:"scan_ids"`
}

type historyResponse struct {
	Domain        string                     `json:"domain"`
	Scans         []domain.ScanRecord        `json:"scans"`
	VerdictCounts map[domain.RiskLevel]int64 `json:"verdict_counts,omitempty"`
}

func (s *Server) createScan(w http.ResponseWriter, r *http.Request) {
	var req scan.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	// A scan outlives a client that stops waiting; its result stays retrievable.
	doc, rep, err := s.scans.Create(context.WithoutCancel(r.Context()), req)
	if err != nil {
		switch {
		case errors.Is(err, scan.ErrInvalidRequest):
			writeError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, scan.ErrBlockedTarget):
			writeError(w, "Target website is blocked", http.StatusForbidden)
		default:
			log.Error("Scan failed", "error", err)
			writeError(w, "Scan failed", http.StatusInternalServerError)
		}
		return
	}

	token, err := s.tokens.IssueReportToken(doc.ScanID, s.tokenTTL)
	if err != nil {
		log.Error("Could not issue report token", "scan_id", doc.ScanID, "error", err)
		writeError(w, "Failed to issue access token", http.StatusInternalServerError)
		return
	}

	resp := createScanResponse{ScanID: doc.ScanID, AccessToken: token, Report: rep}
	if s.inboundDomain != "" {
		resp.VerifyAddress = inbound.VerifyAddress(doc.ScanID, s.inboundDomain)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getScanReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.authorizedReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) getScanMarkdown(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.authorizedReport(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report.FormatMarkdown(rep)))
}

// authorizedReport checks the report token for the path's scan id and loads the
// report. It writes the error response itself.
func (s *Server) authorizedReport(w http.ResponseWriter, r *http.Request) (domain.Report, bool) {
	scanID := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "id")))
	if scanID == "" {
		writeError(w, "scanId missing", http.StatusBadRequest)
		return domain.Report{}, false
	}

	token := bearerToken(r)
	if token == "" {
		writeError(w, "Access token required", http.StatusUnauthorized)
		return domain.Report{}, false
	}
	if err := s.tokens.Authorize(token, scanID); err != nil {
		switch {
		case errors.Is(err, auth.ErrScanMismatch):
			writeError(w, "Access token does not grant this scan", http.StatusForbidden)
		case errors.Is(err, auth.ErrExpiredToken):
			writeError(w, "Access token expired", http.StatusUnauthorized)
		default:
			writeError(w, "Invalid access token", http.StatusUnauthorized)
		}
		return domain.Report{}, false
	}

	rep, err := s.scans.Report(r.Context(), scanID)
	if err != nil {
		if errors.Is(err, scan.ErrNotFound) {
			writeError(w, "Report not found", http.StatusNotFound)
		} else {
			log.Error("Could not load report", "scan_id", scanID, "error", err)
			writeError(w, "Failed to load report", http.StatusInternalServerError)
		}
		return domain.Report{}, false
	}
	return rep, true
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, found := strings.Cut(h, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func (s *Server) findScans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var ids []string
	switch {
	case q.Get("email") != "":
		ids = s.scans.FindByEmail(q.Get("email"))
	case q.Get("domain") != "":
		ids = s.scans.FindByDomain(q.Get("domain"))
	default:
		writeError(w, "email or domain required", http.StatusBadRequest)
		return
	}

	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, scanIDsResponse{ScanIDs: ids})
}

func (s *Server) scanHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, "history disabled", http.StatusServiceUnavailable)
		return
	}

	host := strings.TrimSpace(r.URL.Query().Get("domain"))
	if host == "" {
		writeError(w, "domain required", http.StatusBadRequest)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	rows, err := s.history(r.Context(), host, limit)
	if err != nil {
		log.Error("Could not load scan history", "domain", host, "error", err)
		writeError(w, "Failed to load history", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []domain.ScanRecord{}
	}

	resp := historyResponse{Domain: host, Scans: rows}
	if s.verdicts != nil {
		counts, err := s.verdicts(r.Context(), host)
		if err != nil {
			log.Warn("Could not count verdicts", "domain", host, "error", err)
		}
		resp.VerdictCounts = counts
	}
	writeJSON(w, http.StatusOK, resp)
}
