package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/spigell/placement-checker/internal/logger"
	"github.com/spigell/placement-checker/internal/report"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type page struct {
	PageTitle string
	Title     string
	Footer    string
	Roles     []string
	Report    report.Report
	Message   string
}

func (s *Server) newPage(pageTitle string) page {
	return page{
		PageTitle: pageTitle,
		Title:     s.cfg.Server.Title,
		Footer:    s.cfg.Server.Footer,
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data page) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("rendering template",
			zap.String(logger.FieldRequestID, RequestID(r.Context())),
			zap.String("template", name),
			zap.Error(err),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err *HTTPError) {
	name := "error.html"
	data := s.newPage("Error")
	if err == errInputRequired {
		name = "input_required.html"
		data.PageTitle = "Input Required"
	}
	data.Message = err.Message

	s.render(w, r, err.Code, name, data)
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	data := s.newPage(s.cfg.Server.Title)
	data.Roles = s.cache.Profiles().Names()

	s.render(w, r, http.StatusOK, "form.html", data)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, &HTTPError{Code: http.StatusBadRequest, Message: "the submitted form could not be read"})
		return
	}

	role := strings.TrimSpace(r.PostFormValue("role"))
	text := r.PostFormValue("responsibilities")
	if role == "" || strings.TrimSpace(text) == "" {
		s.renderError(w, r, errInputRequired)
		return
	}

	rep, err := s.check(r, role, &text, r.PostFormValue("company"))
	if err != nil {
		s.renderError(w, r, classify(err))
		return
	}

	data := s.newPage("Match Result")
	data.Report = rep
	s.render(w, r, http.StatusOK, "result.html", data)
}

type roleView struct {
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`
	Requirements string  `json:"requirements"`
}

type companyView struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

type rolesResponse struct {
	Threshold float64       `json:"threshold"`
	Roles     []roleView    `json:"roles"`
	Companies []companyView `json:"companies"`
}

func (s *Server) handleRoles(w http.ResponseWriter, _ *http.Request) {
	profiles := s.cache.Profiles()

	resp := rolesResponse{
		Threshold: s.cfg.SimilarityThreshold,
		Roles:     make([]roleView, 0, profiles.Len()),
		Companies: make([]companyView, 0, len(s.cfg.Companies)),
	}
	for _, name := range profiles.Names() {
		p, _ := profiles.Get(name)
		resp.Roles = append(resp.Roles, roleView{Name: p.Name, Weight: p.Weight, Requirements: p.Requirements})
	}
	for _, c := range s.cfg.Companies {
		resp.Companies = append(resp.Companies, companyView(c))
	}

	_ = writeJSON(w, http.StatusOK, resp)
}

type matchRequest struct {
	Role string `json:"role"`
	// Responsibilities may be omitted or null, which scores as empty text.
	Responsibilities *string `json:"responsibilities"`
	Company          string  `json:"company"`
}

func (s *Server) handleAPIMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		_ = writeJSONError(w, classify(err))
		return
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		_ = writeJSONError(w, &HTTPError{Code: http.StatusBadRequest, Message: "role is required"})
		return
	}

	rep, err := s.check(r, role, req.Responsibilities, req.Company)
	if err != nil {
		_ = writeJSONError(w, classify(err))
		return
	}

	_ = writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.cache.Built() {
		_ = writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}

	_ = writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"model":  s.cache.Model(),
		"roles":  s.cache.Profiles().Len(),
	})
}

func (s *Server) check(r *http.Request, role string, text *string, company string) (report.Report, error) {
	result, err := s.scorer.ScoreOptional(r.Context(), role, text)
	if err != nil {
		s.logger.Warn("scoring placement",
			zap.String(logger.FieldRequestID, RequestID(r.Context())),
			zap.String("role", role),
			zap.Error(err),
		)
		return report.Report{}, err
	}

	rep := report.New(result, s.cfg.SimilarityThreshold)
	if strings.TrimSpace(company) != "" {
		rep = rep.WithCompany(company, s.cfg.CompanyWeight(company))
	}

	s.logger.Info("placement checked",
		zap.String(logger.FieldRequestID, RequestID(r.Context())),
		zap.String("role", rep.Role),
		zap.Float64("similarity", rep.Similarity),
		zap.Bool("passed", rep.Passed),
	)

	return rep, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		return &HTTPError{Code: http.StatusUnsupportedMediaType, Message: "Content-Type must be application/json"}
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &HTTPError{Code: http.StatusBadRequest, Message: "request body is empty"}
		}
		return &HTTPError{Code: http.StatusBadRequest, Message: "invalid JSON payload: " + err.Error()}
	}

	return nil
}
