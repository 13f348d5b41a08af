package server

import (
	"net/http"

	"github.com/joseph-ayodele/artists-registry/internal/common"
	"github.com/joseph-ayodele/artists-registry/internal/enhance"
	"github.com/joseph-ayodele/artists-registry/internal/normalize"
)

type enhanceFieldRequest struct {
	Field   string            `json:"field"`
	Value   string            `json:"value"`
	Context map[string]string `json:"context"`
}

type enhanceAllRequest struct {
	Data    *normalize.Fields `json:"data"`
	RawText string            `json:"rawText"`
}

type enhanceAllResponse struct {
	EnhancedFormData normalize.Fields `json:"enhancedFormData"`
	Description      *string          `json:"description"`
	Provider         string           `json:"provider"`
	Model            string           `json:"model,omitempty"`
}

type detailsRequest struct {
	ArtistName *string `json:"artistName"`
	GuruName   *string `json:"guruName"`
	Gharana    *string `json:"gharana"`
	RawText    string  `json:"rawText"`
}

// withEnhancer answers 503 when the server runs without an enhancer.
func (s *Server) withEnhancer(w http.ResponseWriter, r *http.Request) bool {
	if s.enhancer == nil {
		s.writeError(w, r, common.NewAppError("ENHANCE_DISABLED", "enhancement is not configured", common.ErrUnavailable))
		return false
	}
	return true
}

func (s *Server) enhanceField(w http.ResponseWriter, r *http.Request) {
	if !s.withEnhancer(w, r) {
		return
	}
	var req enhanceFieldRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.enhancer.EnhanceField(r.Context(), req.Field, req.Value, req.Context)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) enhanceAll(w http.ResponseWriter, r *http.Request) {
	if !s.withEnhancer(w, r) {
		return
	}
	var req enhanceAllRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Data == nil {
		s.writeError(w, r, common.InvalidArgumentError("data is required for enhancement"))
		return
	}
	out, err := s.enhancer.Enhance(r.Context(), req.RawText, *req.Data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enhanceAllResponse{
		EnhancedFormData: out.Fields, Description: out.Description, Provider: out.Provider, Model: out.Model,
	})
}

func (s *Server) generateSummary(w http.ResponseWriter, r *http.Request) {
	if !s.withEnhancer(w, r) {
		return
	}
	var in enhance.SummaryInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	sum, err := s.enhancer.Summarize(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) comprehensiveDetails(w http.ResponseWriter, r *http.Request) {
	if !s.withEnhancer(w, r) {
		return
	}
	var req detailsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.ArtistName == nil || *req.ArtistName == "" {
		s.writeError(w, r, common.InvalidArgumentError("artist name is required for comprehensive details"))
		return
	}
	fields := normalize.Fields{ArtistName: req.ArtistName, GuruName: req.GuruName, Gharana: req.Gharana}
	profile, err := s.enhancer.Comprehensive(r.Context(), req.RawText, fields)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) enhanceProviders(w http.ResponseWriter, r *http.Request) {
	if !s.withEnhancer(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.enhancer.ProviderStatus()})
}
