package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/artists-registry/constants"
	"github.com/joseph-ayodele/artists-registry/internal/common"
	"github.com/joseph-ayodele/artists-registry/internal/repository"
	"github.com/joseph-ayodele/artists-registry/internal/services/artists"
)

const (
	formDocument = "document"
	// multipartOverhead covers boundaries and headers around the document part.
	multipartOverhead = 1 << 20
	headerActor       = "X-Actor"
)

func (s *Server) uploadArtist(w http.ResponseWriter, r *http.Request) {
	file, hdr, err := s.formFile(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer file.Close()

	createdBy := strings.TrimSpace(r.FormValue("createdBy"))
	if createdBy == "" {
		createdBy = r.Header.Get(headerActor)
	}
	a, err := s.artists.Upload(r.Context(), artists.UploadInput{Filename: hdr.Filename, Reader: file, CreatedBy: createdBy})
	if err != nil {
		if a != nil {
			s.writeErrorWith(w, r, err, a)
			return
		}
		s.writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if a.ExtractionStatus == constants.StatusPending {
		status = http.StatusAccepted
	}
	writeJSON(w, status, a)
}

func (s *Server) extractOnce(w http.ResponseWriter, r *http.Request) {
	file, hdr, err := s.formFile(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer file.Close()

	res, err := s.artists.ExtractOnce(r.Context(), hdr.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, nil, common.InvalidArgumentErrorf("document exceeds %d bytes", s.maxUpload)
		}
		return nil, nil, common.InvalidArgumentError("expected a multipart form with a document field")
	}
	file, hdr, err := r.FormFile(formDocument)
	if err != nil {
		return nil, nil, common.InvalidArgumentError("document is required")
	}
	return file, hdr, nil
}

func (s *Server) listArtists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit, err := pageParams(q.Get("page"), q.Get("limit"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.artists.List(r.Context(), artists.ListFilter{
		Search: q.Get("search"),
		Status: q.Get("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listPublicArtists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit, err := pageParams(q.Get("page"), q.Get("limit"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.artists.ListPublic(r.Context(), q.Get("search"), page, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) artistStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.artists.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) exportArtists(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		s.writeError(w, r, common.NewAppError("EXPORT_DISABLED", "export is not configured", common.ErrUnavailable))
		return
	}
	q := r.URL.Query()
	status := constants.ExtractionStatus(strings.ToLower(strings.TrimSpace(q.Get("status"))))
	if status != "" && !status.Valid() {
		s.writeError(w, r, common.InvalidArgumentErrorf("unknown status %q", q.Get("status")))
		return
	}
	data, err := s.exporter.ExportArtistsXLSX(r.Context(), repository.ListFilter{Search: q.Get("search"), Status: status})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="artists.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) getArtist(w http.ResponseWriter, r *http.Request) {
	id, err := artistID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.artists.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// ?view=public hides admin fields and profiles that are not yet extracted
	if r.URL.Query().Get("view") == "public" {
		if !a.ExtractionStatus.Public() {
			s.writeError(w, r, common.NotFoundError(fmt.Sprintf("artist %s not found", id)))
			return
		}
		writeJSON(w, http.StatusOK, a.Public())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) updateArtist(w http.ResponseWriter, r *http.Request) {
	id, err := artistID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in artists.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.artists.Update(r.Context(), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type verifyRequest struct {
	VerifiedBy string `json:"verifiedBy"`
}

func (s *Server) verifyArtist(w http.ResponseWriter, r *http.Request) {
	id, err := artistID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req verifyRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if req.VerifiedBy == "" {
		req.VerifiedBy = r.Header.Get(headerActor)
	}
	a, err := s.artists.Verify(r.Context(), id, req.VerifiedBy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) reprocessArtist(w http.ResponseWriter, r *http.Request) {
	id, err := artistID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.artists.Reprocess(r.Context(), id)
	if err != nil {
		if a != nil {
			s.writeErrorWith(w, r, err, a)
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) deleteArtist(w http.ResponseWriter, r *http.Request) {
	id, err := artistID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.artists.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func artistID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, common.InvalidArgumentErrorf("invalid artist id %q", raw)
	}
	return id, nil
}

func pageParams(page, limit string) (int, int, error) {
	p, err := optionalInt(page)
	if err != nil {
		return 0, 0, common.InvalidArgumentErrorf("invalid page %q", page)
	}
	l, err := optionalInt(limit)
	if err != nil {
		return 0, 0, common.InvalidArgumentErrorf("invalid limit %q", limit)
	}
	return p, l, nil
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("not a non-negative integer: %q", s)
	}
	return n, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return common.InvalidArgumentErrorf("invalid JSON body: %v", err)
	}
	return nil
}
