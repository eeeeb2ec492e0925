package httpserver

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/educhain/internal/server/models"
	"github.com/dmitrijs2005/educhain/internal/server/oracle"
	"github.com/dmitrijs2005/educhain/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// multipartMemory is how much of a multipart body is kept in memory
// before parts spill to temporary files.
const multipartMemory = 8 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	actor, _ := identityFrom(r.Context())
	limit := s.opts.MaxUploadBytes
	tooLarge := fmt.Sprintf("file exceeds %d MiB", limit>>20)

	// Room for the other form fields on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeFailure(w, http.StatusBadRequest, tooLarge)
			return
		}
		writeFailure(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}

	res, err := s.docs.Upload(r.Context(), actor, services.UploadInput{
		OwnerID:      r.FormValue("studentId"),
		Filename:     header.Filename,
		DeclaredType: r.FormValue("documentType"),
		Description:  r.FormValue("description"),
		Content:      content,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{
		"success":      true,
		"documentId":   res.Document.ID,
		"verified":     res.Outcome.Verified,
		"status":       res.Outcome.Status,
		"confidence":   res.Outcome.Confidence,
		"detectedType": res.Outcome.DetectedType,
		"message":      res.Outcome.Message,
		"document":     res.Document,
	})
}

func (s *Server) handleListMine(w http.ResponseWriter, r *http.Request) {
	actor, _ := identityFrom(r.Context())
	docs, err := s.docs.ListMine(r.Context(), actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "documents": docs})
}

func (s *Server) handleListAll(w http.ResponseWriter, r *http.Request) {
	actor, _ := identityFrom(r.Context())
	docs, err := s.docs.ListAll(r.Context(), actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "documents": docs})
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	actor, _ := identityFrom(r.Context())
	students, err := s.docs.ListStudents(r.Context(), actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "students": students})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	actor, _ := identityFrom(r.Context())
	doc, content, err := s.docs.Download(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		s.writeDocumentError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", oracle.MimeType(doc.Filename))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		s.logger.Warn(r.Context(), "download interrupted", "document_id", doc.ID, "error", err)
	}
}

type verifyRequest struct {
	DeclaredType string `json:"declaredType"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	actor, _ := identityFrom(r.Context())
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DeclaredType == "" {
		req.DeclaredType = r.URL.Query().Get("declaredType")
	}

	outcome, doc, err := s.docs.Verify(r.Context(), actor, chi.URLParam(r, "id"), req.DeclaredType)
	if err != nil {
		s.writeDocumentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse(outcome, doc))
}

func verifyResponse(o *models.VerificationOutcome, doc *models.Document) envelope {
	body := envelope{
		"success":      true,
		"message":      o.Message,
		"verified":     o.Verified,
		"status":       o.Status,
		"confidence":   o.Confidence,
		"detectedType": o.DetectedType,
		"document":     doc,
	}
	if o.Intact != nil {
		body["intact"] = *o.Intact
	}
	return body
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor, _ := identityFrom(r.Context())
	doc, err := s.docs.Delete(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "document deleted", "documentId": doc.ID})
}
