package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	middleware "github.com/claimsmart/claimsmart-backend/internal/api/middlewares"
	"github.com/claimsmart/claimsmart-backend/internal/services"
)

const maxUploadBytes = 32 << 20 // 32 MB

type ClaimHandler struct {
	svc *services.ClaimService
	log *zap.Logger
}

func NewClaimHandler(svc *services.ClaimService, log *zap.Logger) *ClaimHandler {
	return &ClaimHandler{svc: svc, log: log}
}

// SubmitClaim handles the multipart intake form: personal details plus one
// attachment. Extra files beyond the first are ignored.
func (h *ClaimHandler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	// ParseMultipartForm only bounds what stays in memory; the body itself
	// must be capped or an oversized upload spools to disk and gets buffered
	// whole below. MaxBytesReader covers chunked bodies that carry no
	// Content-Length.
	if r.ContentLength > maxUploadBytes {
		Error(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	in := services.IntakeInput{
		FullName: r.FormValue("full_name"),
		Email:    r.FormValue("email"),
		Phone:    r.FormValue("phone"),
		Address:  r.FormValue("address"),
	}

	var files []services.Attachment
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["file"] {
			f, err := fh.Open()
			if err != nil {
				Error(w, http.StatusBadRequest, "invalid file")
				return
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				Error(w, http.StatusBadRequest, "could not read file")
				return
			}
			files = append(files, services.Attachment{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
			// One attachment per claim; don't buffer the rest.
			break
		}
	}

	claim, err := h.svc.SubmitClaim(r.Context(), user.ID, in, files)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	JSON(w, http.StatusCreated, claim)
}

// ListClaims returns the authenticated claimant's own claims.
func (h *ClaimHandler) ListClaims(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	views, err := h.svc.ListOwnClaims(r.Context(), user)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	JSON(w, http.StatusOK, views)
}

// GetClaim returns one claim, display-mapped for the viewer.
func (h *ClaimHandler) GetClaim(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	view, err := h.svc.GetClaim(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	JSON(w, http.StatusOK, view)
}

// ListAllClaims returns every claim for the insurer dashboard.
func (h *ClaimHandler) ListAllClaims(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListAllClaims(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	JSON(w, http.StatusOK, views)
}

type decisionRequest struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment"`
}

// Decide applies an insurer's terminal verdict to a flagged claim.
func (h *ClaimHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid body")
		return
	}

	view, err := h.svc.Decide(r.Context(), chi.URLParam(r, "id"), req.Decision, req.Comment)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	JSON(w, http.StatusOK, view)
}

func (h *ClaimHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrMissingField),
		errors.Is(err, services.ErrNoAttachment),
		errors.Is(err, services.ErrInvalidDecision):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrNotFlagged):
		Error(w, http.StatusConflict, err.Error())
	default:
		h.log.Error("claim handler error", zap.Error(err))
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
