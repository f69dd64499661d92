package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/wadjakorntonsri/linkbio/pkg/core/domain"
	"github.com/wadjakorntonsri/linkbio/pkg/ports"
)

const maxImageSize = 5 << 20

type HTTPHandler struct {
	profiles ports.ProfileService
	visits   ports.VisitService
}

func NewHTTPHandler(profiles ports.ProfileService, visits ports.VisitService) *HTTPHandler {
	return &HTTPHandler{profiles: profiles, visits: visits}
}

// PublicProfile serves GET /{handle}. The view has already been tracked by
// the TrackVisits middleware.
func (h *HTTPHandler) PublicProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.GetPublicProfile(r.Context(), r.PathValue("handle"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *HTTPHandler) Activity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.visits.GetActivity(r.Context(), r.PathValue("handle"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

func (h *HTTPHandler) SearchHandle(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	available, err := h.profiles.IsHandleAvailable(r.Context(), req.Handle)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !available {
		writeErrorMessage(w, http.StatusConflict, fmt.Sprintf("%s is already registered", req.Handle))
		return
	}
	writeMessage(w, http.StatusOK, fmt.Sprintf("%s is available", req.Handle))
}

func (h *HTTPHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, _ := ProfileIDFromContext(r.Context())
	profile, err := h.profiles.GetProfile(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *HTTPHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	var links []domain.SocialLink
	if req.Links != nil {
		links = make([]domain.SocialLink, 0, len(req.Links))
		for _, l := range req.Links {
			links = append(links, domain.SocialLink{ID: l.ID, Name: l.Name, URL: l.URL, Enabled: l.Enabled})
		}
	}

	id, _ := ProfileIDFromContext(r.Context())
	profile, err := h.profiles.UpdateProfile(r.Context(), id, req.Handle, req.Description, links)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *HTTPHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeErrorMessage(w, http.StatusBadRequest, "file must be an image")
		return
	}

	id, _ := ProfileIDFromContext(r.Context())
	url, err := h.profiles.UploadImage(r.Context(), id, file, header.Filename, contentType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"image": url})
}
