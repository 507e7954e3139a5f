package handler

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/partnerdesk/partnerdesk/internal/apperr"
	"github.com/partnerdesk/partnerdesk/internal/model"
	"github.com/partnerdesk/partnerdesk/internal/service"
)

// maxUploadMemory bounds how much of a multipart body is buffered in memory;
// larger files spill to temp files.
const maxUploadMemory = 32 << 20

type RecordHandler struct {
	records *service.RecordService
}

func NewRecordHandler(records *service.RecordService) *RecordHandler {
	return &RecordHandler{records: records}
}

func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.records.List(r.Context(), r.PathValue("collection"))
	if err != nil {
		respondError(w, err)
		return
	}
	if docs == nil {
		docs = []model.Document{}
	}
	respondJSON(w, http.StatusOK, docs)
}

func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.records.Get(r.Context(), r.PathValue("collection"), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// Upsert accepts either a plain JSON document or a multipart form with the
// document under the "data" field and attachments under "doc_*" file fields.
func (h *RecordHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	doc, uploads, err := parseUpsertBody(r)
	defer closeUploads(uploads)
	if err != nil {
		respondError(w, err)
		return
	}

	merged, err := h.records.Upsert(r.Context(), r.PathValue("collection"), doc, uploads)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, merged)
}

func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.records.Delete(r.Context(), r.PathValue("collection"), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func parseUpsertBody(r *http.Request) (model.Document, []service.Upload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		var doc model.Document
		err := json.NewDecoder(r.Body).Decode(&doc)
		if err != nil {
			return nil, nil, apperr.InvalidInput("invalid json body")
		}
		return doc, nil, nil
	}

	err := r.ParseMultipartForm(maxUploadMemory)
	if err != nil {
		return nil, nil, apperr.InvalidInput("invalid multipart body")
	}

	// The document rides in the "data" field; an unparseable or absent value
	// degrades to an empty document rather than rejecting the files.
	doc := model.Document{}
	if data := r.FormValue("data"); data != "" {
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			doc = model.Document{}
		}
	}

	var uploads []service.Upload
	for field, headers := range r.MultipartForm.File {
		if !strings.HasPrefix(field, "doc_") {
			continue
		}
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return nil, uploads, apperr.InvalidInput("unreadable upload " + fh.Filename)
			}
			uploads = append(uploads, service.Upload{
				Field:    field,
				Filename: fh.Filename,
				Content:  f,
			})
		}
	}
	return doc, uploads, nil
}

func closeUploads(uploads []service.Upload) {
	for _, up := range uploads {
		if c, ok := up.Content.(io.Closer); ok {
			c.Close()
		}
	}
}
