package handler

import (
	"net/http"

	"github.com/partnerdesk/partnerdesk/internal/storage"
)

// UploadsHandler serves stored attachment files under the public prefix.
// The storage backend decides how: local disk streams the file, S3 redirects
// to a presigned URL.
type UploadsHandler struct {
	storage storage.Storage
}

func NewUploadsHandler(st storage.Storage) *UploadsHandler {
	return &UploadsHandler{storage: st}
}

func (h *UploadsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.storage.Serve(w, r, r.URL.Path)
}
