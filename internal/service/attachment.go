package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/partnerdesk/partnerdesk/internal/model"
	"github.com/partnerdesk/partnerdesk/internal/storage"
)

// PublicPrefix is the URL prefix under which stored attachments are served.
// A document value starting with this prefix is treated as an attachment
// reference wherever it appears.
const PublicPrefix = "/api/uploads/"

// Upload is one multipart file destined for a record's documents map. Field
// is the raw form field name; the "doc_" marker is stripped when the public
// reference is written back into the document.
type Upload struct {
	Field    string
	Filename string
	Content  io.Reader
}

// AttachmentService stores uploaded files and rewrites them into document
// references.
type AttachmentService struct {
	storage storage.Storage
}

func NewAttachmentService(st storage.Storage) *AttachmentService {
	return &AttachmentService{storage: st}
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".avif": true, ".svg": true,
}

// Save writes each upload to storage under a fresh collision-free name and
// records its public reference in the document's documents map, keyed by the
// form field name minus the "doc_" prefix. The document is mutated in place.
func (s *AttachmentService) Save(ctx context.Context, doc model.Document, uploads []Upload) error {
	if len(uploads) == 0 {
		return nil
	}

	docs, _ := doc["documents"].(map[string]any)
	if docs == nil {
		docs = map[string]any{}
	}
	for _, up := range uploads {
		p, err := storagePath(up.Filename)
		if err != nil {
			return err
		}
		err = s.storage.Save(ctx, p, up.Content)
		if err != nil {
			return fmt.Errorf("failed to store attachment %q: %w", up.Filename, err)
		}
		field := strings.TrimPrefix(up.Field, "doc_")
		docs[field] = PublicPrefix + p
	}
	doc["documents"] = docs
	return nil
}

// storagePath builds the stored name from a timestamp and random suffix,
// keeping only the original extension. Images and PDFs get their own
// subfolders.
func storagePath(original string) (string, error) {
	suffix := make([]byte, 4)
	_, err := rand.Read(suffix)
	if err != nil {
		return "", err
	}
	ext := strings.ToLower(path.Ext(original))
	name := fmt.Sprintf("doc_%d_%s%s", time.Now().UnixMilli(), hex.EncodeToString(suffix), ext)
	switch {
	case imageExts[ext]:
		return "img/" + name, nil
	case ext == ".pdf":
		return "docs/" + name, nil
	default:
		return name, nil
	}
}

// References walks the document and collects every attachment reference,
// wherever it is nested. The result is sorted and de-duplicated.
func References(doc model.Document) []string {
	set := map[string]struct{}{}
	collectRefs(map[string]any(doc), set)
	refs := make([]string, 0, len(set))
	for ref := range set {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// Orphaned returns the references present in prior but absent from merged,
// i.e. the files an upsert stopped referencing.
func Orphaned(prior, merged model.Document) []string {
	kept := map[string]struct{}{}
	collectRefs(map[string]any(merged), kept)

	var orphans []string
	for _, ref := range References(prior) {
		if _, ok := kept[ref]; !ok {
			orphans = append(orphans, ref)
		}
	}
	return orphans
}

func collectRefs(v any, set map[string]struct{}) {
	switch t := v.(type) {
	case string:
		if strings.HasPrefix(t, PublicPrefix) {
			set[t] = struct{}{}
		}
	case map[string]any:
		for _, child := range t {
			collectRefs(child, set)
		}
	case model.Document:
		collectRefs(map[string]any(t), set)
	case []any:
		for _, child := range t {
			collectRefs(child, set)
		}
	}
}
