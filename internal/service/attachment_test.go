package service

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partnerdesk/partnerdesk/internal/model"
)

// memStorage collects saved files in memory and records deletes.
type memStorage struct {
	mu      sync.Mutex
	files   map[string][]byte
	deleted []string
}

func newMemStorage() *memStorage {
	return &memStorage{files: map[string][]byte{}}
}

func (m *memStorage) Save(ctx context.Context, path string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = b
	return nil
}

func (m *memStorage) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	m.deleted = append(m.deleted, path)
	return nil
}

func (m *memStorage) Serve(w http.ResponseWriter, r *http.Request, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Write(b)
}

func TestSaveInjectsDocumentReferences(t *testing.T) {
	st := newMemStorage()
	attachments := NewAttachmentService(st)

	doc := model.Document{"id": "l1"}
	err := attachments.Save(context.Background(), doc, []Upload{
		{Field: "doc_pan", Filename: "pan.png", Content: bytes.NewBufferString("png-bytes")},
		{Field: "doc_agreement", Filename: "agreement.pdf", Content: bytes.NewBufferString("pdf-bytes")},
	})
	require.NoError(t, err)

	docs, ok := doc["documents"].(map[string]any)
	require.True(t, ok)

	pan, _ := docs["pan"].(string)
	assert.True(t, strings.HasPrefix(pan, PublicPrefix+"img/doc_"), pan)
	assert.True(t, strings.HasSuffix(pan, ".png"), pan)

	agreement, _ := docs["agreement"].(string)
	assert.True(t, strings.HasPrefix(agreement, PublicPrefix+"docs/doc_"), agreement)

	// The bytes landed under the reference's storage path.
	assert.Equal(t, []byte("png-bytes"), st.files[strings.TrimPrefix(pan, PublicPrefix)])
}

func TestSaveKeepsExistingDocumentEntries(t *testing.T) {
	attachments := NewAttachmentService(newMemStorage())

	doc := model.Document{
		"id":        "l1",
		"documents": map[string]any{"aadhaar": "/api/uploads/img/doc_1_aa.png"},
	}
	err := attachments.Save(context.Background(), doc, []Upload{
		{Field: "doc_pan", Filename: "pan.jpg", Content: bytes.NewBufferString("x")},
	})
	require.NoError(t, err)

	docs := doc["documents"].(map[string]any)
	assert.Equal(t, "/api/uploads/img/doc_1_aa.png", docs["aadhaar"])
	assert.Contains(t, docs, "pan")
}

func TestReferencesWalksNestedValues(t *testing.T) {
	doc := model.Document{
		"id":   "l1",
		"note": "plain string",
		"documents": map[string]any{
			"pan": "/api/uploads/img/doc_1_aa.png",
		},
		"history": []any{
			map[string]any{"attachment": "/api/uploads/docs/doc_2_bb.pdf"},
			"/api/uploads/img/doc_3_cc.png",
		},
		"external": "https://example.com/not-ours.png",
	}

	refs := References(doc)
	assert.Equal(t, []string{
		"/api/uploads/docs/doc_2_bb.pdf",
		"/api/uploads/img/doc_1_aa.png",
		"/api/uploads/img/doc_3_cc.png",
	}, refs)
}

func TestOrphanedReturnsDroppedReferences(t *testing.T) {
	prior := model.Document{
		"documents": map[string]any{
			"pan":     "/api/uploads/img/doc_1_aa.png",
			"aadhaar": "/api/uploads/img/doc_2_bb.png",
		},
	}
	merged := model.Document{
		"documents": map[string]any{
			"pan": "/api/uploads/img/doc_1_aa.png",
		},
	}

	assert.Equal(t, []string{"/api/uploads/img/doc_2_bb.png"}, Orphaned(prior, merged))
	assert.Empty(t, Orphaned(prior, prior))
}
