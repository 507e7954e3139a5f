package service

import (
	"context"

	"github.com/partnerdesk/partnerdesk/internal/apperr"
	"github.com/partnerdesk/partnerdesk/internal/cleanup"
	"github.com/partnerdesk/partnerdesk/internal/model"
	"github.com/partnerdesk/partnerdesk/internal/registry"
	"github.com/partnerdesk/partnerdesk/internal/store"
)

// RecordService is the write-through layer over the document store. It owns
// the pieces the store deliberately doesn't: file uploads become document
// references before the merge, account passwords become digests before they
// reach the row, and files that a write stopped referencing are handed to
// the cleanup worker after the transaction commits.
type RecordService struct {
	store       *store.Store
	attachments *AttachmentService
	cleanup     *cleanup.Worker
	creds       *CredentialService
}

func NewRecordService(st *store.Store, attachments *AttachmentService, cw *cleanup.Worker, creds *CredentialService) *RecordService {
	return &RecordService{
		store:       st,
		attachments: attachments,
		cleanup:     cw,
		creds:       creds,
	}
}

func (s *RecordService) List(ctx context.Context, collection string) ([]model.Document, error) {
	return s.store.List(ctx, collection)
}

func (s *RecordService) Get(ctx context.Context, collection, id string) (model.Document, error) {
	return s.store.Get(ctx, collection, id)
}

// Upsert merges a partial document into its collection. The collection and
// record id are validated before any file is written, so a bad request never
// leaves stray uploads behind. On a merge, files referenced by the prior
// document but not the merged one are scheduled for deletion.
func (s *RecordService) Upsert(ctx context.Context, collection string, partial model.Document, uploads []Upload) (model.Document, error) {
	col, ok := registry.Lookup(collection)
	if !ok {
		return nil, apperr.NotFound("not found")
	}
	if _, ok := partial.ID(); !ok {
		return nil, apperr.InvalidInput("missing record id")
	}

	partial = partial.Clone()
	err := s.attachments.Save(ctx, partial, uploads)
	if err != nil {
		return nil, apperr.Storage(err)
	}

	var opts store.UpsertOptions
	if col.Strategy == registry.Normalized {
		// A plaintext password never reaches the row, whether or not it
		// hashes successfully.
		pw, _ := partial["password"].(string)
		delete(partial, "password")
		if pw != "" {
			digest, err := s.creds.Hash(pw)
			if err != nil {
				return nil, apperr.Storage(err)
			}
			opts.PasswordHash = &digest
		}
	}

	res, err := s.store.Upsert(ctx, collection, partial, opts)
	if err != nil {
		return nil, err
	}
	if res.Prior != nil {
		s.cleanup.Schedule(Orphaned(res.Prior, res.Merged)...)
	}
	return res.Merged, nil
}

// Delete removes the record and schedules every file it referenced for
// deletion. Deleting an absent record succeeds and schedules nothing.
func (s *RecordService) Delete(ctx context.Context, collection, id string) error {
	prior, err := s.store.Delete(ctx, collection, id)
	if err != nil {
		return err
	}
	if prior != nil {
		s.cleanup.Schedule(References(prior)...)
	}
	return nil
}
