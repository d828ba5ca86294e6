package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"compliancedocs/internal/folder/model"
	"compliancedocs/internal/folder/repository"
	"compliancedocs/internal/folder/template"
	"compliancedocs/pkg/apperr"
	"compliancedocs/pkg/logger"
)

// maxConflictRetries bounds how often an aggregate recompute is retried
// after losing a version race before Conflict is surfaced to the caller.
const maxConflictRetries = 3

// Notifier receives domain events. Delivery is fire-and-forget: a failed or
// dropped publish never rolls back the state transition that produced it.
type Notifier interface {
	Publish(event model.Event)
}

// FolderService is the workflow orchestrator: the only component that
// mutates folder and document state.
type FolderService struct {
	Repo     *repository.FolderRepository
	Registry *template.Registry
	Authz    Authorizer
	Notify   Notifier
	Cache    *gocache.Cache
}

func NewFolderService(repo *repository.FolderRepository, registry *template.Registry, authz Authorizer, notify Notifier) *FolderService {
	return &FolderService{
		Repo:     repo,
		Registry: registry,
		Authz:    authz,
		Notify:   notify,
		Cache:    gocache.New(30*time.Second, 5*time.Minute),
	}
}

// Scaffold creates a folder plus its full document set from the category
// template, or returns the existing folder unchanged. The uniqueness
// constraint on (root, category) makes concurrent calls converge on one
// folder; this method never resets statuses of an existing folder.
func (s *FolderService) Scaffold(actor model.Actor, root model.RootEntityRef, category model.Category) (*model.FolderDetail, error) {
	if root.ID == "" || root.Kind == "" {
		return nil, apperr.New(apperr.Validation, "root entity reference is required")
	}
	if !s.Authz.CanContribute(actor, root) {
		return nil, apperr.New(apperr.Forbidden, "actor %s may not manage folders for this entity", actor.ID)
	}

	specs, err := s.Registry.SpecsFor(category)
	if err != nil {
		return nil, err
	}

	folder := &model.Folder{
		ID:       uuid.NewString(),
		Root:     root,
		Category: category,
		Status:   model.FolderDraft,
		Version:  1,
	}
	docs := make([]model.DocumentInstance, 0, len(specs))
	for _, spec := range specs {
		docs = append(docs, model.DocumentInstance{
			ID:       uuid.NewString(),
			FolderID: folder.ID,
			Type:     spec.Type,
			Name:     spec.Name,
			Required: spec.Required,
			Status:   model.DocEmpty,
		})
	}

	created, err := s.Repo.CreateFolder(folder, docs)
	if err != nil {
		return nil, err
	}
	if created {
		return &model.FolderDetail{Folder: *folder, Documents: docs}, nil
	}

	// Lost the create race or the folder predates this call: return the
	// existing one untouched.
	existing, err := s.Repo.GetFolderByRoot(root, category)
	if err != nil {
		return nil, err
	}
	existingDocs, err := s.Repo.ListDocuments(existing.ID)
	if err != nil {
		return nil, err
	}
	return &model.FolderDetail{Folder: *existing, Documents: existingDocs}, nil
}

// GetFolder returns a folder with its documents, served from a short-lived
// read cache that every mutation invalidates.
func (s *FolderService) GetFolder(id string) (*model.FolderDetail, error) {
	if cached, ok := s.Cache.Get(cacheKey(id)); ok {
		detail := cached.(model.FolderDetail)
		return &detail, nil
	}
	folder, err := s.Repo.GetFolder(id)
	if err != nil {
		return nil, err
	}
	docs, err := s.Repo.ListDocuments(id)
	if err != nil {
		return nil, err
	}
	detail := model.FolderDetail{Folder: *folder, Documents: docs}
	s.Cache.Set(cacheKey(id), detail, gocache.DefaultExpiration)
	return &detail, nil
}

func (s *FolderService) ListFolders(filter model.FolderFilter) ([]model.Folder, error) {
	return s.Repo.ListFolders(filter)
}

// UploadArtifact records a new artifact on a document slot. Allowed only
// while the document is EMPTY, REJECTED or EXPIRED and the owning folder is
// open for edits (DRAFT, REJECTED or EXPIRED). Superseding a prior artifact
// pushes the old state onto the audit trail; review metadata is cleared.
func (s *FolderService) UploadArtifact(actor model.Actor, documentID string, req model.UploadRequest) (*model.DocumentInstance, error) {
	ref := strings.TrimSpace(req.ArtifactRef)
	if ref == "" || strings.ContainsAny(ref, " \t\n") {
		return nil, apperr.New(apperr.Validation, "malformed artifact reference")
	}

	doc, err := s.Repo.GetDocument(documentID)
	if err != nil {
		return nil, err
	}
	folder, err := s.Repo.GetFolder(doc.FolderID)
	if err != nil {
		return nil, err
	}
	if !s.Authz.CanContribute(actor, folder.Root) {
		return nil, apperr.New(apperr.Forbidden, "actor %s may not upload for this entity", actor.ID)
	}

	if !uploadableDoc(doc.Status) {
		return nil, apperr.New(apperr.InvalidTransition, "document is %s, upload requires EMPTY, REJECTED or EXPIRED", doc.Status)
	}
	if !uploadableFolder(folder.Status) {
		return nil, apperr.New(apperr.InvalidTransition, "folder is %s, uploads are only allowed while it is open for edits", folder.Status)
	}

	var audit *model.AuditEntry
	if doc.ArtifactRef != "" {
		audit = &model.AuditEntry{
			ID:                  uuid.NewString(),
			DocumentID:          doc.ID,
			PreviousArtifactRef: doc.ArtifactRef,
			PreviousStatus:      doc.Status,
			DecidedBy:           actor.ID,
			DecidedAt:           time.Now(),
			Notes:               "artifact superseded",
		}
	}

	prev := doc.Status
	updated := *doc
	updated.ArtifactRef = ref
	updated.ExpirationDate = req.ExpirationDate
	updated.Status = model.DocPending
	updated.ReviewNotes = ""
	updated.ReviewedBy = ""
	updated.ReviewedAt = nil

	if err := s.Repo.ApplyUpload(&updated, prev, audit); err != nil {
		return nil, err
	}
	s.Cache.Delete(cacheKey(folder.ID))
	return &updated, nil
}

// SubmitFolder locks a folder into SUBMITTED for review. Every required
// document must carry an artifact (PENDING or APPROVED).
func (s *FolderService) SubmitFolder(actor model.Actor, folderID string) (*model.Folder, error) {
	for attempt := 0; ; attempt++ {
		folder, err := s.Repo.GetFolder(folderID)
		if err != nil {
			return nil, err
		}
		if !s.Authz.CanContribute(actor, folder.Root) {
			return nil, apperr.New(apperr.Forbidden, "actor %s may not submit for this entity", actor.ID)
		}
		if !uploadableFolder(folder.Status) {
			return nil, apperr.New(apperr.InvalidTransition, "folder is %s, submit requires DRAFT, REJECTED or EXPIRED", folder.Status)
		}

		docs, err := s.Repo.ListDocuments(folderID)
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			if d.Required && d.Status != model.DocPending && d.Status != model.DocApproved {
				return nil, apperr.New(apperr.Validation, "missing required documents")
			}
		}

		now := time.Now()
		err = s.Repo.MarkSubmitted(folderID, folder.Version, now)
		if apperr.IsKind(err, apperr.Conflict) && attempt < maxConflictRetries {
			continue
		}
		if err != nil {
			return nil, err
		}

		folder.Status = model.FolderSubmitted
		folder.SubmittedAt = &now
		folder.RejectionNotes = ""
		folder.Version++
		s.Cache.Delete(cacheKey(folderID))
		s.publish(model.Event{
			Type:     model.EventFolderSubmitted,
			FolderID: folder.ID,
			Category: folder.Category,
			Root:     folder.Root,
			Actor:    actor.ID,
			At:       now,
		})
		return folder, nil
	}
}

// ReviewDocument records one reviewer decision and recomputes the folder's
// aggregate status in the same transaction. Losing the version race against
// a sibling review triggers a fresh read and recompute, never a blind
// overwrite.
func (s *FolderService) ReviewDocument(actor model.Actor, documentID string, req model.ReviewRequest) (*model.DocumentInstance, error) {
	if req.Decision != model.DecisionApproved && req.Decision != model.DecisionRejected {
		return nil, apperr.New(apperr.Validation, "decision must be APPROVED or REJECTED")
	}
	if req.Decision == model.DecisionRejected && strings.TrimSpace(req.Notes) == "" {
		return nil, apperr.New(apperr.Validation, "rejection requires notes")
	}

	for attempt := 0; ; attempt++ {
		doc, err := s.Repo.GetDocument(documentID)
		if err != nil {
			return nil, err
		}
		folder, err := s.Repo.GetFolder(doc.FolderID)
		if err != nil {
			return nil, err
		}
		if !s.Authz.CanReview(actor, folder.Root) {
			return nil, apperr.New(apperr.Forbidden, "actor %s may not review for this entity", actor.ID)
		}
		if folder.Status != model.FolderSubmitted {
			return nil, apperr.New(apperr.InvalidTransition, "folder is %s, reviews require SUBMITTED", folder.Status)
		}
		if doc.Status != model.DocPending {
			return nil, apperr.New(apperr.InvalidTransition, "document is %s, reviews require PENDING", doc.Status)
		}

		now := time.Now()
		updated := *doc
		updated.Status = model.DocumentStatus(req.Decision)
		updated.ReviewNotes = req.Notes
		updated.ReviewedBy = actor.ID
		updated.ReviewedAt = &now

		audit := &model.AuditEntry{
			ID:                  uuid.NewString(),
			DocumentID:          doc.ID,
			PreviousArtifactRef: doc.ArtifactRef,
			PreviousStatus:      doc.Status,
			DecidedBy:           actor.ID,
			DecidedAt:           now,
			Notes:               req.Notes,
		}

		docs, err := s.Repo.ListDocuments(folder.ID)
		if err != nil {
			return nil, err
		}
		for i := range docs {
			if docs[i].ID == doc.ID {
				docs[i] = updated
			}
		}

		next := *folder
		next.Status = Recompute(docs)
		switch next.Status {
		case model.FolderApproved:
			next.ApprovedAt = &now
		case model.FolderRejected:
			next.RejectionNotes = req.Notes
		}

		err = s.Repo.ApplyReview(&updated, audit, &next)
		if apperr.IsKind(err, apperr.Conflict) && attempt < maxConflictRetries {
			logger.Sugar.Infof("Review of document %s lost the folder version race, retrying", documentID)
			continue
		}
		if err != nil {
			return nil, err
		}

		s.Cache.Delete(cacheKey(folder.ID))
		s.publish(model.Event{
			Type:       model.EventDocumentReviewed,
			FolderID:   folder.ID,
			Category:   folder.Category,
			Root:       folder.Root,
			DocumentID: doc.ID,
			Actor:      actor.ID,
			Notes:      req.Notes,
			At:         now,
		})
		switch next.Status {
		case model.FolderApproved:
			s.publish(model.Event{Type: model.EventFolderApproved, FolderID: folder.ID, Category: folder.Category, Root: folder.Root, Actor: actor.ID, At: now})
		case model.FolderRejected:
			s.publish(model.Event{Type: model.EventFolderRejected, FolderID: folder.ID, Category: folder.Category, Root: folder.Root, Actor: actor.ID, Notes: req.Notes, At: now})
		}
		return &updated, nil
	}
}

// SweepExpired demotes every approved document whose expiration date has
// passed. Folders holding an expired required document are forced out of
// APPROVED, or recomputed if still SUBMITTED. Documents not yet approved or
// without an expiration date are never touched. Returns the number of
// documents expired.
func (s *FolderService) SweepExpired(now time.Time) (int, error) {
	candidates, err := s.Repo.ListExpiredCandidates(now)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, doc := range candidates {
		expired, err := s.Repo.ExpireDocument(doc.ID)
		if err != nil {
			return count, err
		}
		if !expired {
			// A concurrent upload or sweep already moved it on.
			continue
		}
		count++
		s.Cache.Delete(cacheKey(doc.FolderID))

		folder, err := s.Repo.GetFolder(doc.FolderID)
		if err != nil {
			return count, err
		}
		s.publish(model.Event{
			Type:       model.EventDocumentExpired,
			FolderID:   folder.ID,
			Category:   folder.Category,
			Root:       folder.Root,
			DocumentID: doc.ID,
			At:         now,
		})

		if !doc.Required {
			continue
		}
		if err := s.expireFolder(folder); err != nil {
			return count, err
		}
	}
	return count, nil
}

// expireFolder propagates a required document expiry to its folder under the
// same version discipline as reviews. APPROVED folders drop to EXPIRED;
// SUBMITTED folders are re-derived from the fresh document set, since their
// status is owned by the aggregate calculation while review is in flight.
func (s *FolderService) expireFolder(folder *model.Folder) error {
	for attempt := 0; ; attempt++ {
		var err error
		switch folder.Status {
		case model.FolderApproved:
			err = s.Repo.MarkFolderExpired(folder.ID, folder.Version)
		case model.FolderSubmitted:
			docs, lerr := s.Repo.ListDocuments(folder.ID)
			if lerr != nil {
				return lerr
			}
			next := *folder
			next.Status = Recompute(docs)
			if next.Status == model.FolderSubmitted {
				return nil
			}
			next.RejectionNotes = "required document expired"
			err = s.Repo.UpdateFolderStatus(&next)
		default:
			return nil
		}
		if apperr.IsKind(err, apperr.Conflict) && attempt < maxConflictRetries {
			fresh, rerr := s.Repo.GetFolder(folder.ID)
			if rerr != nil {
				return rerr
			}
			folder = fresh
			continue
		}
		if err != nil {
			return err
		}
		s.Cache.Delete(cacheKey(folder.ID))
		s.publish(model.Event{
			Type:     model.EventFolderRejected,
			FolderID: folder.ID,
			Category: folder.Category,
			Root:     folder.Root,
			Notes:    "required document expired",
			At:       time.Now(),
		})
		return nil
	}
}

// ExpiryWorker runs the sweep on a fixed interval.
func (s *FolderService) ExpiryWorker(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		count, err := s.SweepExpired(time.Now())
		if err != nil {
			logger.Sugar.Errorf("Expiry sweep failed: %v", err)
			continue
		}
		if count > 0 {
			logger.Sugar.Infof("Expiry sweep demoted %d document(s)", count)
		}
	}
}

func (s *FolderService) GetAuditTrail(documentID string) ([]model.AuditEntry, error) {
	if _, err := s.Repo.GetDocument(documentID); err != nil {
		return nil, err
	}
	return s.Repo.ListAudit(documentID)
}

// DeleteFolder removes a folder with all its documents and audit history.
// Called when the owning root entity is deleted.
func (s *FolderService) DeleteFolder(actor model.Actor, folderID string) error {
	folder, err := s.Repo.GetFolder(folderID)
	if err != nil {
		return err
	}
	if !s.Authz.CanContribute(actor, folder.Root) {
		return apperr.New(apperr.Forbidden, "actor %s may not delete folders for this entity", actor.ID)
	}
	if err := s.Repo.DeleteFolder(folderID); err != nil {
		return err
	}
	s.Cache.Delete(cacheKey(folderID))
	return nil
}

func (s *FolderService) publish(event model.Event) {
	if s.Notify == nil {
		return
	}
	s.Notify.Publish(event)
}

func uploadableDoc(status model.DocumentStatus) bool {
	return status == model.DocEmpty || status == model.DocRejected || status == model.DocExpired
}

func uploadableFolder(status model.FolderStatus) bool {
	return status == model.FolderDraft || status == model.FolderRejected || status == model.FolderExpired
}

func cacheKey(folderID string) string {
	return "folder:" + folderID
}
