package repository

import (
	"database/sql"
	"strconv"
	"time"

	"compliancedocs/internal/folder/model"
	"compliancedocs/pkg/apperr"
	"compliancedocs/pkg/logger"
)

// FolderRepository persists folders, document instances and the audit trail.
// Mutations that touch a folder's aggregate status go through an optimistic
// compare-and-swap on the folder version column; callers retry on Conflict.
type FolderRepository struct {
	DB *sql.DB
}

func NewFolderRepository(db *sql.DB) *FolderRepository {
	return &FolderRepository{DB: db}
}

const folderColumns = `id, root_kind, root_id, category, status, version, submitted_at, approved_at, rejection_notes, created_at, updated_at`

const documentColumns = `id, folder_id, type, name, required, artifact_ref, expiration_date, status, review_notes, reviewed_by, reviewed_at`

// CreateFolder atomically creates a folder together with its full document
// set. Returns false without touching anything when a folder for the same
// (root, category) already exists: the unique constraint, not a
// check-then-create, carries the idempotency.
func (r *FolderRepository) CreateFolder(f *model.Folder, docs []model.DocumentInstance) (bool, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		logger.Sugar.Errorf("Failed to begin scaffold tx: %v", err)
		return false, err
	}
	defer tx.Rollback()

	// RETURNING feeds the server-side timestamps back into f, so callers
	// hand out exactly what a later read will see.
	err = tx.QueryRow(`INSERT INTO folders (id, root_kind, root_id, category, status, version, rejection_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, '', NOW(), NOW())
		ON CONFLICT (root_kind, root_id, category) DO NOTHING
		RETURNING created_at, updated_at`,
		f.ID, f.Root.Kind, f.Root.ID, f.Category, f.Status, f.Version).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to insert folder for %s/%s: %v", f.Root.Kind, f.Root.ID, err)
		return false, err
	}

	for i, d := range docs {
		_, err = tx.Exec(`INSERT INTO documents (id, folder_id, type, name, required, position, artifact_ref, status, review_notes, reviewed_by)
			VALUES ($1, $2, $3, $4, $5, $6, '', $7, '', '')`,
			d.ID, d.FolderID, d.Type, d.Name, d.Required, i, d.Status)
		if err != nil {
			logger.Sugar.Errorf("Failed to insert document %s for folder %s: %v", d.Type, f.ID, err)
			return false, err
		}
	}

	if err = tx.Commit(); err != nil {
		logger.Sugar.Errorf("Failed to commit scaffold for folder %s: %v", f.ID, err)
		return false, err
	}
	return true, nil
}

func (r *FolderRepository) GetFolder(id string) (*model.Folder, error) {
	row := r.DB.QueryRow(`SELECT `+folderColumns+` FROM folders WHERE id = $1`, id)
	return scanFolder(row)
}

func (r *FolderRepository) GetFolderByRoot(root model.RootEntityRef, category model.Category) (*model.Folder, error) {
	row := r.DB.QueryRow(`SELECT `+folderColumns+` FROM folders WHERE root_kind = $1 AND root_id = $2 AND category = $3`,
		root.Kind, root.ID, category)
	return scanFolder(row)
}

func (r *FolderRepository) ListFolders(filter model.FolderFilter) ([]model.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders WHERE 1=1`
	args := []interface{}{}
	if filter.RootKind != "" {
		args = append(args, filter.RootKind)
		query += ` AND root_kind = $` + strconv.Itoa(len(args))
	}
	if filter.RootID != "" {
		args = append(args, filter.RootID)
		query += ` AND root_id = $` + strconv.Itoa(len(args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += ` AND category = $` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		logger.Sugar.Errorf("Failed to list folders: %v", err)
		return nil, err
	}
	defer rows.Close()

	var folders []model.Folder
	for rows.Next() {
		f, err := scanFolderRows(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, *f)
	}
	return folders, rows.Err()
}

func (r *FolderRepository) ListDocuments(folderID string) ([]model.DocumentInstance, error) {
	rows, err := r.DB.Query(`SELECT `+documentColumns+` FROM documents WHERE folder_id = $1 ORDER BY position ASC`, folderID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list documents for folder %s: %v", folderID, err)
		return nil, err
	}
	defer rows.Close()

	var docs []model.DocumentInstance
	for rows.Next() {
		d, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

func (r *FolderRepository) GetDocument(id string) (*model.DocumentInstance, error) {
	row := r.DB.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

// ApplyUpload records a new artifact on a document. The status predicate
// makes the write a compare-and-swap: if a concurrent operation moved the
// document out of prev, nothing is written and Conflict is returned.
// When the upload supersedes a prior artifact, the audit entry rides in
// the same transaction.
func (r *FolderRepository) ApplyUpload(doc *model.DocumentInstance, prev model.DocumentStatus, audit *model.AuditEntry) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if audit != nil {
		if err := insertAudit(tx, audit); err != nil {
			return err
		}
	}

	res, err := tx.Exec(`UPDATE documents SET artifact_ref = $1, expiration_date = $2, status = $3,
		review_notes = '', reviewed_by = '', reviewed_at = NULL
		WHERE id = $4 AND status = $5`,
		doc.ArtifactRef, nullTime(doc.ExpirationDate), doc.Status, doc.ID, prev)
	if err != nil {
		logger.Sugar.Errorf("Failed to apply upload for document %s: %v", doc.ID, err)
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.New(apperr.Conflict, "document %s changed concurrently", doc.ID)
	}
	return tx.Commit()
}

// ApplyReview writes one review decision and the folder's recomputed
// aggregate status in a single transaction. The folder update is guarded by
// the version the caller read; losing the race surfaces as Conflict so the
// caller recomputes from a fresh read instead of overwriting.
func (r *FolderRepository) ApplyReview(doc *model.DocumentInstance, audit *model.AuditEntry, folder *model.Folder) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertAudit(tx, audit); err != nil {
		return err
	}

	res, err := tx.Exec(`UPDATE documents SET status = $1, review_notes = $2, reviewed_by = $3, reviewed_at = $4
		WHERE id = $5 AND status = $6`,
		doc.Status, doc.ReviewNotes, doc.ReviewedBy, nullTime(doc.ReviewedAt), doc.ID, model.DocPending)
	if err != nil {
		logger.Sugar.Errorf("Failed to apply review for document %s: %v", doc.ID, err)
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.New(apperr.Conflict, "document %s is no longer pending", doc.ID)
	}

	res, err = tx.Exec(`UPDATE folders SET status = $1, approved_at = $2, rejection_notes = $3,
		version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5`,
		folder.Status, nullTime(folder.ApprovedAt), folder.RejectionNotes, folder.ID, folder.Version)
	if err != nil {
		logger.Sugar.Errorf("Failed to update folder %s after review: %v", folder.ID, err)
		return err
	}
	rows, err = res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.New(apperr.Conflict, "folder %s changed concurrently", folder.ID)
	}
	return tx.Commit()
}

// MarkSubmitted moves a folder into SUBMITTED, guarded by version.
func (r *FolderRepository) MarkSubmitted(id string, version int64, at time.Time) error {
	res, err := r.DB.Exec(`UPDATE folders SET status = $1, submitted_at = $2, rejection_notes = '',
		version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4`,
		model.FolderSubmitted, at, id, version)
	if err != nil {
		logger.Sugar.Errorf("Failed to submit folder %s: %v", id, err)
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.New(apperr.Conflict, "folder %s changed concurrently", id)
	}
	return nil
}

// ExpireDocument flips one approved document to EXPIRED. Returns false when
// the document was no longer approved, which the sweep treats as already
// handled rather than an error.
func (r *FolderRepository) ExpireDocument(id string) (bool, error) {
	res, err := r.DB.Exec(`UPDATE documents SET status = $1 WHERE id = $2 AND status = $3`,
		model.DocExpired, id, model.DocApproved)
	if err != nil {
		logger.Sugar.Errorf("Failed to expire document %s: %v", id, err)
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// UpdateFolderStatus writes a recomputed aggregate status outside of a
// review transaction, guarded by version. Used by the expiry sweep when a
// SUBMITTED folder must be re-derived from its documents.
func (r *FolderRepository) UpdateFolderStatus(f *model.Folder) error {
	res, err := r.DB.Exec(`UPDATE folders SET status = $1, approved_at = $2, rejection_notes = $3,
		version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5`,
		f.Status, nullTime(f.ApprovedAt), f.RejectionNotes, f.ID, f.Version)
	if err != nil {
		logger.Sugar.Errorf("Failed to update folder %s status: %v", f.ID, err)
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.New(apperr.Conflict, "folder %s changed concurrently", f.ID)
	}
	return nil
}

// MarkFolderExpired forces a folder out of APPROVED, guarded by version.
func (r *FolderRepository) MarkFolderExpired(id string, version int64) error {
	res, err := r.DB.Exec(`UPDATE folders SET status = $1, approved_at = NULL,
		version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3 AND status = $4`,
		model.FolderExpired, id, version, model.FolderApproved)
	if err != nil {
		logger.Sugar.Errorf("Failed to expire folder %s: %v", id, err)
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.New(apperr.Conflict, "folder %s changed concurrently", id)
	}
	return nil
}

func (r *FolderRepository) ListExpiredCandidates(now time.Time) ([]model.DocumentInstance, error) {
	rows, err := r.DB.Query(`SELECT `+documentColumns+` FROM documents
		WHERE status = $1 AND expiration_date IS NOT NULL AND expiration_date < $2`,
		model.DocApproved, now)
	if err != nil {
		logger.Sugar.Errorf("Failed to list expiry candidates: %v", err)
		return nil, err
	}
	defer rows.Close()

	var docs []model.DocumentInstance
	for rows.Next() {
		d, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

func (r *FolderRepository) ListAudit(documentID string) ([]model.AuditEntry, error) {
	rows, err := r.DB.Query(`SELECT id, document_id, previous_artifact_ref, previous_status, decided_by, decided_at, notes
		FROM audit_entries WHERE document_id = $1 ORDER BY decided_at ASC`, documentID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list audit entries for document %s: %v", documentID, err)
		return nil, err
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.PreviousArtifactRef, &e.PreviousStatus, &e.DecidedBy, &e.DecidedAt, &e.Notes); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteFolder removes a folder with its documents and their audit trail in
// one transaction, parameterized by folder id only.
func (r *FolderRepository) DeleteFolder(id string) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM audit_entries WHERE document_id IN (SELECT id FROM documents WHERE folder_id = $1)`, id); err != nil {
		logger.Sugar.Errorf("Failed to delete audit entries for folder %s: %v", id, err)
		return err
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE folder_id = $1`, id); err != nil {
		logger.Sugar.Errorf("Failed to delete documents for folder %s: %v", id, err)
		return err
	}
	res, err := tx.Exec(`DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete folder %s: %v", id, err)
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.New(apperr.NotFound, "folder %s not found", id)
	}
	return tx.Commit()
}

func insertAudit(tx *sql.Tx, e *model.AuditEntry) error {
	_, err := tx.Exec(`INSERT INTO audit_entries (id, document_id, previous_artifact_ref, previous_status, decided_by, decided_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.DocumentID, e.PreviousArtifactRef, e.PreviousStatus, e.DecidedBy, e.DecidedAt, e.Notes)
	if err != nil {
		logger.Sugar.Errorf("Failed to insert audit entry for document %s: %v", e.DocumentID, err)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFolderInto(s rowScanner) (*model.Folder, error) {
	var f model.Folder
	var submittedAt, approvedAt sql.NullTime
	err := s.Scan(&f.ID, &f.Root.Kind, &f.Root.ID, &f.Category, &f.Status, &f.Version,
		&submittedAt, &approvedAt, &f.RejectionNotes, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if submittedAt.Valid {
		f.SubmittedAt = &submittedAt.Time
	}
	if approvedAt.Valid {
		f.ApprovedAt = &approvedAt.Time
	}
	return &f, nil
}

func scanFolder(row *sql.Row) (*model.Folder, error) {
	f, err := scanFolderInto(row)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "folder not found")
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to scan folder: %v", err)
		return nil, err
	}
	return f, nil
}

func scanFolderRows(rows *sql.Rows) (*model.Folder, error) {
	return scanFolderInto(rows)
}

func scanDocumentInto(s rowScanner) (*model.DocumentInstance, error) {
	var d model.DocumentInstance
	var expiration, reviewedAt sql.NullTime
	err := s.Scan(&d.ID, &d.FolderID, &d.Type, &d.Name, &d.Required, &d.ArtifactRef,
		&expiration, &d.Status, &d.ReviewNotes, &d.ReviewedBy, &reviewedAt)
	if err != nil {
		return nil, err
	}
	if expiration.Valid {
		d.ExpirationDate = &expiration.Time
	}
	if reviewedAt.Valid {
		d.ReviewedAt = &reviewedAt.Time
	}
	return &d, nil
}

func scanDocument(row *sql.Row) (*model.DocumentInstance, error) {
	d, err := scanDocumentInto(row)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "document not found")
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to scan document: %v", err)
		return nil, err
	}
	return d, nil
}

func scanDocumentRows(rows *sql.Rows) (*model.DocumentInstance, error) {
	return scanDocumentInto(rows)
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

