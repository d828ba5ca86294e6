package model

import "time"

// Category is a fixed compliance domain with its own document template.
type Category string

const (
	CategoryCompany   Category = "COMPANY"
	CategoryWorkOrder Category = "WORK_ORDER"
	CategoryVehicles  Category = "VEHICLES"
	CategoryWorkers   Category = "WORKERS"
)

// RootEntityKind identifies which kind of entity owns a folder.
type RootEntityKind string

const (
	RootCompany   RootEntityKind = "company"
	RootWorkOrder RootEntityKind = "work_order"
	RootVehicle   RootEntityKind = "vehicle"
	RootWorker    RootEntityKind = "worker"
)

// RootEntityRef points at the company, work order, vehicle or worker
// that owns a folder.
type RootEntityRef struct {
	Kind RootEntityKind `json:"kind"`
	ID   string         `json:"id"`
}

// DocumentStatus is the review lifecycle state of a single document slot.
type DocumentStatus string

const (
	DocEmpty    DocumentStatus = "EMPTY"
	DocPending  DocumentStatus = "PENDING"
	DocApproved DocumentStatus = "APPROVED"
	DocRejected DocumentStatus = "REJECTED"
	DocExpired  DocumentStatus = "EXPIRED"
)

// FolderStatus is the folder-level workflow state. While SUBMITTED it is
// derived from the documents; DRAFT, REJECTED, APPROVED and EXPIRED are
// explicit declarations.
type FolderStatus string

const (
	FolderDraft     FolderStatus = "DRAFT"
	FolderSubmitted FolderStatus = "SUBMITTED"
	FolderApproved  FolderStatus = "APPROVED"
	FolderRejected  FolderStatus = "REJECTED"
	FolderExpired   FolderStatus = "EXPIRED"
)

// DocumentSpec is one entry of a category template. Immutable configuration
// data owned by the template registry, never persisted per instance.
type DocumentSpec struct {
	Category    Category `json:"category"`
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Required    bool     `json:"required"`
	Description string   `json:"description,omitempty"`
}

// Folder is the per-root-entity, per-category container of document
// instances and the unit of the submit/review workflow. Version backs the
// optimistic compare-and-swap on status recomputes.
type Folder struct {
	ID             string        `json:"id"`
	Root           RootEntityRef `json:"root"`
	Category       Category      `json:"category"`
	Status         FolderStatus  `json:"status"`
	Version        int64         `json:"-"`
	SubmittedAt    *time.Time    `json:"submitted_at,omitempty"`
	ApprovedAt     *time.Time    `json:"approved_at,omitempty"`
	RejectionNotes string        `json:"rejection_notes,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// DocumentInstance is one required-or-optional artifact slot.
// Status is EMPTY exactly when ArtifactRef is empty.
type DocumentInstance struct {
	ID             string         `json:"id"`
	FolderID       string         `json:"folder_id"`
	Type           string         `json:"type"`
	Name           string         `json:"name"`
	Required       bool           `json:"required"`
	ArtifactRef    string         `json:"artifact_ref,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	Status         DocumentStatus `json:"status"`
	ReviewNotes    string         `json:"review_notes,omitempty"`
	ReviewedBy     string         `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time     `json:"reviewed_at,omitempty"`
}

// AuditEntry is one immutable record of a superseded artifact or a past
// review decision.
type AuditEntry struct {
	ID                  string         `json:"id"`
	DocumentID          string         `json:"document_id"`
	PreviousArtifactRef string         `json:"previous_artifact_ref,omitempty"`
	PreviousStatus      DocumentStatus `json:"previous_status"`
	DecidedBy           string         `json:"decided_by"`
	DecidedAt           time.Time      `json:"decided_at"`
	Notes               string         `json:"notes,omitempty"`
}

// ReviewDecision is the reviewer's verdict on a single document.
type ReviewDecision string

const (
	DecisionApproved ReviewDecision = "APPROVED"
	DecisionRejected ReviewDecision = "REJECTED"
)
