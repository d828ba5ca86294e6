package model

import "time"

type ScaffoldRequest struct {
	RootKind RootEntityKind `json:"root_kind"`
	RootID   string         `json:"root_id"`
	Category Category       `json:"category"`
}

type UploadRequest struct {
	ArtifactRef    string     `json:"artifact_ref"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

type ReviewRequest struct {
	Decision ReviewDecision `json:"decision"`
	Notes    string         `json:"notes,omitempty"`
}

type FolderFilter struct {
	RootKind RootEntityKind
	RootID   string
	Category Category
	Status   FolderStatus
}

// FolderDetail is the getFolder response: the folder plus its documents.
type FolderDetail struct {
	Folder    Folder             `json:"folder"`
	Documents []DocumentInstance `json:"documents"`
}

type SweepRequest struct {
	Now *time.Time `json:"now,omitempty"`
}

type SweepResponse struct {
	Expired int `json:"expired"`
}

// Event types published to the notification feed.
const (
	EventFolderSubmitted  = "FOLDER_SUBMITTED"
	EventDocumentReviewed = "DOCUMENT_REVIEWED"
	EventFolderApproved   = "FOLDER_APPROVED"
	EventFolderRejected   = "FOLDER_REJECTED"
	EventDocumentExpired  = "DOCUMENT_EXPIRED"
)

// Event is one domain event with enough context for a notification
// collaborator to render a message. Delivery is fire-and-forget.
type Event struct {
	Type       string        `json:"type"`
	FolderID   string        `json:"folder_id"`
	Category   Category      `json:"category"`
	Root       RootEntityRef `json:"root"`
	DocumentID string        `json:"document_id,omitempty"`
	Actor      string        `json:"actor,omitempty"`
	Notes      string        `json:"notes,omitempty"`
	At         time.Time     `json:"at"`
}
