package service

import "compliancedocs/internal/folder/model"

// Recompute derives a submitted folder's aggregate status from its document
// set. Pure: no mutation, no side effects. Only the orchestrator writes the
// result back to the folder.
//
// A required REJECTED or EXPIRED document rejects the folder outright; the
// folder is APPROVED only when every required document is APPROVED;
// otherwise it stays SUBMITTED. Non-required documents never block.
func Recompute(docs []model.DocumentInstance) model.FolderStatus {
	allApproved := true
	for _, d := range docs {
		if !d.Required {
			continue
		}
		switch d.Status {
		case model.DocRejected, model.DocExpired:
			return model.FolderRejected
		case model.DocApproved:
		default:
			allApproved = false
		}
	}
	if allApproved {
		return model.FolderApproved
	}
	return model.FolderSubmitted
}
