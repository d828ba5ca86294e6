package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"compliancedocs/internal/folder/model"
	"compliancedocs/internal/folder/service"
	"compliancedocs/middleware"
	"compliancedocs/pkg/apperr"
	"compliancedocs/pkg/logger"
)

type FolderHandler struct {
	Service *service.FolderService
}

func NewFolderHandler(service *service.FolderService) *FolderHandler {
	return &FolderHandler{Service: service}
}

func (h *FolderHandler) ScaffoldFolder(w http.ResponseWriter, r *http.Request) {
	var req model.ScaffoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	actor := middleware.ActorFrom(r.Context())

	detail, err := h.Service.Scaffold(actor, model.RootEntityRef{Kind: req.RootKind, ID: req.RootID}, req.Category)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to scaffold folder for %s/%s: %v", req.RootKind, req.RootID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

func (h *FolderHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.FolderFilter{
		RootKind: model.RootEntityKind(q.Get("rootKind")),
		RootID:   q.Get("rootId"),
		Category: model.Category(q.Get("category")),
		Status:   model.FolderStatus(q.Get("status")),
	}

	folders, err := h.Service.ListFolders(filter)
	if err != nil {
		logger.Sugar.Errorf("Error listing folders: %v", err)
		writeError(w, err)
		return
	}
	if folders == nil {
		folders = []model.Folder{}
	}
	writeJSON(w, http.StatusOK, folders)
}

func (h *FolderHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	folderID := mux.Vars(r)["folderId"]

	detail, err := h.Service.GetFolder(folderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *FolderHandler) SubmitFolder(w http.ResponseWriter, r *http.Request) {
	folderID := mux.Vars(r)["folderId"]
	actor := middleware.ActorFrom(r.Context())

	folder, err := h.Service.SubmitFolder(actor, folderID)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to submit folder %s: %v", folderID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

func (h *FolderHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["documentId"]

	var req model.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	actor := middleware.ActorFrom(r.Context())

	doc, err := h.Service.UploadArtifact(actor, documentID, req)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to upload artifact for document %s: %v", documentID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *FolderHandler) ReviewDocument(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["documentId"]

	var req model.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	actor := middleware.ActorFrom(r.Context())

	doc, err := h.Service.ReviewDocument(actor, documentID, req)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to review document %s: %v", documentID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *FolderHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["documentId"]

	entries, err := h.Service.GetAuditTrail(documentID)
	if err != nil {
		logger.Sugar.Errorf("Error fetching audit trail for document %s: %v", documentID, err)
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *FolderHandler) SweepExpired(w http.ResponseWriter, r *http.Request) {
	var req model.SweepRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // Empty body means sweep at the current time.

	now := time.Now()
	if req.Now != nil {
		now = *req.Now
	}

	count, err := h.Service.SweepExpired(now)
	if err != nil {
		logger.Sugar.Errorf("Handler: Expiry sweep failed: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.SweepResponse{Expired: count})
}

func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	folderID := mux.Vars(r)["folderId"]
	actor := middleware.ActorFrom(r.Context())

	if err := h.Service.DeleteFolder(actor, folderID); err != nil {
		logger.Sugar.Errorf("Handler: Failed to delete folder %s: %v", folderID, err)
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Folder deleted successfully"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeError maps the engine's error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.UnknownCategory, apperr.Validation:
		status = http.StatusBadRequest
	case apperr.InvalidTransition, apperr.Conflict:
		status = http.StatusConflict
	case apperr.Forbidden:
		status = http.StatusForbidden
	}

	resp := errorResponse{Error: err.Error()}
	if kind != 0 {
		resp.Kind = kind.String()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
