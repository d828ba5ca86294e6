package router

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"

	folderHandler "compliancedocs/internal/folder"
	"compliancedocs/internal/folder/repository"
	"compliancedocs/internal/folder/service"
	"compliancedocs/internal/folder/template"
	"compliancedocs/middleware"
	"compliancedocs/socket"
)

func Setup(db *sql.DB, hub *socket.Hub) (http.Handler, *service.FolderService) {
	r := mux.NewRouter()

	// WebSocket event feed
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		actor := middleware.ActorFrom(req.Context())
		socket.ServeWs(hub, w, req, actor.ID)
	})
	r.Handle("/ws", middleware.AuthMiddleware(wsHandler))

	// REST API
	repo := repository.NewFolderRepository(db)
	registry := template.NewRegistry()
	svc := service.NewFolderService(repo, registry, service.RoleAuthorizer{}, hub)
	h := folderHandler.NewFolderHandler(svc)
	auth := middleware.AuthMiddleware

	r.Handle("/api/folders", auth(http.HandlerFunc(h.ScaffoldFolder))).Methods(http.MethodPost)
	r.Handle("/api/folders", auth(http.HandlerFunc(h.ListFolders))).Methods(http.MethodGet)
	r.Handle("/api/folders/{folderId}", auth(http.HandlerFunc(h.GetFolder))).Methods(http.MethodGet)
	r.Handle("/api/folders/{folderId}", auth(http.HandlerFunc(h.DeleteFolder))).Methods(http.MethodDelete)
	r.Handle("/api/folders/{folderId}/submit", auth(http.HandlerFunc(h.SubmitFolder))).Methods(http.MethodPost)
	r.Handle("/api/documents/{documentId}/artifact", auth(http.HandlerFunc(h.UploadDocument))).Methods(http.MethodPost)
	r.Handle("/api/documents/{documentId}/review", auth(http.HandlerFunc(h.ReviewDocument))).Methods(http.MethodPost)
	r.Handle("/api/documents/{documentId}/audit", auth(http.HandlerFunc(h.GetAuditTrail))).Methods(http.MethodGet)
	r.Handle("/api/sweep", auth(http.HandlerFunc(h.SweepExpired))).Methods(http.MethodPost)

	return middleware.CORSMiddleware(r), svc
}
