package routes

import (
	"net/http"

	"github.com/partnerdesk/partnerdesk/internal/app"
	"github.com/partnerdesk/partnerdesk/internal/handler"
	"github.com/partnerdesk/partnerdesk/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	auth := handler.NewAuthHandler(app.AuthService)
	records := handler.NewRecordHandler(app.RecordService)
	uploads := handler.NewUploadsHandler(app.Storage)

	requireAuth := middleware.Auth(app.AuthService)

	api := http.NewServeMux()

	// Auth
	api.HandleFunc("POST /api/auth/register", auth.Register)
	api.HandleFunc("POST /api/auth/login", auth.Login)
	api.Handle("GET /api/auth/status", requireAuth(http.HandlerFunc(auth.Status)))

	// Records. The literal auth patterns above win over these wildcards.
	api.Handle("GET /api/{collection}", requireAuth(http.HandlerFunc(records.List)))
	api.Handle("GET /api/{collection}/{id}", requireAuth(http.HandlerFunc(records.Get)))
	api.Handle("POST /api/{collection}", requireAuth(http.HandlerFunc(records.Upsert)))
	api.Handle("DELETE /api/{collection}/{id}", requireAuth(http.HandlerFunc(records.Delete)))

	api.HandleFunc("/", notFound)

	// The uploads prefix is dispatched on an outer mux so stored file paths
	// like img/x.png never collide with the {collection}/{id} wildcards.
	root := http.NewServeMux()
	root.Handle("/api/uploads/", http.StripPrefix("/api/uploads/", uploads))
	root.Handle("/", middleware.Ready(app.Handle)(api))

	return middleware.Chain(root,
		middleware.RequestLogging,
	)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"route not found"}`))
}
