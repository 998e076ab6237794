package routes

import (
	"net/http"
	"sort"
	"strings"

	"github.com/eswasthya/portal/backend/internal/api/handlers"
	"github.com/eswasthya/portal/backend/internal/api/middleware"
	"github.com/eswasthya/portal/backend/internal/infrastructure/observability"
)

// Handlers groups the HTTP handlers the router serves. SSE and Media are optional.
type Handlers struct {
	Index         *handlers.IndexHandler
	Report        *handlers.ReportHandler
	Emergency     *handlers.EmergencyHandler
	Chat          *handlers.ChatHandler
	MedicalRecord *handlers.MedicalRecordHandler
	SSE           *handlers.SSEHandler
	// Media serves locally stored report files under /media/
	Media http.Handler
}

// Router holds all route handlers
type Router struct {
	mux            *http.ServeMux
	handlers       Handlers
	chatLimiter    *middleware.RateLimiter
	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router. chatLimiter may be nil.
func NewRouter(h Handlers, chatLimiter *middleware.RateLimiter, allowedOrigins []string, metrics *observability.Metrics) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		handlers:       h,
		chatLimiter:    chatLimiter,
		allowedOrigins: allowedOrigins,
		metrics:        metrics,
	}
}

// methods maps an HTTP method to its handler for one path
type methods map[string]http.HandlerFunc

// handle registers path for the given methods. Any other method gets the
// JSON 405 envelope produced by notAllowed.
func (r *Router) handle(path string, m methods, notAllowed http.HandlerFunc) {
	if get, ok := m[http.MethodGet]; ok {
		if _, hasHead := m[http.MethodHead]; !hasHead {
			m[http.MethodHead] = get
		}
	}
	allow := make([]string, 0, len(m))
	for method := range m {
		allow = append(allow, method)
	}
	sort.Strings(allow)
	allowHeader := strings.Join(allow, ", ")

	r.mux.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		if h, ok := m[req.Method]; ok {
			h(w, req)
			return
		}
		w.Header().Set("Allow", allowHeader)
		notAllowed(w, req)
	})
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	h := r.handlers
	portal405 := handlers.RespondMethodNotAllowed
	record405 := handlers.RespondRecordMethodNotAllowed

	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.handle("/{$}", methods{http.MethodGet: h.Index.Index}, portal405)

	// Reports
	r.handle("/upload-report/{$}", methods{http.MethodPost: h.Report.UploadReport}, portal405)
	r.handle("/report-analysis/{id}/{$}", methods{http.MethodGet: h.Report.GetReportAnalysis}, portal405)

	// Emergency
	r.handle("/trigger-emergency/{$}", methods{http.MethodPost: h.Emergency.TriggerEmergency}, portal405)
	r.handle("/emergency-contacts/{$}", methods{
		http.MethodGet:  h.Emergency.ListContacts,
		http.MethodPost: h.Emergency.AddContact,
	}, portal405)
	r.handle("/emergency-contacts/add/{$}", methods{http.MethodPost: h.Emergency.AddContact}, portal405)
	r.handle("/emergency-contacts/{id}/{$}", methods{http.MethodDelete: h.Emergency.DeleteContact}, portal405)
	r.handle("/emergency-contacts/{id}/delete/{$}", methods{
		http.MethodDelete: h.Emergency.DeleteContact,
		http.MethodPost:   h.Emergency.DeleteContact,
	}, portal405)
	if h.SSE != nil {
		r.handle("/emergency-alerts/stream/{$}", methods{http.MethodGet: h.SSE.StreamAlerts}, portal405)
	}

	// Assistant
	chat := http.HandlerFunc(h.Chat.ProcessChat)
	if r.chatLimiter != nil {
		chat = r.chatLimiter.Middleware(chat).ServeHTTP
	}
	r.handle("/chat/process/{$}", methods{http.MethodPost: chat}, portal405)

	// Medical records on the ledger
	r.handle("/api/medical-records/{$}", methods{http.MethodPost: h.MedicalRecord.CreateRecord}, record405)
	r.handle("/api/medical-records/{patient_id}/{report_hash}/{$}", methods{
		http.MethodGet:    h.MedicalRecord.GetRecord,
		http.MethodPut:    h.MedicalRecord.UpdateRecord,
		http.MethodDelete: h.MedicalRecord.InvalidateRecord,
	}, record405)
	r.handle("/api/medical-records/{patient_id}/{report_hash}/verify/{$}", methods{
		http.MethodGet: h.MedicalRecord.VerifyRecord,
	}, record405)

	if h.Media != nil {
		r.mux.Handle("GET /media/", http.StripPrefix("/media/", noDirectoryListing(h.Media)))
	}

	r.mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":"error","message":"Not found"}`))
	})

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.RecoveryMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.Compression(handler)
	handler = middleware.CacheControl(handler)
	// CORS wraps everything so preflights never reach the mux
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}

func noDirectoryListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "" || strings.HasSuffix(req.URL.Path, "/") {
			http.NotFound(w, req)
			return
		}
		next.ServeHTTP(w, req)
	})
}
