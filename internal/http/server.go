package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cardbill/internal/cache"
	"cardbill/internal/core"
	"cardbill/internal/log"
	"cardbill/internal/middleware/ratelimit"
	"cardbill/internal/middleware/security"
	"cardbill/internal/middleware/trace"
	"cardbill/internal/services"
)

// Options wires the server to the services it exposes.
type Options struct {
	Addr      string
	Purchases *services.PurchaseService
	Catalog   *services.CatalogService
	// Ready reports whether the backing store is reachable; nil means always ready.
	Ready  func(ctx context.Context) error
	Logger *log.Logger

	RateLimitPerMinute int
	CacheTTL           time.Duration
	CacheSize          int
}

type Server struct {
	http.Server
	purchases *services.PurchaseService
	catalog   *services.CatalogService
	ready     func(ctx context.Context) error
	logger    *log.Logger
	started   time.Time

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	caches       *cache.Manager
	monthCache   *cache.Loader[core.InvoiceOverview]
	detailCache  *cache.Loader[invoiceDetail]
	shutdownOnce sync.Once
}

// invoiceDetail is one card's invoice for a month with the installments behind it.
type invoiceDetail struct {
	Invoice      core.CardInvoice
	Installments []core.Installment
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// Invoice caches are invalidated through the services' change listeners.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	size := opts.CacheSize
	if size <= 0 {
		size = 100
	}
	monthLRU := cache.NewLRUCache[core.InvoiceOverview](size, opts.CacheTTL)
	detailLRU := cache.NewLRUCache[invoiceDetail](size*4, opts.CacheTTL)

	s := &Server{
		purchases:   opts.Purchases,
		catalog:     opts.Catalog,
		ready:       opts.Ready,
		logger:      logger,
		started:     time.Now(),
		limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:    security.NewDetector(logger),
		caches:      cache.NewManager(logger),
		monthCache:  cache.NewLoader[core.InvoiceOverview](monthLRU),
		detailCache: cache.NewLoader[invoiceDetail](detailLRU),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)
	s.caches.Register(monthLRU)
	s.caches.Register(detailLRU)
	s.caches.StartCleanup(10 * time.Minute)

	s.purchases.OnChange(s.invalidateInvoices)
	s.catalog.OnChange(s.invalidateInvoices)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited,
		http.MethodPost, http.MethodPatch, http.MethodDelete)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/cards", s.handleListCards)
	mux.HandleFunc("POST /api/cards", s.handleCreateCard)
	mux.HandleFunc("GET /api/cards/{id}", s.handleGetCard)
	mux.HandleFunc("PATCH /api/cards/{id}", s.handleUpdateCard)
	mux.HandleFunc("DELETE /api/cards/{id}", s.handleDeleteCard)

	mux.HandleFunc("GET /api/purchases", s.handleListPurchases)
	mux.HandleFunc("POST /api/purchases", s.handleCreatePurchase)
	mux.HandleFunc("GET /api/purchases/{id}", s.handleGetPurchase)
	mux.HandleFunc("PATCH /api/purchases/{id}", s.handleRenamePurchase)
	mux.HandleFunc("DELETE /api/purchases/{id}", s.handleDeletePurchase)

	mux.HandleFunc("GET /api/invoices/{month}", s.handleMonthInvoices)
	mux.HandleFunc("GET /api/invoices/{month}/cards/{cardId}", s.handleCardInvoice)
	mux.HandleFunc("POST /api/invoices/{month}/cards/{cardId}/refresh", s.handleRefreshInvoice)
	mux.HandleFunc("GET /api/invoices/{month}/export.csv", s.handleExportInvoices)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("DELETE /api/categories/{name}", s.handleDeleteCategory)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
}

// invalidateInvoices drops cached invoice reads for keys; nil drops everything.
func (s *Server) invalidateInvoices(keys []core.InvoiceKey) {
	if keys == nil {
		s.monthCache.Clear()
		s.detailCache.Clear()
		return
	}
	for _, k := range keys {
		s.monthCache.Forget(k.Month.String())
		s.detailCache.Forget(detailKey(k.Month, k.CardID))
	}
}

func detailKey(month core.Month, cardID int64) string {
	return fmt.Sprintf("%s/%d", month, cardID)
}

// Shutdown stops the background cleanups and gracefully shuts the listener down.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
