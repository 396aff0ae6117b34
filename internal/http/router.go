package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"mesa-table-service/internal/config"
	"mesa-table-service/internal/http/handlers"
	"mesa-table-service/internal/middleware"
	"mesa-table-service/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func NewRouter(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config, h *handlers.Handler, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"Cache-Control",
				"Pragma",
			},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Post("/orders", h.PublicOrderCreate)
		r.Get("/bills/active", h.PublicBillByTable)
		r.Post("/payments/proof", h.PublicPaymentProof)
		r.Post("/waiter-calls", h.PublicWaiterCall)
	})

	r.Route("/api/staff", func(r chi.Router) {
		r.Post("/login", h.StaffLogin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.StaffAuth(db, cfg.JWTSecret))

			r.Get("/orders/pending", h.StaffOrdersPending)
			r.Post("/orders/{id}/approve", h.StaffOrderApprove)
			r.Post("/orders/{id}/reject", h.StaffOrderReject)
			r.Put("/orders/{id}/status", h.StaffOrderUpdateStatus)

			r.Get("/bills/active", h.StaffActiveBills)
			r.Get("/departments", h.StaffDepartments)

			r.Post("/payments/{id}/resolve", h.StaffPaymentResolve)

			r.Post("/day-close", h.StaffDayClose)
			r.Get("/day-reports/{id}", h.StaffDayReport)
			r.Get("/day-reports/{id}/pdf", h.StaffDayReportPDF)
		})
	})

	if wsServer != nil {
		r.Get("/ws/staff/orders", wsServer.HandleStaffOrders)
	}

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
