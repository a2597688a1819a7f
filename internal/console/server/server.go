package server

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/trust-center/internal/console/handler"
	"github.com/xela07ax/trust-center/internal/engine"
	"github.com/xela07ax/trust-center/internal/infra/auth"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger

	// Проверка сессии: структура и exp, подпись RS256 если задан ключ
	decoder auth.SessionDecoder
	// ready сообщает, опубликован ли хотя бы один снапшот
	ready          func() bool
	metrics        http.Handler
	allowedOrigins []string

	// Обработчики
	authHandler    *handler.AuthHandler    // /auth/*
	trustHandler   *handler.TrustHandler   // /api/v1/*
	journalHandler *handler.JournalHandler // /api/v1/loads
}

type Options struct {
	Decoder        auth.SessionDecoder
	Ready          func() bool
	Metrics        http.Handler // nil: /metrics не публикуется
	AllowedOrigins []string
}

// NewConsoleServer инициализирует API Trust Center со всеми зависимостями
func NewConsoleServer(
	logger *zap.Logger,
	opts Options,
	authH *handler.AuthHandler,
	trustH *handler.TrustHandler,
	journalH *handler.JournalHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:         chi.NewRouter(),
		logger:         logger.Named("console-api"),
		decoder:        opts.Decoder,
		ready:          opts.Ready,
		metrics:        opts.Metrics,
		allowedOrigins: opts.AllowedOrigins,
		authHandler:    authH,
		trustHandler:   trustH,
		journalHandler: journalH,
	}
	if s.ready == nil {
		s.ready = func() bool { return true }
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(engine.TracingMiddleware)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if len(s.allowedOrigins) > 0 {
		r.Use(s.cors)
	}

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (Открыты для всех) ---
	r.Group(func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		// Готовность: есть что отдавать
		r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
			if !s.ready() {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
		if s.metrics != nil {
			r.Handle("/metrics", s.metrics)
		}

		// Логин должен быть доступен без токена
		r.Post("/auth/token", s.authHandler.Login)
		r.Get("/auth/session", s.authHandler.Session)

		// Анонимный вид дашборда
		r.Get("/api/v1/summary", s.trustHandler.Summary)
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют действующий токен) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.decoder, s.logger))

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/snapshot", s.trustHandler.Snapshot)
			r.Route("/validations", func(r chi.Router) {
				r.Get("/", s.trustHandler.Validations) // ?status=failed
				r.Get("/{id}", s.trustHandler.Validation)
			})
			r.Get("/history", s.trustHandler.History)
			r.Get("/metrics-history", s.trustHandler.MetricsHistory)
			r.Get("/boundary", s.trustHandler.Boundary)
			r.Post("/reload", s.trustHandler.Reload)

			// Журнал загрузок (Observability)
			r.Get("/loads", s.journalHandler.Loads)
			r.Get("/loads/stats", s.journalHandler.Stats)
		})
	})
}

// requestLogger пишет access-лог через zap вместо стандартного log.
func (s *ConsoleServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("trace_id", engine.TraceIDFromContext(r.Context())),
		)
	})
}

// cors разрешает запросы дашборда с перечисленных origin ("*", с любых).
func (s *ConsoleServer) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (slices.Contains(s.allowedOrigins, "*") || slices.Contains(s.allowedOrigins, origin)) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Headers", strings.Join([]string{"Authorization", "Content-Type", engine.TraceHeader}, ", "))
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Expose-Headers", engine.TraceHeader)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
