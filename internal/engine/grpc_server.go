package engine

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	"github.com/xela07ax/trust-center/internal/domain"
)

// HealthServiceName: имя сервиса в grpc.health.v1 (пустое имя = весь сервер).
const HealthServiceName = "trustcenter.Snapshot"

// HealthServer отдает NOT_SERVING до первой публикации снапшота, затем SERVING.
type HealthServer struct {
	srv *health.Server
}

func NewHealthServer() *HealthServer {
	s := health.NewServer()
	s.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{srv: s}
}

func (h *HealthServer) Register(g *grpc.Server) {
	healthpb.RegisterHealthServer(g, h.srv)
}

// SnapshotPublished реализует Notifier.
func (h *HealthServer) SnapshotPublished(_ context.Context, _, next *domain.Snapshot) {
	if next == nil {
		return
	}
	h.MarkServing()
}

func (h *HealthServer) MarkServing() {
	h.srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.srv.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_SERVING)
}

// Shutdown переводит все сервисы в NOT_SERVING перед остановкой.
func (h *HealthServer) Shutdown() {
	h.srv.Shutdown()
}

// UnaryTracingInterceptor прокидывает x-trace-id из метаданных gRPC в контекст и логирует вызов
func UnaryTracingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		traceID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			// В gRPC заголовки в нижнем регистре
			if ids := md.Get("x-trace-id"); len(ids) > 0 {
				traceID = ids[0]
			}
		}
		if traceID == "" {
			traceID = extractTraceID(ctx)
		}

		resp, err := handler(WithTraceID(ctx, traceID), req)
		if err != nil {
			logger.Warn("grpc call failed",
				zap.String("method", info.FullMethod),
				zap.String("trace_id", traceID),
				zap.Error(err),
			)
		}
		return resp, err
	}
}
