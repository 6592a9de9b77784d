package interceptors

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// sessioned is implemented by request messages that carry a session id.
type sessioned interface {
	Session() string
}

// UnaryLoggingInterceptor logs method, session, duration and status code
// of each request.
func UnaryLoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		fields := []zap.Field{zap.String("method", info.FullMethod)}
		if s, ok := req.(sessioned); ok {
			fields = append(fields, zap.String("session_id", s.Session()))
		}
		log.Debug("gRPC request started", fields...)

		resp, err := handler(ctx, req)

		st, _ := status.FromError(err)
		fields = append(fields,
			zap.Duration("duration", time.Since(start)),
			zap.String("status_code", st.Code().String()),
		)

		if err != nil {
			fields = append(fields, zap.Error(err))
			log.Warn("gRPC request failed", fields...)
		} else {
			log.Info("gRPC request completed", fields...)
		}

		return resp, err
	}
}
