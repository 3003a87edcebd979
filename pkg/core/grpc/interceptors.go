package grpc

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	mdwlog "github.com/msto63/guardian/foundation/core/log"
)

type contextKey string

const (
	RequestIDKey         contextKey = "request_id"
	RequestIDHeader      string     = "x-request-id"
	AcceptLanguageHeader string     = "accept-language"
)

func componentLogger(logger *mdwlog.Logger) *mdwlog.Logger {
	if logger != nil {
		return logger
	}
	return mdwlog.GetDefault().WithField("component", "grpc")
}

// RecoveryInterceptor recovers from panics in gRPC handlers
func RecoveryInterceptor(logger *mdwlog.Logger) grpc.UnaryServerInterceptor {
	logger = componentLogger(logger)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("gRPC panic recovered", mdwlog.Fields{
					"method": info.FullMethod,
					"panic":  r,
					"stack":  string(debug.Stack()),
				})
				err = status.Errorf(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// StreamRecoveryInterceptor recovers from panics in streaming gRPC handlers
func StreamRecoveryInterceptor(logger *mdwlog.Logger) grpc.StreamServerInterceptor {
	logger = componentLogger(logger)
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("gRPC stream panic recovered", mdwlog.Fields{
					"method": info.FullMethod,
					"panic":  r,
					"stack":  string(debug.Stack()),
				})
				err = status.Errorf(codes.Internal, "internal server error")
			}
		}()
		return handler(srv, ss)
	}
}

// LoggingInterceptor logs gRPC requests
func LoggingInterceptor(logger *mdwlog.Logger) grpc.UnaryServerInterceptor {
	logger = componentLogger(logger)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("gRPC request", mdwlog.Fields{
			"request_id": GetRequestID(ctx),
			"method":     info.FullMethod,
			"status":     status.Code(err).String(),
			"duration":   time.Since(start).String(),
		})
		return resp, err
	}
}

// StreamLoggingInterceptor logs gRPC streaming requests
func StreamLoggingInterceptor(logger *mdwlog.Logger) grpc.StreamServerInterceptor {
	logger = componentLogger(logger)
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logger.Info("gRPC stream request", mdwlog.Fields{
			"request_id": GetRequestID(ss.Context()),
			"method":     info.FullMethod,
			"status":     status.Code(err).String(),
			"duration":   time.Since(start).String(),
		})
		return err
	}
}

// RequestIDInterceptor adds a request ID to the context
func RequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		requestID := extractRequestID(ctx)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx = context.WithValue(ctx, RequestIDKey, requestID)
		return handler(ctx, req)
	}
}

// ClientRequestIDInterceptor propagates the request ID to outgoing requests
func ClientRequestIDInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		requestID := GetRequestID(ctx)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx = metadata.AppendToOutgoingContext(ctx, RequestIDHeader, requestID)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// ClientLocaleInterceptor sends locale as accept-language unless the
// caller already set one, so violation messages come back translated
func ClientLocaleInterceptor(locale string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if locale != "" {
			md, _ := metadata.FromOutgoingContext(ctx)
			if len(md.Get(AcceptLanguageHeader)) == 0 {
				ctx = metadata.AppendToOutgoingContext(ctx, AcceptLanguageHeader, locale)
			}
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return extractRequestID(ctx)
}

func extractRequestID(ctx context.Context) string {
	return firstIncoming(ctx, RequestIDHeader)
}

func firstIncoming(ctx context.Context, key string) string {
	md, _ := metadata.FromIncomingContext(ctx)
	return first(md, key)
}

func firstOutgoing(ctx context.Context, key string) string {
	md, _ := metadata.FromOutgoingContext(ctx)
	return first(md, key)
}

func first(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}
