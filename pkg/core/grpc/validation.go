package grpc

import (
	"context"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/msto63/guardian/foundation/core/i18n"
	mdwlog "github.com/msto63/guardian/foundation/core/log"
	mdwstringx "github.com/msto63/guardian/foundation/utils/stringx"
	"github.com/msto63/guardian/pkg/constraint"
	"github.com/msto63/guardian/pkg/validator"
)

// ValidationOptions configure the request validation interceptors
type ValidationOptions struct {
	Validator *validator.Validator
	// Messages renders violation messages in the caller's accept-language.
	// Without it the messages produced by the validator are returned.
	Messages *i18n.Manager
	Profiles []string
	// Skip lists full method names that are not validated
	Skip   []string
	Logger *mdwlog.Logger
}

type requestValidator struct {
	opts   ValidationOptions
	skip   map[string]struct{}
	logger *mdwlog.Logger
}

func newRequestValidator(opts ValidationOptions) *requestValidator {
	if opts.Validator == nil {
		opts.Validator = validator.New(validator.Options{})
	}
	rv := &requestValidator{
		opts:   opts,
		skip:   make(map[string]struct{}, len(opts.Skip)),
		logger: componentLogger(opts.Logger),
	}
	for _, m := range opts.Skip {
		rv.skip[m] = struct{}{}
	}
	return rv
}

func (rv *requestValidator) validate(ctx context.Context, method string, msg interface{}, acceptLanguage string) error {
	if _, ok := rv.skip[method]; ok || constraint.IsNil(msg) {
		return nil
	}
	violations, err := rv.opts.Validator.ValidateContext(ctx, msg, rv.opts.Profiles...)
	if err != nil {
		rv.logger.ErrorWithErr("Request validation failed", err, mdwlog.Fields{"method": method})
		return status.Error(codes.Internal, "request validation failed")
	}
	if len(violations) == 0 {
		return nil
	}
	locale := ""
	if rv.opts.Messages != nil {
		locale = i18n.DetectLocale(acceptLanguage,
			rv.opts.Messages.AvailableLocales(), rv.opts.Messages.Locale())
	}
	rv.logger.Debug("Request rejected", mdwlog.Fields{
		"method":     method,
		"request_id": GetRequestID(ctx),
		"violations": len(violations),
		"locale":     locale,
	})
	return ViolationStatus(violations, rv.opts.Messages, locale).Err()
}

// ValidationInterceptor validates unary requests and rejects invalid ones
// with codes.InvalidArgument
func ValidationInterceptor(opts ValidationOptions) grpc.UnaryServerInterceptor {
	rv := newRequestValidator(opts)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if err := rv.validate(ctx, info.FullMethod, req, firstIncoming(ctx, AcceptLanguageHeader)); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// ClientValidationInterceptor validates outgoing requests. Invalid requests
// fail with the status a validating server would return and are not sent.
func ClientValidationInterceptor(opts ValidationOptions) grpc.UnaryClientInterceptor {
	rv := newRequestValidator(opts)
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		if err := rv.validate(ctx, method, req, firstOutgoing(ctx, AcceptLanguageHeader)); err != nil {
			return err
		}
		return invoker(ctx, method, req, reply, cc, callOpts...)
	}
}

// StreamValidationInterceptor validates every message received on a stream.
// The handler sees the status error from RecvMsg and is expected to return it.
func StreamValidationInterceptor(opts ValidationOptions) grpc.StreamServerInterceptor {
	rv := newRequestValidator(opts)
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if _, ok := rv.skip[info.FullMethod]; ok {
			return handler(srv, ss)
		}
		return handler(srv, &validatingStream{ServerStream: ss, rv: rv, method: info.FullMethod})
	}
}

type validatingStream struct {
	grpc.ServerStream
	rv     *requestValidator
	method string
}

func (s *validatingStream) RecvMsg(m interface{}) error {
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return err
	}
	return s.rv.validate(s.Context(), s.method, m, firstIncoming(s.Context(), AcceptLanguageHeader))
}

// ViolationStatus converts violations into an InvalidArgument status with
// a BadRequest detail carrying one field violation per constraint
// violation. When messages is set, descriptions are rendered for locale.
func ViolationStatus(violations []*constraint.Violation, messages *i18n.Manager, locale string) *status.Status {
	br := &errdetails.BadRequest{}
	descriptions := make([]string, 0, len(violations))
	for _, v := range violations {
		desc := localize(v, messages, locale)
		descriptions = append(descriptions, desc)
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       constraint.FieldPath(v.ContextPath),
			Description: desc,
		})
	}

	st := status.New(codes.InvalidArgument, "request violates constraints: "+strings.Join(descriptions, "; "))
	if withDetails, err := st.WithDetails(br); err == nil {
		return withDetails
	}
	return st
}

func localize(v *constraint.Violation, messages *i18n.Manager, locale string) string {
	if messages == nil || locale == "" || v.MessageTemplate == "" {
		return v.Message
	}
	tmpl, ok := messages.MessageFor(locale, v.MessageTemplate)
	if !ok {
		return v.Message
	}
	return mdwstringx.ReplacePlaceholders(tmpl, v.MessageVariables)
}
