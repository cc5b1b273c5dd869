package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/pricewatch/internal/common"
	"github.com/dmitrijs2005/pricewatch/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const (
	claimKey         ctxKey = "claim"
	authenticatedKey ctxKey = "authenticated"
)

// SetCookieHeader is the response metadata key carrying cookie directives.
const SetCookieHeader = "set-cookie"

// policy selects which authorization contract guards a method.
type policy int

const (
	policyNone policy = iota
	policyStrict
	policyOptional
	policyStatus
	policyBoolean
)

// ClaimFromContext returns the caller's claim; zero for anonymous callers.
func ClaimFromContext(ctx context.Context) auth.Claim {
	c, _ := ctx.Value(claimKey).(auth.Claim)
	return c
}

func authenticatedFromContext(ctx context.Context) bool {
	ok, _ := ctx.Value(authenticatedKey).(bool)
	return ok
}

// setHeader is a seam for tests calling the interceptor without a stream.
var setHeader = grpc.SetHeader

func sendCookies(ctx context.Context, dirs []auth.Directive) error {
	if len(dirs) == 0 {
		return nil
	}
	md := metadata.MD{}
	for _, d := range dirs {
		md.Append(SetCookieHeader, d.String())
	}
	return setHeader(ctx, md)
}

func incomingToken(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (s *GRPCServer) authInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	p := methodPolicy(info.FullMethod)
	if p == policyNone {
		return handler(ctx, req)
	}

	md, _ := metadata.FromIncomingContext(ctx)
	access := incomingToken(md, common.AccessTokenHeaderName)
	refresh := incomingToken(md, common.RefreshTokenHeaderName)

	var (
		res auth.Result
		err error
	)
	switch p {
	case policyStrict:
		res, err = s.auth.RequireAuth(access, refresh)
	case policyOptional:
		res, err = s.auth.CheckAuth(access, refresh)
	case policyStatus:
		res = s.auth.CheckUserStatus(access, refresh)
	case policyBoolean:
		var ok bool
		ok, res.Cookies = s.auth.CheckBoolean(access, refresh)
		ctx = context.WithValue(ctx, authenticatedKey, ok)
	}

	if herr := sendCookies(ctx, res.Cookies); herr != nil {
		s.logger.Warn(ctx, "cannot attach cookies", "method", info.FullMethod, "error", herr)
	}

	if err != nil {
		switch {
		case errors.Is(err, common.ErrUnauthenticated):
			return nil, status.Error(codes.Unauthenticated, "missing credentials")
		case errors.Is(err, common.ErrInvalidCredential):
			return nil, status.Error(codes.Unauthenticated, "session expired")
		default:
			s.logger.Error(ctx, "authorization failed", "method", info.FullMethod, "error", err)
			return nil, status.Error(codes.Internal, "internal error")
		}
	}

	ctx = context.WithValue(ctx, claimKey, res.Claim)
	return handler(ctx, req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug(ctx, "rpc", "method", info.FullMethod, "code", status.Code(err).String(), "elapsed", time.Since(start))
	return resp, err
}
