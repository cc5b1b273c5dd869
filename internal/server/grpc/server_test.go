package grpc

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/pricewatch/internal/common"
	"github.com/dmitrijs2005/pricewatch/internal/logging"
	"github.com/dmitrijs2005/pricewatch/internal/server/auth"
	"github.com/dmitrijs2005/pricewatch/internal/server/models"
	"github.com/dmitrijs2005/pricewatch/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeUsers struct {
	authn    *auth.Authenticator
	lastReq  services.RegisterRequest
	verified map[string]bool
	resent   []string
}

func (f *fakeUsers) Register(_ context.Context, req services.RegisterRequest) (*models.User, error) {
	f.lastReq = req
	if req.Email == "taken@example.com" {
		return nil, common.ErrorAlreadyExists
	}
	if req.Email == "" {
		return nil, common.ErrorInvalidInput
	}
	return &models.User{ID: 42, Email: req.Email, Username: req.Username, Role: models.RoleUser}, nil
}

func (f *fakeUsers) VerifyEmail(_ context.Context, email, code string) error {
	if code != "4821" {
		return common.ErrorInvalidCode
	}
	f.verified[email] = true
	return nil
}

func (f *fakeUsers) ResendVerification(_ context.Context, email string) error {
	f.resent = append(f.resent, email)
	return nil
}

func (f *fakeUsers) Login(_ context.Context, email, password string) (auth.Result, error) {
	if password != "secret" {
		return auth.Result{}, common.ErrorUnauthorized
	}
	switch {
	case email == "bob@example.com":
		return f.authn.Issue(bob)
	case !f.verified[email]:
		return auth.Result{}, common.ErrorNotVerified
	default:
		return f.authn.Issue(bob)
	}
}

type fakeSubscriptions struct {
	created []*models.Subscription
	owner   int64
}

func (f *fakeSubscriptions) CreateSubscription(_ context.Context, s *models.Subscription) (*models.Subscription, error) {
	if s.Threshold <= 0 || !s.Operator.Valid() {
		return nil, common.ErrorInvalidInput
	}
	s.ID = int64(len(f.created) + 1)
	f.created = append(f.created, s)
	return s, nil
}

func (f *fakeSubscriptions) ListSubscriptions(_ context.Context, userID int64) ([]*models.Subscription, error) {
	f.owner = userID
	return f.created, nil
}

func (f *fakeSubscriptions) DeleteSubscription(_ context.Context, userID, id int64) error {
	f.owner = userID
	if id != 1 {
		return common.ErrorNotFound
	}
	return nil
}

func (f *fakeSubscriptions) ListNotifications(_ context.Context, userID int64) ([]*models.Notification, error) {
	f.owner = userID
	return []*models.Notification{{
		ID: 3, UserID: userID, CheckType: models.CheckCrypto, Symbol: "bitcoin",
		Operator: models.OperatorGreater, Threshold: 100, Currency: "usd",
		FiredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}, nil
}

type harness struct {
	conn  *grpc.ClientConn
	authn *auth.Authenticator
	users *fakeUsers
	subs  *fakeSubscriptions
}

func startServer(t *testing.T) *harness {
	t.Helper()

	authn := newAuthenticator(t)
	h := &harness{authn: authn, users: &fakeUsers{authn: authn, verified: map[string]bool{}}, subs: &fakeSubscriptions{}}

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())

	s := NewGRPCServer("bufconn", logging.Nop(), authn, h.users, h.subs)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Serve(ctx, lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	h.conn = conn

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})
	return h
}

func (h *harness) call(ctx context.Context, method string, in map[string]any, md *metadata.MD) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	opts := []grpc.CallOption{}
	if md != nil {
		opts = append(opts, grpc.Header(md))
	}
	err = h.conn.Invoke(ctx, fullMethod(method), req, out, opts...)
	return out, err
}

// cookieValue extracts the value of the named cookie from set-cookie headers.
func cookieValue(headers []string, name string) string {
	for _, h := range headers {
		if v, ok := strings.CutPrefix(h, name+"="); ok {
			v, _, _ = strings.Cut(v, ";")
			return v
		}
	}
	return ""
}

func TestServer_RegisterAndErrors(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	out, err := h.call(ctx, "Register", map[string]any{
		"email": "bob@example.com", "username": "bob", "password": "secret", "country": "LV",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(42), out.Fields["id"].GetNumberValue())
	assert.Equal(t, "LV", h.users.lastReq.Country)

	_, err = h.call(ctx, "Register", map[string]any{"email": "taken@example.com"}, nil)
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	_, err = h.call(ctx, "Register", map[string]any{}, nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServer_LoginSetsCookiesAndAuthorizes(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	_, err := h.call(ctx, "Login", map[string]any{"email": "bob@example.com", "password": "wrong"}, nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	var md metadata.MD
	out, err := h.call(ctx, "Login", map[string]any{"email": "bob@example.com", "password": "secret"}, &md)
	require.NoError(t, err)
	assert.True(t, out.Fields["authenticated"].GetBoolValue())
	assert.Equal(t, "bob", out.Fields["username"].GetStringValue())

	cookies := md.Get(SetCookieHeader)
	require.Len(t, cookies, 2)
	access := cookieValue(cookies, common.AccessTokenHeaderName)
	refresh := cookieValue(cookies, common.RefreshTokenHeaderName)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	authed := metadata.AppendToOutgoingContext(ctx,
		common.AccessTokenHeaderName, access,
		common.RefreshTokenHeaderName, refresh)

	out, err = h.call(authed, "CreateSubscription", map[string]any{
		"check_type": "crypto", "what_to_check": "bitcoin", "operator": ">", "value": 100.0, "currency": "usd",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(1), out.Fields["id"].GetNumberValue())
	require.Len(t, h.subs.created, 1)
	assert.Equal(t, int64(42), h.subs.created[0].UserID)
	assert.Equal(t, models.OperatorGreater, h.subs.created[0].Operator)

	out, err = h.call(authed, "ListSubscriptions", nil, nil)
	require.NoError(t, err)
	assert.Len(t, out.Fields["subscriptions"].GetListValue().GetValues(), 1)

	_, err = h.call(authed, "DeleteSubscription", map[string]any{"id": 9.0}, nil)
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = h.call(authed, "DeleteSubscription", map[string]any{"id": 1.0}, nil)
	require.NoError(t, err)

	out, err = h.call(authed, "ListNotifications", nil, nil)
	require.NoError(t, err)
	list := out.Fields["notifications"].GetListValue().GetValues()
	require.Len(t, list, 1)
	assert.Equal(t, "2026-01-02T03:04:05Z", list[0].GetStructValue().Fields["created_at"].GetStringValue())
}

func TestServer_OperatorAliases(t *testing.T) {
	h := startServer(t)

	var md metadata.MD
	_, err := h.call(context.Background(), "Login", map[string]any{"email": "bob@example.com", "password": "secret"}, &md)
	require.NoError(t, err)
	cookies := md.Get(SetCookieHeader)
	authed := metadata.AppendToOutgoingContext(context.Background(),
		common.AccessTokenHeaderName, cookieValue(cookies, common.AccessTokenHeaderName),
		common.RefreshTokenHeaderName, cookieValue(cookies, common.RefreshTokenHeaderName))

	for in, want := range map[string]models.Operator{"<": models.OperatorLess, "less": models.OperatorLess, "greater": models.OperatorGreater} {
		out, err := h.call(authed, "CreateSubscription", map[string]any{
			"check_type": "stock", "what_to_check": "AAPL", "operator": in, "value": 10.0,
		}, nil)
		require.NoError(t, err, in)
		assert.Equal(t, string(want), out.Fields["operator"].GetStringValue(), in)
	}

	_, err = h.call(authed, "CreateSubscription", map[string]any{
		"check_type": "stock", "what_to_check": "AAPL", "operator": ">=", "value": 10.0,
	}, nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServer_EmailVerificationFlow(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	out, err := h.call(ctx, "Register", map[string]any{"email": "carol@example.com", "username": "carol", "password": "secret"}, nil)
	require.NoError(t, err)
	assert.False(t, out.Fields["verified"].GetBoolValue())

	_, err = h.call(ctx, "Login", map[string]any{"email": "carol@example.com", "password": "secret"}, nil)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = h.call(ctx, "VerifyEmail", map[string]any{"email": "carol@example.com", "code": "0000"}, nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = h.call(ctx, "ResendVerification", map[string]any{"email": "carol@example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol@example.com"}, h.users.resent)

	_, err = h.call(ctx, "VerifyEmail", map[string]any{"email": "carol@example.com", "code": "4821"}, nil)
	require.NoError(t, err)

	var md metadata.MD
	_, err = h.call(ctx, "Login", map[string]any{"email": "carol@example.com", "password": "secret"}, &md)
	require.NoError(t, err)
	assert.Len(t, md.Get(SetCookieHeader), 2)
}

func TestServer_ProtectedWithoutCredentials(t *testing.T) {
	h := startServer(t)

	_, err := h.call(context.Background(), "ListSubscriptions", nil, nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	out, err := h.call(context.Background(), "Status", nil, nil)
	require.NoError(t, err)
	assert.False(t, out.Fields["authenticated"].GetBoolValue())

	out, err = h.call(context.Background(), "IsAuthenticated", nil, nil)
	require.NoError(t, err)
	assert.False(t, out.Fields["authenticated"].GetBoolValue())
}

func TestServer_LogoutClearsCookies(t *testing.T) {
	h := startServer(t)

	var md metadata.MD
	_, err := h.call(context.Background(), "Logout", nil, &md)
	require.NoError(t, err)

	cookies := md.Get(SetCookieHeader)
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Contains(t, c, "Max-Age=0")
	}
}

func TestServer_Health(t *testing.T) {
	h := startServer(t)

	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: serviceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
