package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/pricewatch/internal/common"
	"github.com/dmitrijs2005/pricewatch/internal/server/models"
	"github.com/dmitrijs2005/pricewatch/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "pricewatch.v1.Pricewatch"

// The service speaks google.protobuf.Struct in both directions, so it needs
// no generated code; field names follow the public JSON API.
type method struct {
	name   string
	policy policy
	call   func(s *GRPCServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var methods = []method{
	{"Register", policyNone, (*GRPCServer).register},
	{"VerifyEmail", policyNone, (*GRPCServer).verifyEmail},
	{"ResendVerification", policyNone, (*GRPCServer).resendVerification},
	{"Login", policyNone, (*GRPCServer).login},
	{"Logout", policyNone, (*GRPCServer).logout},
	{"Me", policyOptional, (*GRPCServer).me},
	{"Status", policyStatus, (*GRPCServer).me},
	{"IsAuthenticated", policyBoolean, (*GRPCServer).isAuthenticated},
	{"CreateSubscription", policyStrict, (*GRPCServer).createSubscription},
	{"ListSubscriptions", policyStrict, (*GRPCServer).listSubscriptions},
	{"DeleteSubscription", policyStrict, (*GRPCServer).deleteSubscription},
	{"ListNotifications", policyStrict, (*GRPCServer).listNotifications},
}

// pricewatchServer is the handler type the service is registered with.
type pricewatchServer interface {
	authInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error)
}

var (
	serviceDesc grpc.ServiceDesc
	policies    = map[string]policy{}
)

func init() {
	serviceDesc = grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*pricewatchServer)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "pricewatch/v1/pricewatch.proto",
	}
	for _, m := range methods {
		serviceDesc.Methods = append(serviceDesc.Methods, methodDesc(m))
		policies[fullMethod(m.name)] = m.policy
	}
}

func fullMethod(name string) string {
	return "/" + serviceName + "/" + name
}

func methodPolicy(full string) policy {
	return policies[full]
}

func methodDesc(m method) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: m.name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*GRPCServer)
			h := func(ctx context.Context, req any) (any, error) {
				return m.call(s, ctx, req.(*structpb.Struct))
			}
			if interceptor == nil {
				return h(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(m.name)}
			return interceptor(ctx, in, info, h)
		},
	}
}

// toStatus maps service errors to gRPC codes.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorInvalidCode):
		return status.Error(codes.InvalidArgument, "code you provided is incorrect")
	case errors.Is(err, common.ErrorNotVerified):
		return status.Error(codes.PermissionDenied, "email is not verified")
	case errors.Is(err, common.ErrorAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	default:
		s.logger.Error(ctx, err.Error())
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *GRPCServer) register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {

	s.logger.Info(ctx, "Registration request")

	user, err := s.users.Register(ctx, services.RegisterRequest{
		Email:    stringField(in, "email"),
		Username: stringField(in, "username"),
		Password: stringField(in, "password"),
		Country:  stringField(in, "country"),
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Registered", "id", user.ID)
	fields := userFields(user)
	fields["message"] = "Verification code was sent to your email"
	return newStruct(fields)
}

func (s *GRPCServer) verifyEmail(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.users.VerifyEmail(ctx, stringField(in, "email"), stringField(in, "code")); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return newStruct(map[string]any{"message": "Email confirmed"})
}

func (s *GRPCServer) resendVerification(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.users.ResendVerification(ctx, stringField(in, "email")); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return newStruct(map[string]any{"message": "Verification code sent"})
}

func (s *GRPCServer) login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {

	res, err := s.users.Login(ctx, stringField(in, "email"), stringField(in, "password"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	if err := sendCookies(ctx, res.Cookies); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return newStruct(claimFields(res.Claim))
}

func (s *GRPCServer) logout(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := sendCookies(ctx, s.auth.Logout()); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return newStruct(map[string]any{"message": "Logged out"})
}

func (s *GRPCServer) me(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return newStruct(claimFields(ClaimFromContext(ctx)))
}

func (s *GRPCServer) isAuthenticated(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return newStruct(map[string]any{"authenticated": authenticatedFromContext(ctx)})
}

func (s *GRPCServer) createSubscription(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	sub := &models.Subscription{
		UserID:    ClaimFromContext(ctx).SubjectID,
		CheckType: models.CheckKind(stringField(in, "check_type")),
		Symbol:    stringField(in, "what_to_check"),
		Operator:  models.ParseOperator(stringField(in, "operator")),
		Threshold: numberField(in, "value"),
		Currency:  stringField(in, "currency"),
	}

	sub, err := s.subscriptions.CreateSubscription(ctx, sub)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return newStruct(subscriptionFields(sub))
}

func (s *GRPCServer) listSubscriptions(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	subs, err := s.subscriptions.ListSubscriptions(ctx, ClaimFromContext(ctx).SubjectID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	list := make([]any, 0, len(subs))
	for _, sub := range subs {
		list = append(list, subscriptionFields(sub))
	}
	return newStruct(map[string]any{"subscriptions": list})
}

func (s *GRPCServer) deleteSubscription(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id := int64(numberField(in, "id"))
	if err := s.subscriptions.DeleteSubscription(ctx, ClaimFromContext(ctx).SubjectID, id); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return newStruct(map[string]any{"message": "Subscription deleted"})
}

func (s *GRPCServer) listNotifications(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	ns, err := s.subscriptions.ListNotifications(ctx, ClaimFromContext(ctx).SubjectID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	list := make([]any, 0, len(ns))
	for _, n := range ns {
		list = append(list, notificationFields(n))
	}
	return newStruct(map[string]any{"notifications": list})
}
