package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/pricewatch/internal/logging"
	"github.com/dmitrijs2005/pricewatch/internal/server/auth"
	"github.com/dmitrijs2005/pricewatch/internal/server/models"
	"github.com/dmitrijs2005/pricewatch/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// UserService covers the account operations exposed over gRPC.
type UserService interface {
	Register(ctx context.Context, req services.RegisterRequest) (*models.User, error)
	VerifyEmail(ctx context.Context, email, code string) error
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (auth.Result, error)
}

type SubscriptionService interface {
	CreateSubscription(ctx context.Context, s *models.Subscription) (*models.Subscription, error)
	ListSubscriptions(ctx context.Context, userID int64) ([]*models.Subscription, error)
	DeleteSubscription(ctx context.Context, userID, id int64) error
	ListNotifications(ctx context.Context, userID int64) ([]*models.Notification, error)
}

type GRPCServer struct {
	address       string
	logger        logging.Logger
	auth          *auth.Authenticator
	users         UserService
	subscriptions SubscriptionService
	health        *health.Server
}

func NewGRPCServer(a string, l logging.Logger, authn *auth.Authenticator, us UserService, ss SubscriptionService) *GRPCServer {
	return &GRPCServer{
		address:       a,
		logger:        l.With("module", "grpc_server"),
		auth:          authn,
		users:         us,
		subscriptions: ss,
		health:        health.NewServer(),
	}
}

// newServer builds the grpc.Server with every service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.authInterceptor))

	srv.RegisterService(&serviceDesc, s)
	healthpb.RegisterHealthServer(srv, s.health)
	reflection.Register(srv)

	s.health.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
