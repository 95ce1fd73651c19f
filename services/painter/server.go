package painter

import (
	"context"
	"net"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	goutils "go.viam.com/utils"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"go.viam.com/painter/logging"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "painter.v1.PainterService"

const paintMethod = "/" + ServiceName + "/Paint"

// PainterServiceServer is the server API for the painter service.
type PainterServiceServer interface {
	Paint(context.Context, *WireRequest) (*WireResponse, error)
}

// ServiceDesc describes the painter service to grpc.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PainterServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Paint", Handler: paintHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "painter/v1/painter.proto",
}

func paintHandler(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(WireRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PainterServiceServer).Paint(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: paintMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PainterServiceServer).Paint(ctx, req.(*WireRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterPainterServiceServer registers srv with s.
func RegisterPainterServiceServer(s grpc.ServiceRegistrar, srv PainterServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// serviceServer implements PainterServiceServer on top of a Painter.
type serviceServer struct {
	painter *Painter
	logger  logging.Logger
}

// NewRPCServiceServer constructs the painter gRPC service server.
func NewRPCServiceServer(p *Painter, logger logging.Logger) PainterServiceServer {
	return &serviceServer{painter: p, logger: logger}
}

func (server *serviceServer) Paint(ctx context.Context, in *WireRequest) (*WireResponse, error) {
	req, err := RequestFromWire(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	resp, err := server.painter.Paint(ctx, req)
	if err != nil {
		return nil, statusFromError(err)
	}
	return &WireResponse{RequestID: resp.RequestID, Cloud: CloudToWire(resp.Cloud), Stats: resp.Stats}, nil
}

func statusFromError(err error) error {
	switch {
	case errors.Is(err, ErrTransformTimeout):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrImageDecode), errors.Is(err, ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// Server serves a Painter and the standard health service over gRPC.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	logger     logging.Logger
}

// DefaultMaxMessageBytes bounds a Paint message in either direction. Two 1920x1080 rgb8 images
// take about 17 MB once base64 encoded.
const DefaultMaxMessageBytes = 64 << 20

// MessageSizeServerOptions lets the server receive and send messages up to n bytes.
func MessageSizeServerOptions(n int) []grpc.ServerOption {
	return []grpc.ServerOption{grpc.MaxRecvMsgSize(n), grpc.MaxSendMsgSize(n)}
}

// recoveryInterceptor turns a panicking call into an Internal error.
func recoveryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return grpc_recovery.UnaryServerInterceptor(grpc_recovery.WithRecoveryHandler(func(p interface{}) error {
		logger.Errorw("recovered from panic in call", "panic", p)
		return status.Errorf(codes.Internal, "painter panicked: %v", p)
	}))
}

// NewServer returns a server for p. Extra options are appended to the defaults, which trace
// every call, recover from panics and accept messages up to DefaultMaxMessageBytes.
func NewServer(p *Painter, logger logging.Logger, opts ...grpc.ServerOption) *Server {
	defaults := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(recoveryInterceptor(logger))),
	}
	opts = append(append(defaults, MessageSizeServerOptions(DefaultMaxMessageBytes)...), opts...)
	s := &Server{
		grpcServer: grpc.NewServer(opts...),
		health:     health.NewServer(),
		logger:     logger,
	}
	RegisterPainterServiceServer(s.grpcServer, NewRPCServiceServer(p, logger))
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	return s
}

// Serve accepts connections on lis until ctx is done or Stop is called.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.logger.Infow("serving painter", "address", lis.Addr().String(), "service", ServiceName)

	served := make(chan struct{})
	defer close(served)
	goutils.PanicCapturingGo(func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-served:
		}
	})

	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// ListenAndServe listens on address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", address)
	}
	return s.Serve(ctx, lis)
}

// Stop marks the service as not serving and waits for in-flight calls to finish.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
