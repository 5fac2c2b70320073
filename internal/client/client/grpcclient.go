package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service the client talks to.
const ServiceName = "authkeeper.v1.AuthService"

// FullMethod returns the gRPC method path for a service method name.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

const defaultTimeout = 10 * time.Second

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	tokens      TokenSource
	timeout     time.Duration
	dialOpts    []grpc.DialOption
}

var _ Client = (*GRPCClient)(nil)

type Option func(*GRPCClient)

func WithTokenSource(ts TokenSource) Option { return func(c *GRPCClient) { c.tokens = ts } }

func WithTimeout(d time.Duration) Option {
	return func(c *GRPCClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDialOptions appends to the default dial options (insecure transport
// and the auth interceptor).
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *GRPCClient) { c.dialOpts = append(c.dialOpts, opts...) }
}

func NewAuthServiceClient(endpointURL string, opts ...Option) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, timeout: defaultTimeout}
	for _, o := range opts {
		o(c)
	}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *GRPCClient) InitGRPCClient() error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.authInterceptor),
	}, c.dialOpts...)

	conn, err := grpc.NewClient(c.endpointURL, opts...)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// invoke sends in (any JSON-encodable value) as a Struct and decodes the
// Struct reply into out when out is non-nil.
func (c *GRPCClient) invoke(ctx context.Context, name string, in any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := toStruct(in)
	if err != nil {
		return err
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, FullMethod(name), req, resp); err != nil {
		return mapError(err)
	}

	if out == nil {
		return nil
	}
	return fromStruct(resp, out)
}

func toStruct(v any) (*structpb.Struct, error) {
	s := &structpb.Struct{}
	if v == nil {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, out any) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

type userEnvelope struct {
	User *models.User `json:"user"`
}

func (c *GRPCClient) Ping(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.invoke(WithToken(ctx, ""), "Ping", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (c *GRPCClient) authCall(ctx context.Context, name string, in any) (*models.AuthResult, error) {
	var res models.AuthResult
	if err := c.invoke(ctx, name, in, &res); err != nil {
		return nil, err
	}
	if res.User == nil || res.Token == "" {
		return nil, fmt.Errorf("%w: %s without user or token", ErrMalformedResponse, name)
	}
	return &res, nil
}

func (c *GRPCClient) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error) {
	return c.authCall(WithToken(ctx, ""), "Login", req)
}

func (c *GRPCClient) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResult, error) {
	return c.authCall(WithToken(ctx, ""), "Register", req)
}

func (c *GRPCClient) Logout(ctx context.Context) error {
	return c.invoke(ctx, "Logout", nil, nil)
}

func (c *GRPCClient) Refresh(ctx context.Context, refreshToken string) (*models.AuthResult, error) {
	return c.authCall(ctx, "Refresh", map[string]string{"refreshToken": refreshToken})
}

func (c *GRPCClient) GetProfile(ctx context.Context) (*models.User, error) {
	return c.userCall(ctx, "GetProfile", nil)
}

func (c *GRPCClient) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.User, error) {
	return c.userCall(ctx, "UpdateProfile", upd)
}

func (c *GRPCClient) userCall(ctx context.Context, name string, in any) (*models.User, error) {
	var env userEnvelope
	if err := c.invoke(ctx, name, in, &env); err != nil {
		return nil, err
	}
	if env.User == nil {
		return nil, fmt.Errorf("%w: %s without user", ErrMalformedResponse, name)
	}
	return env.User, nil
}

func (c *GRPCClient) UpdatePassword(ctx context.Context, upd models.PasswordUpdate) error {
	return c.invoke(ctx, "UpdatePassword", upd, nil)
}

func (c *GRPCClient) ForgotPassword(ctx context.Context, email string) error {
	return c.invoke(WithToken(ctx, ""), "ForgotPassword", map[string]string{"email": email}, nil)
}

func (c *GRPCClient) ResetPassword(ctx context.Context, req models.PasswordReset) error {
	return c.invoke(WithToken(ctx, ""), "ResetPassword", req, nil)
}

func (c *GRPCClient) VerifyEmail(ctx context.Context, token string) error {
	return c.invoke(WithToken(ctx, ""), "VerifyEmail", map[string]string{"token": token}, nil)
}

func (c *GRPCClient) ResendVerification(ctx context.Context, email string) error {
	return c.invoke(WithToken(ctx, ""), "ResendVerification", map[string]string{"email": email}, nil)
}

// mapError turns a gRPC failure into a boundary sentinel. An ErrorInfo
// reason wins over the status code. Unknown failures are wrapped as is.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return common.ErrNetwork.WithDetail("cause", err.Error())
		}
		return fmt.Errorf("rpc error: %w", err)
	}

	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok {
			continue
		}
		if e, ok := common.BoundaryError(common.Code(info.GetReason())); ok {
			return withStatus(e, st, info.GetMetadata())
		}
	}

	var e *common.Error
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		e = common.ErrInvalidToken
	case codes.AlreadyExists:
		e = common.ErrEmailAlreadyExists
	case codes.NotFound:
		e = common.ErrUserNotFound
	case codes.ResourceExhausted:
		e = common.ErrRateLimitExceeded
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		e = common.ErrNetwork
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
	return withStatus(e, st, nil)
}

func withStatus(e *common.Error, st *status.Status, md map[string]string) *common.Error {
	if st.Message() != "" {
		e = e.WithMessage(st.Message())
	}
	if f := md["field"]; f != "" {
		e = e.WithField(f)
	}
	for k, v := range md {
		if k != "field" {
			e = e.WithDetail(k, v)
		}
	}
	return e
}
