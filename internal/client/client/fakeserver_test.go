package client

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

/*************
 * In-process fake authkeeper.v1.AuthService
 *************/

type fakeAccount struct {
	user       models.User
	password   string
	totpSecret string
}

type fakeAuthServer struct {
	mu       sync.Mutex
	secret   []byte
	ttl      time.Duration
	accounts map[string]*fakeAccount // by email
	refresh  map[string]string       // refresh token -> email

	lastMethod string
	lastMD     metadata.MD
	lastReq    map[string]any

	// failNext makes the next call fail with the given error
	failNext error
}

func newFakeAuthServer() *fakeAuthServer {
	return &fakeAuthServer{
		secret:   []byte("test-signing-key"),
		ttl:      time.Hour,
		accounts: map[string]*fakeAccount{},
		refresh:  map[string]string{},
	}
}

func (s *fakeAuthServer) addAccount(email, password, totpSecret string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := models.User{
		ID: common.NewID(), Email: email, Name: "Test User",
		Role: models.RoleUser, Plan: models.PlanFree, Status: models.UserStatusActive,
		Security: models.Security{TwoFactorEnabled: totpSecret != ""},
	}
	s.accounts[email] = &fakeAccount{user: u, password: password, totpSecret: totpSecret}
	return &u
}

func (s *fakeAuthServer) mint(email string, ttl time.Duration) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   email,
		ID:        common.NewID(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}).SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return tok
}

func reasonErr(c codes.Code, reason common.Code, msg string, md map[string]string) error {
	st, err := status.New(c, msg).WithDetails(&errdetails.ErrorInfo{
		Reason:   string(reason),
		Domain:   "authkeeper",
		Metadata: md,
	})
	if err != nil {
		panic(err)
	}
	return st.Err()
}

func (s *fakeAuthServer) authenticate(md metadata.MD) (*fakeAccount, error) {
	vals := md.Get(common.AuthorizationHeaderName)
	if len(vals) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	raw, ok := BearerToken(vals[0])
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "malformed authorization header")
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return s.secret, nil })
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, reasonErr(codes.Unauthenticated, common.CodeTokenExpired, "token expired", nil)
	}
	if err != nil {
		return nil, reasonErr(codes.Unauthenticated, common.CodeInvalidToken, "invalid token", nil)
	}

	acc, ok := s.accounts[claims.Subject]
	if !ok {
		return nil, status.Error(codes.NotFound, "no such user")
	}
	return acc, nil
}

func (s *fakeAuthServer) issue(acc *fakeAccount) map[string]any {
	rt := common.NewID()
	s.refresh[rt] = acc.user.Email
	return map[string]any{
		"user":         userMap(acc.user),
		"token":        s.mint(acc.user.Email, s.ttl),
		"refreshToken": rt,
		"expiresIn":    s.ttl.Seconds(),
	}
}

func userMap(u models.User) map[string]any {
	b, _ := json.Marshal(u)
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	return m
}

func str(m map[string]any, k string) string {
	v, _ := m[k].(string)
	return v
}

func (s *fakeAuthServer) dispatch(method string, in map[string]any, md metadata.MD) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastMethod, s.lastMD, s.lastReq = method, md, in
	if err := s.failNext; err != nil {
		s.failNext = nil
		return nil, err
	}

	switch method {
	case "Ping":
		return map[string]any{"status": "OK"}, nil

	case "Login":
		acc, ok := s.accounts[str(in, "email")]
		if !ok || acc.password != str(in, "password") {
			return nil, reasonErr(codes.Unauthenticated, common.CodeInvalidCredentials, "invalid email or password", nil)
		}
		if acc.totpSecret != "" {
			code := str(in, "twoFactorCode")
			if code == "" {
				return nil, reasonErr(codes.FailedPrecondition, common.CodeTwoFactorRequired, "two-factor code required",
					map[string]string{"field": "twoFactorCode"})
			}
			if !totp.Validate(code, acc.totpSecret) {
				return nil, reasonErr(codes.Unauthenticated, common.CodeInvalidTwoFactorCode, "invalid two-factor code",
					map[string]string{"field": "twoFactorCode"})
			}
		}
		return s.issue(acc), nil

	case "Register":
		email := str(in, "email")
		if _, ok := s.accounts[email]; ok {
			return nil, status.Error(codes.AlreadyExists, "email taken")
		}
		acc := &fakeAccount{password: str(in, "password"), user: models.User{
			ID: common.NewID(), Email: email, Name: str(in, "name"),
			Role: models.RoleUser, Plan: models.PlanFree, Status: models.UserStatusPending,
		}}
		s.accounts[email] = acc
		return s.issue(acc), nil

	case "Refresh":
		email, ok := s.refresh[str(in, "refreshToken")]
		if !ok {
			return nil, reasonErr(codes.Unauthenticated, common.CodeInvalidToken, "unknown refresh token", nil)
		}
		delete(s.refresh, str(in, "refreshToken"))
		return s.issue(s.accounts[email]), nil

	case "Logout", "UpdatePassword":
		if _, err := s.authenticate(md); err != nil {
			return nil, err
		}
		return map[string]any{}, nil

	case "GetProfile":
		acc, err := s.authenticate(md)
		if err != nil {
			return nil, err
		}
		return map[string]any{"user": userMap(acc.user)}, nil

	case "UpdateProfile":
		acc, err := s.authenticate(md)
		if err != nil {
			return nil, err
		}
		if n := str(in, "name"); n != "" {
			acc.user.Name = n
		}
		return map[string]any{"user": userMap(acc.user)}, nil

	case "ForgotPassword", "ResetPassword", "ResendVerification":
		return map[string]any{}, nil

	case "VerifyEmail":
		if str(in, "token") != "good" {
			return nil, reasonErr(codes.InvalidArgument, common.CodeInvalidToken, "bad verification token", nil)
		}
		return map[string]any{}, nil
	}

	return nil, status.Errorf(codes.Unimplemented, "unknown method %s", method)
}

func (s *fakeAuthServer) handle(_ any, stream grpc.ServerStream) error {
	full, _ := grpc.MethodFromServerStream(stream)
	method := strings.TrimPrefix(full, "/"+ServiceName+"/")

	in := &structpb.Struct{}
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	md, _ := metadata.FromIncomingContext(stream.Context())

	out, err := s.dispatch(method, in.AsMap(), md)
	if err != nil {
		return err
	}
	resp, err := structpb.NewStruct(out)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return stream.SendMsg(resp)
}

func (s *fakeAuthServer) last() (string, metadata.MD, map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMethod, s.lastMD, s.lastReq
}

// startFakeServer serves srv over bufconn and returns a connected client.
func startFakeServer(t *testing.T, srv *fakeAuthServer, opts ...Option) (*GRPCClient, func()) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(grpc.UnknownServiceHandler(srv.handle))
	go func() { _ = gs.Serve(lis) }()

	opts = append(opts, WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})))
	c, err := NewAuthServiceClient("passthrough:///bufnet", opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
		gs.Stop()
	})
	return c, gs.Stop
}
