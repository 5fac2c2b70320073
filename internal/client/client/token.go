package client

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// TokenSource supplies the bearer token for outgoing calls. An empty token
// means the call goes out unauthenticated.
type TokenSource func(ctx context.Context) (string, error)

type tokenOverrideKey struct{}

// WithToken makes calls under ctx use token instead of the client's token
// source. An empty token sends no authorization header.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenOverrideKey{}, token)
}

// TokenFromContext reports the override set by WithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenOverrideKey{}).(string)
	return t, ok
}

func withAuthorization(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AuthorizationHeaderName)
	if token != "" {
		md.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}
	if len(md.Get(common.CorrelationHeaderName)) == 0 {
		md.Set(common.CorrelationHeaderName, common.NewID())
	}

	return metadata.NewOutgoingContext(ctx, md)
}

// BearerToken extracts the token from an authorization header value.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, common.BearerPrefix) {
		return "", false
	}
	t := strings.TrimSpace(strings.TrimPrefix(header, common.BearerPrefix))
	return t, t != ""
}

func (c *GRPCClient) authInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	token, ok := TokenFromContext(ctx)
	if !ok && c.tokens != nil {
		var err error
		token, err = c.tokens(ctx)
		if err != nil {
			return err
		}
	}

	return invoker(withAuthorization(ctx, token), method, req, reply, cc, opts...)
}
