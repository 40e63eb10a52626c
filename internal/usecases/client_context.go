package usecases

import "context"

type clientInfoKey struct{}

// ClientInfo carries the request context the route layer attaches to audit
// entries.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// WithClientInfo returns a context carrying the caller's client info. Audit
// entries recorded under that context include it.
func WithClientInfo(ctx context.Context, ipAddress, userAgent string) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, ClientInfo{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	})
}

// ClientInfoFromContext extracts client info previously attached with
// WithClientInfo.
func ClientInfoFromContext(ctx context.Context) (ClientInfo, bool) {
	info, ok := ctx.Value(clientInfoKey{}).(ClientInfo)
	return info, ok
}
