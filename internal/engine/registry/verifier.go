package registry

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	httpclient "dynamic-forms/internal/common/http"
	"dynamic-forms/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// DefaultPANPrefix is the mock verification rule: only PANs starting with
// this prefix are treated as on record.
const DefaultPANPrefix = "ABCDE"

// PANVerifier decides whether a well-formed PAN is on record.
type PANVerifier interface {
	Verify(ctx context.Context, pan string) (bool, error)
}

// PrefixVerifier accepts PANs that start with Prefix.
type PrefixVerifier struct {
	Prefix string
}

func NewPrefixVerifier(prefix string) *PrefixVerifier {
	return &PrefixVerifier{Prefix: prefix}
}

func (v *PrefixVerifier) Verify(_ context.Context, pan string) (bool, error) {
	return strings.HasPrefix(pan, v.Prefix), nil
}

// HTTPVerifier asks a remote registry. The endpoint receives
// {"pan": "..."} and answers {"valid": bool}; a 404 means not on record.
type HTTPVerifier struct {
	client   *httpclient.Client
	endpoint string
}

func NewHTTPVerifier(client *httpclient.Client, endpoint string) *HTTPVerifier {
	return &HTTPVerifier{client: client, endpoint: endpoint}
}

func (v *HTTPVerifier) Verify(ctx context.Context, pan string) (bool, error) {
	var out struct {
		Valid bool `json:"valid"`
	}
	err := v.client.PostJSON(ctx, v.endpoint, map[string]string{"pan": pan}, &out)
	if err != nil {
		var statusErr *httpclient.StatusError
		if stderrors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return out.Valid, nil
}

// CachingVerifier memoizes another verifier's answers in Redis. Cache
// failures are logged and bypassed.
type CachingVerifier struct {
	next   PANVerifier
	rdb    redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

const panCachePrefix = "pan:verified:"

func NewCachingVerifier(next PANVerifier, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachingVerifier {
	return &CachingVerifier{next: next, rdb: rdb, ttl: ttl, logger: log}
}

func (v *CachingVerifier) Verify(ctx context.Context, pan string) (bool, error) {
	key := panCachePrefix + pan

	cached, err := v.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		return cached == "1", nil
	case !stderrors.Is(err, redis.Nil):
		v.logger.Warn("pan cache read failed", map[string]interface{}{"error": err.Error()})
	}

	ok, err := v.next.Verify(ctx, pan)
	if err != nil {
		return false, err
	}

	val := "0"
	if ok {
		val = "1"
	}
	if err := v.rdb.Set(ctx, key, val, v.ttl).Err(); err != nil {
		v.logger.Warn("pan cache write failed", map[string]interface{}{"error": err.Error()})
	}
	return ok, nil
}
