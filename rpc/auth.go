package rpc

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	lru "github.com/hashicorp/golang-lru"
)

const defaultAuthCacheSize = 1000

// Credentials is the process-wide RPC credential pair, constructed once from
// config and immutable for the process lifetime. It is never logged.
type Credentials struct {
	Username string
	Password string
}

type authLRUCache struct {
	*lru.Cache
}

func newAuthLRUCache(cap int) *authLRUCache {
	cache, err := lru.New(cap)
	if err != nil {
		panic(err)
	}

	return &authLRUCache{
		cache,
	}
}

func (cache *authLRUCache) getVerdict(header string) (ok bool) {
	_, ok = cache.Get(header)
	return ok
}

func (cache *authLRUCache) addVerdict(header string) {
	if header != "" {
		cache.Add(header, true)
	}
}

// authGate validates transport credentials before anything about the request
// body is parsed. Both legs are compared over SHA-256 digests so the work
// done does not depend on which leg mismatches, and accepted Authorization
// headers are memoized in a bounded LRU holding only a boolean.
type authGate struct {
	userDigest [sha256.Size]byte
	passDigest [sha256.Size]byte
	verdicts   *authLRUCache
}

func newAuthGate(creds Credentials) *authGate {
	return &authGate{
		userDigest: sha256.Sum256([]byte(creds.Username)),
		passDigest: sha256.Sum256([]byte(creds.Password)),
		verdicts:   newAuthLRUCache(defaultAuthCacheSize),
	}
}

// authenticate checks the request's basic-auth header. It never reads the
// request body.
func (g *authGate) authenticate(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if header != "" && g.verdicts.getVerdict(header) {
		return true
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userDigest := sha256.Sum256([]byte(user))
	passDigest := sha256.Sum256([]byte(pass))
	userOK := subtle.ConstantTimeCompare(userDigest[:], g.userDigest[:])
	passOK := subtle.ConstantTimeCompare(passDigest[:], g.passDigest[:])
	if userOK&passOK != 1 {
		return false
	}

	g.verdicts.addVerdict(header)
	return true
}
