package server

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/lawnchairsociety/questengine/internal/config"
)

// Admission failures, one per limit
var (
	errServerFull  = errors.New("too many connections")
	errAddressFull = errors.New("too many connections from this address")
	errPlayerTaken = errors.New("player already connected")
)

// ConnLimiter caps connections per address and in total, and gives each
// player ID at most one live session. Player IDs compare case-insensitively.
type ConnLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	players  map[string]struct{}
	total    int
	maxPerIP int
	maxTotal int
}

// ConnStats is a point-in-time view of the limiter
type ConnStats struct {
	Connections int `json:"connections"`
	Addresses   int `json:"addresses"`
	Players     int `json:"players"`
}

// NewConnLimiter creates a limiter. Zero limits mean unlimited.
func NewConnLimiter(cfg config.ConnectionsConfig) *ConnLimiter {
	return &ConnLimiter{
		perIP:    make(map[string]int),
		players:  make(map[string]struct{}),
		maxPerIP: cfg.MaxPerIP,
		maxTotal: cfg.MaxTotal,
	}
}

// Admit reserves a connection for ip and the player ID together. Nothing
// is reserved when it returns an error.
func (c *ConnLimiter) Admit(ip, playerID string) (*ConnSlot, error) {
	key := strings.ToLower(playerID)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.maxTotal > 0 && c.total >= c.maxTotal:
		return nil, errServerFull
	case c.maxPerIP > 0 && c.perIP[ip] >= c.maxPerIP:
		return nil, errAddressFull
	}
	if _, taken := c.players[key]; taken {
		return nil, errPlayerTaken
	}

	c.perIP[ip]++
	c.total++
	c.players[key] = struct{}{}
	return &ConnSlot{limiter: c, ip: ip, player: key}, nil
}

// Stats returns current usage
func (c *ConnLimiter) Stats() ConnStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnStats{Connections: c.total, Addresses: len(c.perIP), Players: len(c.players)}
}

func (c *ConnLimiter) freeConn(ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := c.perIP[ip]; n > 1 {
		c.perIP[ip] = n - 1
	} else {
		delete(c.perIP, ip)
	}
	if c.total > 0 {
		c.total--
	}
}

func (c *ConnLimiter) freePlayer(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.players, key)
}

// ConnSlot is one admitted connection. The player ID and the connection
// are released separately, since a player's save must finish before the
// ID can be reused but the socket may already be gone. Both releases are
// safe to repeat.
type ConnSlot struct {
	limiter    *ConnLimiter
	ip         string
	player     string
	playerOnce sync.Once
	connOnce   sync.Once
}

// ReleasePlayer frees the player ID
func (s *ConnSlot) ReleasePlayer() {
	s.playerOnce.Do(func() { s.limiter.freePlayer(s.player) })
}

// Release frees the player ID, if still held, and the connection
func (s *ConnSlot) Release() {
	s.ReleasePlayer()
	s.connOnce.Do(func() { s.limiter.freeConn(s.ip) })
}

// admitStatus maps an Admit error to its HTTP status
func admitStatus(err error) int {
	if errors.Is(err, errPlayerTaken) {
		return http.StatusConflict
	}
	return http.StatusTooManyRequests
}

// extractIP strips the port from an ip:port address
func extractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// requestIP returns the address connection limits apply to. Proxy headers
// are honored only when trustProxy is set, since any client can send them.
// X-Forwarded-For wins over X-Real-IP; its first entry is the client.
func requestIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}
	return extractIP(r.RemoteAddr)
}
