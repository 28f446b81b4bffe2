package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// MaxTrackedClients bounds the per-client limiters kept by each token route.
// The least recently seen client is dropped first.
const MaxTrackedClients = 4096

// limiter allows n requests per window for each client address, refilled
// evenly across the window.
type limiter struct {
	mu      sync.Mutex
	clients *lru.Cache[string, *rate.Limiter]
	every   rate.Limit
	burst   int
}

func newLimiter(n int, window time.Duration) *limiter {
	return newLimiterSize(n, window, MaxTrackedClients)
}

func newLimiterSize(n int, window time.Duration, size int) *limiter {
	clients, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		clients, _ = lru.New[string, *rate.Limiter](MaxTrackedClients)
	}
	return &limiter{
		clients: clients,
		every:   rate.Every(window / time.Duration(n)),
		burst:   n,
	}
}

func (l *limiter) allow(client string) bool {
	l.mu.Lock()
	lim, ok := l.clients.Get(client)
	if !ok {
		lim = rate.NewLimiter(l.every, l.burst)
		l.clients.Add(client, lim)
	}
	l.mu.Unlock()
	return lim.Allow()
}

func (l *limiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests, please try again later.",
			})
			return
		}
		c.Next()
	}
}
