package middleware

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	adminTokenHeader   = "X-Admin-Token"
	callbackTokenParam = "token"
)

// AdminAuth requires the X-Admin-Token header to equal token. With an empty
// token the admin routes are disabled.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Forbidden",
				"details": "admin API is disabled",
			})
			return
		}

		if !tokenEqual(c.GetHeader(adminTokenHeader), token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"details": "invalid admin token",
			})
			return
		}

		c.Next()
	}
}

// CallbackAuth verifies provider callbacks by the shared token query
// parameter and, when allowedIPs is non-empty, the source address. Entries in
// allowedIPs are single addresses or CIDR ranges.
func CallbackAuth(token string, allowedIPs []string, logger *zap.Logger) gin.HandlerFunc {
	nets := parseAllowList(allowedIPs, logger)
	if token == "" {
		logger.Warn("payment callback token not configured; callbacks are not authenticated")
	}

	return func(c *gin.Context) {
		if len(nets) > 0 && !ipAllowed(c.ClientIP(), nets) {
			logger.Warn("payment callback from disallowed address", zap.String("client_ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Forbidden",
				"details": "source address not allowed",
			})
			return
		}

		if token != "" && !tokenEqual(c.Query(callbackTokenParam), token) {
			logger.Warn("payment callback with invalid token", zap.String("client_ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"details": "invalid callback token",
			})
			return
		}

		c.Next()
	}
}

func tokenEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func parseAllowList(entries []string, logger *zap.Logger) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			if ip := net.ParseIP(entry); ip != nil && ip.To4() != nil {
				entry += "/32"
			} else {
				entry += "/128"
			}
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			logger.Warn("ignoring invalid callback allow-list entry", zap.String("entry", entry), zap.Error(err))
			continue
		}
		nets = append(nets, ipNet)
	}
	return nets
}

func ipAllowed(raw string, nets []*net.IPNet) bool {
	ip := net.ParseIP(raw)
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
