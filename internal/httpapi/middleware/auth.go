package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/suPer8Hu/w3a11y-artisan/internal/apperr"
	"github.com/suPer8Hu/w3a11y-artisan/internal/common"
)

const (
	UserIDKey = "uid"
	CapsKey   = "caps"
	ActionKey = "action"

	CapUploadFiles   = "upload_files"
	CapManageOptions = "manage_options"
)

type Claims struct {
	UID  uint64   `json:"uid"`
	Caps []string `json:"caps"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for uid with the given capabilities.
func IssueToken(secret string, uid uint64, caps []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UID:  uid,
		Caps: caps,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		raw, found := strings.CutPrefix(h, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			common.Fail(c, apperr.Auth("Authentication required.", http.StatusUnauthorized))
			return
		}

		var claims Claims
		_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			msg := "Invalid security token."
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Security token expired. Please reload the page."
			}
			common.Fail(c, apperr.Auth(msg, http.StatusUnauthorized))
			return
		}
		if claims.UID == 0 {
			common.Fail(c, apperr.Auth("Invalid security token.", http.StatusUnauthorized))
			return
		}

		c.Set(UserIDKey, claims.UID)
		c.Set(CapsKey, claims.Caps)
		c.Next()
	}
}

func UserID(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

func HasCapability(c *gin.Context, capability string) bool {
	v, ok := c.Get(CapsKey)
	if !ok {
		return false
	}
	caps, _ := v.([]string)
	return slices.Contains(caps, capability) || slices.Contains(caps, "administrator")
}

func RequireCapability(capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !HasCapability(c, capability) {
			common.Fail(c, apperr.Auth("You do not have permission to perform this action.", http.StatusForbidden))
			return
		}
		c.Next()
	}
}
