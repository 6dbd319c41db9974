// Package middleware provides authentication, logging, metrics and rate limiting for the HTTP API.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"huddle/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	TokenIssuer   = "huddle-api"
	TokenAudience = "huddle-client"
	TokenTTL      = 7 * 24 * time.Hour
	WSTicketTTL   = 30 * time.Second
)

// Claims is the subset of a verified token the API relies on.
type Claims struct {
	UserID    uint
	Username  string
	JTI       string
	ExpiresAt time.Time
}

// IssueToken signs an HS256 token for userID and returns it with its jti.
func IssueToken(secret string, userID uint, username string) (string, string, error) {
	if secret == "" {
		return "", "", errors.New("JWT secret not configured")
	}

	now := time.Now()
	jti := uuid.NewString()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      TokenIssuer,
		"aud":      TokenAudience,
		"exp":      now.Add(TokenTTL).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      jti,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

// ParseToken verifies signature, issuer, audience and expiry and extracts the claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, models.NewUnauthorizedError("Invalid token claims")
	}

	sub, err := mapClaims.GetSubject()
	if err != nil || sub == "" {
		return nil, models.NewUnauthorizedError("Invalid subject claim")
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, models.NewUnauthorizedError("Invalid user ID in token")
	}

	out := &Claims{UserID: uint(userID)}
	out.Username, _ = mapClaims["username"].(string)
	out.JTI, _ = mapClaims["jti"].(string)
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// BlacklistKey is the Redis key marking a revoked token.
func BlacklistKey(jti string) string {
	return "blacklist:" + jti
}

// WSTicketKey is the Redis key holding the user ID for a single-use websocket ticket.
func WSTicketKey(ticket string) string {
	return "ws_ticket:" + ticket
}

// AuthRequired authenticates a request with a websocket ticket (websocket paths only)
// or a bearer token, and stores the user ID in locals and the user context.
func AuthRequired(secret string, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws")

		if ticket := c.Query("ticket"); ticket != "" && isWSPath {
			userID, err := redeemTicket(c.Context(), rdb, ticket)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			return authenticated(c, userID)
		}

		tokenString := bearerToken(c.Get("Authorization"))
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := ParseToken(secret, tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}

		if claims.JTI != "" && rdb != nil {
			revoked, err := rdb.Exists(c.Context(), BlacklistKey(claims.JTI)).Result()
			if err == nil && revoked > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		c.Locals("claims", claims)
		return authenticated(c, claims.UserID)
	}
}

func authenticated(c *fiber.Ctx, userID uint) error {
	c.Locals("userID", userID)
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, userID))
	return c.Next()
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func redeemTicket(ctx context.Context, rdb *redis.Client, ticket string) (uint, error) {
	if rdb == nil {
		return 0, errors.New("tickets unavailable")
	}
	raw, err := rdb.GetDel(ctx, WSTicketKey(ticket)).Result()
	if err != nil {
		return 0, err
	}
	userID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(userID), nil
}

// IssueWSTicket stores a single-use ticket for userID.
func IssueWSTicket(ctx context.Context, rdb *redis.Client, userID uint) (string, error) {
	if rdb == nil {
		return "", errors.New("redis unavailable")
	}
	ticket := uuid.NewString()
	if err := rdb.Set(ctx, WSTicketKey(ticket), strconv.FormatUint(uint64(userID), 10), WSTicketTTL).Err(); err != nil {
		return "", err
	}
	return ticket, nil
}
