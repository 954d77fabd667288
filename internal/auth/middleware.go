package auth

import (
	"net/http"

	"local-delivery/internal/models"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// Context keys set by the JWT middleware.
const (
	KeyUserID    = "userID"
	KeyUserRole  = "userRole"
	KeyPartnerID = "partnerID"
	KeyPhone     = "phone"
)

// Claims carried by bearer tokens. The user id is the subject.
type Claims struct {
	Role      string `json:"role"`
	PartnerID string `json:"partner_id,omitempty"`
	Phone     string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

func validRole(r models.Role) bool {
	switch r {
	case models.RoleCustomer, models.RolePartner, models.RoleDelivery, models.RoleAdmin:
		return true
	}
	return false
}

// JWTMiddleware verifies HS256 bearer tokens and places the actor on the
// echo context.
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	verify := echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: echojwt.AlgorithmHS256,
		NewClaimsFunc: func(c echo.Context) jwt.Claims { return new(Claims) },
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, models.Failure("missing or invalid token"))
		},
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(func(c echo.Context) error {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return c.JSON(http.StatusUnauthorized, models.Failure("missing or invalid token"))
			}
			claims, ok := token.Claims.(*Claims)
			if !ok || claims.Subject == "" || !validRole(models.Role(claims.Role)) {
				return c.JSON(http.StatusUnauthorized, models.Failure("token does not identify an actor"))
			}
			c.Set(KeyUserID, claims.Subject)
			c.Set(KeyUserRole, claims.Role)
			c.Set(KeyPartnerID, claims.PartnerID)
			c.Set(KeyPhone, claims.Phone)
			return next(c)
		})
	}
}

// ActorFrom reads the actor placed by JWTMiddleware. Missing values yield
// an empty actor, which the guard rejects as unauthenticated.
func ActorFrom(c echo.Context) models.Actor {
	str := func(key string) string {
		v, _ := c.Get(key).(string)
		return v
	}
	return models.Actor{
		ID:        str(KeyUserID),
		Role:      models.Role(str(KeyUserRole)),
		PartnerID: str(KeyPartnerID),
		Phone:     str(KeyPhone),
	}
}

// RequireRole is the blanket gate for role-restricted route groups.
func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			a := ActorFrom(c)
			if a.ID == "" {
				return c.JSON(http.StatusUnauthorized, models.Failure("authentication required"))
			}
			for _, r := range roles {
				if a.Role == r {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, models.Failure("access denied"))
		}
	}
}
