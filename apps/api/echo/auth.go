package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/edugrade/core"
	"github.com/trezcool/edugrade/core/user"
)

const jwtContextKey = "userToken"

type Claims struct {
	jwt.StandardClaims
	OriginalIssuedAt int64  `json:"orig_iat,omitempty"`
	Name             string `json:"name,omitempty"`
	Email            string `json:"email,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		Claims:        new(Claims),
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    jwtContextKey,
	}
}

// GetUserClaims returns the JWT claims for usr. origIat is only set on token refresh
// to carry the original issue time through the refresh chain.
func GetUserClaims(usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   usr.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
		},
		Name:  usr.Name,
		Email: usr.Email,
	}
	if len(origIat) > 0 {
		claims.OriginalIssuedAt = origIat[0]
	} else {
		claims.OriginalIssuedAt = claims.IssuedAt
	}
	return claims
}

func GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	signed, err := token.SignedString([]byte(core.Conf.SecretKey))
	return signed, errors.Wrap(err, "signing token")
}

func authenticate(ctx context.Context, email, pwd string, svc *user.Service) (*Claims, error) {
	usr, err := svc.Authenticate(ctx, email, pwd)
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrNotFound:
			return nil, errAuthenticationFailed
		case user.ErrInactive:
			return nil, errAccountDeactivated
		default:
			return nil, errors.Wrap(err, "authenticating user")
		}
	}
	return GetUserClaims(usr), nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(jwtContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errMissingToken
}

func getContextUser(ctx echo.Context, svc *user.Service, clms ...Claims) (user.User, error) {
	var claims Claims
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		var err error
		if claims, err = getContextClaims(ctx); err != nil {
			return user.User{}, err
		}
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "getting context user")
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	return usr, nil
}

// refreshToken issues a new token for the context user as long as the original
// issue time is still within the refresh window.
func refreshToken(ctx echo.Context, svc *user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}

	origIat := claims.OriginalIssuedAt
	if time.Now().After(time.Unix(origIat, 0).Add(core.Conf.Server.JWTRefreshExpirationDelta)) {
		return "", errRefreshExpired
	}

	usr, err := getContextUser(ctx, svc, claims)
	if err != nil {
		return "", err
	}
	return GenerateToken(GetUserClaims(usr, origIat))
}
