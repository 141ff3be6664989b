package gateway

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Reserved is carried through the gateway round trip so the return handler
// can recover who started the checkout.
type Reserved struct {
	Origin  string
	OrderID string
	Method  string
}

type reservedClaims struct {
	Origin  string `json:"origin"`
	OrderID string `json:"orderId"`
	Method  string `json:"method"`
	jwt.RegisteredClaims
}

// ReservedCodec signs the reserved blob with HS256 so a tampered return
// cannot point confirmation at another order.
type ReservedCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewReservedCodec(key string, ttl time.Duration) *ReservedCodec {
	return &ReservedCodec{key: []byte(key), ttl: ttl, now: time.Now}
}

func (c *ReservedCodec) Encode(r Reserved) (string, error) {
	if len(c.key) == 0 {
		return "", errors.New("reserved signing key is not set")
	}

	now := c.now()
	claims := reservedClaims{
		Origin:  r.Origin,
		OrderID: r.OrderID,
		Method:  r.Method,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.key)
}

func (c *ReservedCodec) Decode(tokenStr string) (*Reserved, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&reservedClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return c.key, nil
		},
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReserved, err)
	}

	claims, ok := token.Claims.(*reservedClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidReserved
	}

	return &Reserved{Origin: claims.Origin, OrderID: claims.OrderID, Method: claims.Method}, nil
}
