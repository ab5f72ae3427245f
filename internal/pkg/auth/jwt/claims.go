package jwt

import "github.com/golang-jwt/jwt"

// RoleAdmin is the only role accepted by the admin API.
const RoleAdmin = "admin"

// Payload defines the JWT claims carried by admin API tokens.
type Payload struct {
	// StandardClaims carries Subject (operator name), ExpiresAt, IssuedAt and Issuer.
	jwt.StandardClaims `json:"standard_claims"`

	// Role must equal RoleAdmin for the admin API.
	Role string `json:"role"`
}
