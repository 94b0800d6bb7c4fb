package models

import "github.com/golang-jwt/jwt/v5"

// Roles carried by identity tokens.
const (
	RoleCustomer = "customer"
	RoleProvider = "provider"
)

// IdentityClaims are the claims this core trusts from the external identity
// service. Subject carries the opaque customer or provider id.
type IdentityClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Pagination describes list response paging metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
