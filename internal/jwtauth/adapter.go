package jwtauth

import (
	id "crowngate/pkg/domain"
	dErrors "crowngate/pkg/domain-errors"
	authmw "crowngate/pkg/platform/middleware/auth"
)

// Adapter bridges the token service to the auth middleware's validator
// interface, converting string claims back into domain types.
type Adapter struct {
	service *Service
}

func NewAdapter(service *Service) *Adapter {
	return &Adapter{service: service}
}

func (a *Adapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	role, err := id.ParseRole(claims.Role)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	return &authmw.JWTClaims{
		UserID: userID,
		Role:   role,
		JTI:    claims.ID,
	}, nil
}
