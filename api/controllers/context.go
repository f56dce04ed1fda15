package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
)

func buyerIDFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

func sellerIDFromContext(r *http.Request) (uuid.UUID, error) {
	id := middleware.SellerIDFromContext(r.Context())
	if id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "seller context missing")
	}
	return id, nil
}
