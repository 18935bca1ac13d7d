package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/traderssquare/storefront-backend/api/middleware"
	"github.com/traderssquare/storefront-backend/api/responses"
	"github.com/traderssquare/storefront-backend/api/validators"
	cartsvc "github.com/traderssquare/storefront-backend/internal/cart"
	dbtypes "github.com/traderssquare/storefront-backend/pkg/db/types"
	pkgerrors "github.com/traderssquare/storefront-backend/pkg/errors"
	"github.com/traderssquare/storefront-backend/pkg/logger"
)

// CartGet returns the authenticated user's cart.
func CartGet(svc *cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		cart, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"cart": cart})
	}
}

type replaceCartRequest struct {
	Cart map[string]int `json:"cart" validate:"required"`
}

// CartReplace swaps the stored cart for the payload's cart.
func CartReplace(svc *cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var payload replaceCartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart, err := svc.Replace(r.Context(), userID, dbtypes.Cart(payload.Cart))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"cart": cart})
	}
}
