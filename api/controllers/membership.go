package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/traderssquare/storefront-backend/api/middleware"
	"github.com/traderssquare/storefront-backend/api/responses"
	membershipsvc "github.com/traderssquare/storefront-backend/internal/membership"
	pkgerrors "github.com/traderssquare/storefront-backend/pkg/errors"
	"github.com/traderssquare/storefront-backend/pkg/logger"
)

// MembershipStatus reports the authenticated user's membership standing.
func MembershipStatus(svc *membershipsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "membership service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		status, err := svc.Status(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
