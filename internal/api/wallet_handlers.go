package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-slot-booking/internal/wallet"
)

// GET /wallets/{user_id}
func getWalletHandler(svc WalletService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUUID(w, r, "user_id")
		if !ok {
			return
		}
		wl, err := svc.Get(r.Context(), userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toWalletResponse(*wl))
	}
}

// POST /wallets/{user_id}/credit
func creditWalletHandler(svc WalletService) http.HandlerFunc {
	return walletMutation(svc.Credit)
}

// POST /wallets/{user_id}/debit
func debitWalletHandler(svc WalletService) http.HandlerFunc {
	return walletMutation(svc.Debit)
}

type walletOp func(ctx context.Context, userID uuid.UUID, amount int64, description string, bookingRef *uuid.UUID) (*wallet.Wallet, error)

func walletMutation(op walletOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUUID(w, r, "user_id")
		if !ok {
			return
		}
		var req WalletMutationRequest
		if !decodeBody(w, r, &req) {
			return
		}
		var ref *uuid.UUID
		if req.BookingRef != "" {
			id, _ := uuid.Parse(req.BookingRef)
			ref = &id
		}

		wl, err := op(r.Context(), userID, req.Amount, req.Description, ref)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toWalletResponse(*wl))
	}
}
