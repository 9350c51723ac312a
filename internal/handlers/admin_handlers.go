package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/craftbazaar/accounts/internal/domain"
)

// ListAccounts handles listing all accounts (admin only)
func (h *Handlers) ListAccounts(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	accounts, err := h.accountService.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", "INTERNAL_ERROR")
		return
	}

	infos := make([]*domain.AccountInfo, len(accounts))
	for i := range accounts {
		infos[i] = accounts[i].ToInfo()
	}

	writeJSON(w, http.StatusOK, infos)
}

// GetAccount handles getting a specific account (admin only)
func (h *Handlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	account, err := h.accountService.GetAccount(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account.ToInfo())
}

// UpdateAccount handles updating account information (admin only)
func (h *Handlers) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch domain.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	account, err := h.accountService.UpdateAccount(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account.ToInfo())
}

// DeactivateAccount blocks future logins for an account (admin only).
// Accounts are deactivated, never deleted.
func (h *Handlers) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.accountService.Deactivate(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Account deactivated",
	})
}
