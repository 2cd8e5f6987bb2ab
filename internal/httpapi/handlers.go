package httpapi

import (
	"net/http"

	"investment-ledger-go/internal/models"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.HealthCheck(r.Context()); err != nil {
		zap.L().Error("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleListPlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ListPlans())
}

func (h *Handler) handleCreateDeposit(w http.ResponseWriter, r *http.Request) {
	var req models.DepositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	record, err := h.svc.CreateDeposit(r.Context(), actorFrom(r), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (h *Handler) handleCreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req models.WithdrawalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	record, err := h.svc.CreateWithdrawal(r.Context(), actorFrom(r), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (h *Handler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit")
	if err != nil {
		fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		fail(w, r, err)
		return
	}

	records, err := h.svc.ListTransactions(r.Context(), actorFrom(r), models.TransactionFilter{
		UserId: q.Get("user_id"),
		Type:   models.TransactionType(q.Get("type")),
		Status: models.TransactionStatus(q.Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) handleUpdateTransactionStatus(w http.ResponseWriter, r *http.Request) {
	var req models.StatusUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	record, err := h.svc.UpdateTransactionStatus(r.Context(), actorFrom(r), mux.Vars(r)["id"], req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleListStatusChanges(w http.ResponseWriter, r *http.Request) {
	changes, err := h.svc.ListStatusChanges(r.Context(), actorFrom(r), mux.Vars(r)["id"])
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

// targetUser is the {id} path variable on admin routes and the caller otherwise
func targetUser(r *http.Request) string {
	if id := mux.Vars(r)["id"]; id != "" {
		return id
	}
	return actorFrom(r).Id
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.GetDashboardSummary(r.Context(), actorFrom(r), targetUser(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleReinvest(w http.ResponseWriter, r *http.Request) {
	var req models.ReinvestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	investment, err := h.svc.Reinvest(r.Context(), actorFrom(r), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, investment)
}

func (h *Handler) handleListInvestments(w http.ResponseWriter, r *http.Request) {
	status := models.InvestmentStatus(r.URL.Query().Get("status"))
	investments, err := h.svc.ListInvestments(r.Context(), actorFrom(r), targetUser(r), status)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, investments)
}

func (h *Handler) handleLedgerEntries(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		fail(w, r, err)
		return
	}
	entries, err := h.svc.GetLedgerEntries(r.Context(), actorFrom(r), targetUser(r), limit, offset)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req models.AdjustmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	record, err := h.svc.AdjustBalance(r.Context(), actorFrom(r), mux.Vars(r)["id"], req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (h *Handler) handleAdjustEarnings(w http.ResponseWriter, r *http.Request) {
	var req models.AdjustmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	record, err := h.svc.AdjustEarnings(r.Context(), actorFrom(r), mux.Vars(r)["id"], req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (h *Handler) handleSetWithdrawable(w http.ResponseWriter, r *http.Request) {
	var req models.AdjustmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	record, err := h.svc.SetWithdrawableEarnings(r.Context(), actorFrom(r), mux.Vars(r)["id"], req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handlePauseEarnings(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.PauseEarnings(r.Context(), actorFrom(r), mux.Vars(r)["id"])
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user_id": account.Id, "earnings_paused": account.EarningsPaused})
}

func (h *Handler) handleResumeEarnings(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.ResumeEarnings(r.Context(), actorFrom(r), mux.Vars(r)["id"])
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user_id": account.Id, "earnings_paused": account.EarningsPaused})
}

func (h *Handler) handleListAdjustments(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		fail(w, r, err)
		return
	}
	records, err := h.svc.ListAdjustments(r.Context(), actorFrom(r), mux.Vars(r)["id"], limit, offset)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Reconcile(r.Context(), actorFrom(r), mux.Vars(r)["id"])
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	err := h.svc.DeleteAccount(r.Context(), actorFrom(r), mux.Vars(r)["id"], r.URL.Query().Get("reason"))
	if err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
