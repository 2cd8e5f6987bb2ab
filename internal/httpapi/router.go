// Package httpapi exposes the ledger services over HTTP for the dashboard and
// admin panel collaborators.
package httpapi

import (
	"net/http"

	"investment-ledger-go/internal/api"
	"investment-ledger-go/internal/metrics"

	"github.com/gorilla/mux"
)

// Handler binds HTTP routes to a LedgerService
type Handler struct {
	svc *api.LedgerService
}

// NewRouter builds the complete route table. Everything under /v1 requires the
// identity headers set by the upstream auth layer.
func NewRouter(svc *api.LedgerService) *mux.Router {
	h := &Handler{svc: svc}

	router := mux.NewRouter()
	router.Use(metrics.InstrumentHandler)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusNotFound, api.CodeNotFound, "route not found")
	})

	router.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(requireIdentity)
	v1.HandleFunc("/plans", h.handleListPlans).Methods(http.MethodGet)
	v1.HandleFunc("/deposits", h.handleCreateDeposit).Methods(http.MethodPost)
	v1.HandleFunc("/withdrawals", h.handleCreateWithdrawal).Methods(http.MethodPost)
	v1.HandleFunc("/transactions", h.handleListTransactions).Methods(http.MethodGet)
	v1.HandleFunc("/dashboard", h.handleDashboard).Methods(http.MethodGet)
	v1.HandleFunc("/reinvestments", h.handleReinvest).Methods(http.MethodPost)
	v1.HandleFunc("/investments", h.handleListInvestments).Methods(http.MethodGet)
	v1.HandleFunc("/ledger-entries", h.handleLedgerEntries).Methods(http.MethodGet)

	admin := v1.PathPrefix("/admin").Subrouter()
	admin.Use(requireAdminRole)
	admin.HandleFunc("/transactions", h.handleListTransactions).Methods(http.MethodGet)
	admin.HandleFunc("/transactions/{id}", h.handleUpdateTransactionStatus).Methods(http.MethodPatch)
	admin.HandleFunc("/transactions/{id}/status-changes", h.handleListStatusChanges).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}", h.handleDeleteAccount).Methods(http.MethodDelete)
	admin.HandleFunc("/users/{id}/dashboard", h.handleDashboard).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}/investments", h.handleListInvestments).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}/ledger-entries", h.handleLedgerEntries).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}/balance-adjustments", h.handleAdjustBalance).Methods(http.MethodPost)
	admin.HandleFunc("/users/{id}/earnings-adjustments", h.handleAdjustEarnings).Methods(http.MethodPost)
	admin.HandleFunc("/users/{id}/withdrawable-earnings", h.handleSetWithdrawable).Methods(http.MethodPut)
	admin.HandleFunc("/users/{id}/earnings-pause", h.handlePauseEarnings).Methods(http.MethodPost)
	admin.HandleFunc("/users/{id}/earnings-pause", h.handleResumeEarnings).Methods(http.MethodDelete)
	admin.HandleFunc("/users/{id}/adjustments", h.handleListAdjustments).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}/reconciliation", h.handleReconcile).Methods(http.MethodGet)

	return router
}
