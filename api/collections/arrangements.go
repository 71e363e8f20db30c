package collections

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"CollectRecon/api"
	"CollectRecon/api/constants"
	"CollectRecon/internal/arrangement"
	"CollectRecon/internal/jobs"
	"CollectRecon/internal/ledger"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// SweepRunner runs the arrangement sweep on demand. *jobs.CronService
// satisfies it and refuses overlapping runs.
type SweepRunner interface {
	RunOnce(ctx context.Context) (arrangement.SweepResult, error)
}

type createArrangementRequest struct {
	AccountNumber string          `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	PromisedDate  string          `json:"promised_date"`
	UserID        string          `json:"user_id"`
}

func CreateArrangementHandler(e *Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req createArrangementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}
		if strings.TrimSpace(req.AccountNumber) == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.FormatMissingFieldError("account_number"))
			return
		}
		if strings.TrimSpace(req.PromisedDate) == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.FormatMissingFieldError("promised_date"))
			return
		}
		promised, err := time.Parse(constants.DateFormat, strings.TrimSpace(req.PromisedDate))
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.FormatError(constants.ErrInvalidDateFormat, "promised_date"))
			return
		}

		a, err := e.Arrangements.Create(r.Context(), arrangement.CreateRequest{
			AccountNumber: req.AccountNumber,
			Amount:        req.Amount,
			PromisedDate:  promised,
			CreatedBy:     actorOr(req.UserID),
		})
		switch {
		case errors.Is(err, arrangement.ErrInvalidAmount):
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidAmount)
		case errors.Is(err, ledger.ErrAccountNotFound):
			api.RespondWithError(w, http.StatusNotFound, constants.ErrAccountNotFound)
		case err != nil:
			api.LogError("create arrangement: %v", err)
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrOperationFailed)
		default:
			api.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "arrangement": a})
		}
	})
}

func GetArrangementHandler(e *Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, err := e.Arrangements.Get(r.Context(), mux.Vars(r)["id"])
		if errors.Is(err, arrangement.ErrNotFound) {
			api.RespondWithError(w, http.StatusNotFound, constants.ErrArrangementNotFound)
			return
		}
		if err != nil {
			api.LogError("get arrangement: %v", err)
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrInternalServer)
			return
		}
		api.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "arrangement": a})
	})
}

func ListAccountArrangementsHandler(e *Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		list, err := e.Arrangements.ListByAccount(r.Context(), mux.Vars(r)["number"])
		if err != nil {
			api.LogError("list arrangements: %v", err)
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrInternalServer)
			return
		}
		api.RespondWithPayload(w, true, "", list)
	})
}

func ConfirmPaidHandler(e *Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"user_id"`
		}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
				return
			}
		}
		a, err := e.Arrangements.ConfirmPaid(r.Context(), mux.Vars(r)["id"], actorOr(req.UserID))
		switch {
		case errors.Is(err, arrangement.ErrNotFound):
			api.RespondWithError(w, http.StatusNotFound, constants.ErrArrangementNotFound)
		case errors.Is(err, arrangement.ErrTerminal):
			api.RespondWithError(w, http.StatusConflict, constants.ErrArrangementResolved)
		case err != nil:
			api.LogError("confirm arrangement: %v", err)
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrOperationFailed)
		default:
			api.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "arrangement": a})
		}
	})
}

func SweepHandler(runner SweepRunner) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := runner.RunOnce(r.Context())
		if errors.Is(err, jobs.ErrSweepRunning) {
			api.RespondWithError(w, http.StatusConflict, constants.ErrSweepRunning)
			return
		}
		if err != nil {
			api.LogError("manual sweep: %v", err)
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrOperationFailed)
			return
		}
		api.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"success":      true,
			"scanned":      res.Scanned,
			"transitioned": res.Transitioned,
			"failed":       res.Failed,
		})
	})
}

func actorOr(userID string) string {
	if s := strings.TrimSpace(userID); s != "" {
		return s
	}
	return constants.DefaultActor
}
