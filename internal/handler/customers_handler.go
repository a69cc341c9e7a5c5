package handler

import (
	"net/http"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/pricing"
	"github.com/boddenberg/telecom-support-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Customer accounts: /v1/customers
// ============================================================

type settingRequest struct {
	Value string `json:"value"`
}

// pricingResponse is the charge breakdown of one account.
type pricingResponse struct {
	CustomerID   string          `json:"customerID"`
	Charges      pricing.Charges `json:"charges"`
	TotalCharges float64         `json:"totalCharges"`
	Tenure       int             `json:"tenure"`
}

func listCustomersHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var customers []domain.CustomerRecord
		if q := r.URL.Query().Get("q"); q != "" {
			customers = deps.Lookup.Search(q)
		} else {
			customers = deps.Accounts.Customers()
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.CustomerRecord]{Data: customers, Total: len(customers)})
	}
}

// customerFromPath resolves {customerID} or writes a 404.
func customerFromPath(w http.ResponseWriter, r *http.Request, deps Deps, logger *zap.Logger) (*domain.CustomerRecord, bool) {
	id := chi.URLParam(r, "customerID")
	c, ok := deps.Accounts.GetByCustomerID(id)
	if !ok {
		handleServiceError(w, &domain.ErrNotFound{Resource: "customer", ID: id}, logger)
		return nil, false
	}
	return c, true
}

func getCustomerHandler(deps Deps, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := customerFromPath(w, r, deps, logger)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func createCustomerHandler(deps Deps, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/customers")
		defer span.End()

		var in domain.NewCustomerInput
		if err := decodeBody(r, &in, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		c, err := deps.Accounts.AddCustomer(ctx, in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("customer.id", c.CustomerID))
		writeJSON(w, http.StatusCreated, c)
	}
}

func updateCustomerHandler(deps Deps, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/customers/{customerID}")
		defer span.End()

		current, ok := customerFromPath(w, r, deps, logger)
		if !ok {
			return
		}
		var patch domain.CustomerPatch
		if err := decodeBody(r, &patch, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		c, err := deps.Accounts.UpdateCustomer(ctx, current.ID, patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func deleteCustomerHandler(deps Deps, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/customers/{customerID}")
		defer span.End()

		current, ok := customerFromPath(w, r, deps, logger)
		if !ok {
			return
		}
		if err := deps.Accounts.DeleteCustomer(ctx, current.ID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// writeMutation reports an account action: 200 on success, 400 otherwise.
// Unknown customers are caught earlier by customerFromPath.
func writeMutation(w http.ResponseWriter, result service.MutationResult) {
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

func addonHandler(deps Deps, enable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "/v1/customers/{customerID}/addons/{addon}")
		defer span.End()

		customerID := chi.URLParam(r, "customerID")
		addon := chi.URLParam(r, "addon")
		span.SetAttributes(
			attribute.String("customer.id", customerID),
			attribute.String("addon", addon),
			attribute.Bool("enable", enable),
		)

		if _, ok := deps.Accounts.GetByCustomerID(customerID); !ok {
			writeError(w, http.StatusNotFound, "customer not found: "+customerID)
			return
		}

		var result service.MutationResult
		if enable {
			result = deps.Actions.AddAddonToCustomer(ctx, customerID, addon)
		} else {
			result = deps.Actions.RemoveAddonFromCustomer(ctx, customerID, addon)
		}
		writeMutation(w, result)
	}
}

func settingsHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/customers/{customerID}/settings/{setting}")
		defer span.End()

		customerID := chi.URLParam(r, "customerID")
		if _, ok := deps.Accounts.GetByCustomerID(customerID); !ok {
			writeError(w, http.StatusNotFound, "customer not found: "+customerID)
			return
		}

		var req settingRequest
		if err := decodeBody(r, &req, false); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeMutation(w, deps.Actions.UpdateCustomerSettings(ctx, customerID, chi.URLParam(r, "setting"), req.Value))
	}
}

func pricingHandler(deps Deps, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := customerFromPath(w, r, deps, logger)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, pricingResponse{
			CustomerID:   c.CustomerID,
			Charges:      pricing.Compute(*c),
			TotalCharges: c.TotalCharges,
			Tenure:       c.Tenure,
		})
	}
}

// pricingPreviewHandler: GET .../pricing/preview?service=StreamingTV&action=add
func pricingPreviewHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID := chi.URLParam(r, "customerID")
		if _, ok := deps.Accounts.GetByCustomerID(customerID); !ok {
			writeError(w, http.StatusNotFound, "customer not found: "+customerID)
			return
		}

		q := r.URL.Query()
		writeMutation(w, deps.Actions.CalculateServiceCost(r.Context(), customerID, q.Get("service"), q.Get("action")))
	}
}
