package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/pricing"

	"go.uber.org/zap"
)

var validSettings = []string{"InternetService", "PaperlessBilling", "Partner"}

// MutationResult is what an account action reports back to the caller.
// Failures are results, not errors.
type MutationResult struct {
	Success           bool                   `json:"success"`
	Message           string                 `json:"message"`
	NewMonthlyCharges float64                `json:"newMonthlyCharges,omitempty"`
	Customer          *CustomerSummary       `json:"customer,omitempty"`
	Preview           *pricing.ChangePreview `json:"preview,omitempty"`
}

// CustomerSummary identifies the account an action touched.
type CustomerSummary struct {
	ID             int     `json:"id"`
	CustomerID     string  `json:"customerID"`
	MonthlyCharges float64 `json:"monthlyCharges"`
}

func summarize(c *domain.CustomerRecord) *CustomerSummary {
	return &CustomerSummary{ID: c.ID, CustomerID: c.CustomerID, MonthlyCharges: c.MonthlyCharges}
}

func failed(format string, args ...any) MutationResult {
	return MutationResult{Success: false, Message: fmt.Sprintf(format, args...)}
}

// AccountActions is the interactive action surface over the account store.
// The chat model requests these as external tools; the caller confirms and
// executes them.
type AccountActions struct {
	store  *AccountStateStore
	logger *zap.Logger
}

// NewAccountActions creates the action surface.
func NewAccountActions(store *AccountStateStore, logger *zap.Logger) *AccountActions {
	return &AccountActions{store: store, logger: logger}
}

// AddAddonToCustomer enables an add-on.
func (a *AccountActions) AddAddonToCustomer(ctx context.Context, customerID, addonName string) MutationResult {
	if _, ok := a.store.GetByCustomerID(customerID); !ok {
		return failed("Customer with ID %s not found", customerID)
	}
	addon, ok := domain.ParseAddon(addonName)
	if !ok {
		return failed("Invalid addon: %s. Valid options: %s", addonName, addonNames())
	}

	c, ok := a.store.AddAddon(ctx, customerID, addon)
	if !ok {
		return failed("Failed to add %s. Check if prerequisites are met (e.g., PhoneService required for MultipleLines)", addonName)
	}
	return MutationResult{
		Success:           true,
		Message:           fmt.Sprintf("Successfully added %s to customer %s", addonName, c.CustomerID),
		NewMonthlyCharges: c.MonthlyCharges,
		Customer:          summarize(c),
	}
}

// RemoveAddonFromCustomer disables an add-on.
func (a *AccountActions) RemoveAddonFromCustomer(ctx context.Context, customerID, addonName string) MutationResult {
	if _, ok := a.store.GetByCustomerID(customerID); !ok {
		return failed("Customer with ID %s not found", customerID)
	}
	addon, ok := domain.ParseAddon(addonName)
	if !ok {
		return failed("Invalid addon: %s. Valid options: %s", addonName, addonNames())
	}

	c, ok := a.store.RemoveAddon(ctx, customerID, addon)
	if !ok {
		return failed("Failed to remove %s", addonName)
	}
	return MutationResult{
		Success:           true,
		Message:           fmt.Sprintf("Successfully removed %s from customer %s", addonName, c.CustomerID),
		NewMonthlyCharges: c.MonthlyCharges,
		Customer:          summarize(c),
	}
}

// UpdateCustomerSettings changes one of the plan settings.
func (a *AccountActions) UpdateCustomerSettings(ctx context.Context, customerID, setting, value string) MutationResult {
	current, ok := a.store.GetByCustomerID(customerID)
	if !ok {
		return failed("Customer with ID %s not found", customerID)
	}

	var patch domain.CustomerPatch
	switch setting {
	case "InternetService":
		if value != domain.InternetDSL && value != domain.InternetFiber {
			return failed("Invalid value for InternetService: %s. Must be 'DSL' or 'Fiber optic'", value)
		}
		patch.InternetService = &value
	case "PaperlessBilling", "Partner":
		if value != domain.Yes && value != domain.No {
			return failed("Invalid value for %s: %s. Must be 'Yes' or 'No'", setting, value)
		}
		if setting == "Partner" {
			patch.Partner = &value
		} else {
			patch.PaperlessBilling = &value
		}
	default:
		return failed("Invalid setting: %s. Valid options: %s", setting, strings.Join(validSettings, ", "))
	}

	c, err := a.store.UpdateCustomer(ctx, current.ID, patch)
	if err != nil {
		a.logger.Warn("settings update failed", zap.String("customer_id", customerID), zap.Error(err))
		return failed("Failed to update %s for customer %s", setting, customerID)
	}
	return MutationResult{
		Success:           true,
		Message:           fmt.Sprintf("Successfully updated %s to '%s' for customer %s", setting, value, c.CustomerID),
		NewMonthlyCharges: c.MonthlyCharges,
		Customer:          summarize(c),
	}
}

// CalculateServiceCost previews adding or removing a service without
// changing the account.
func (a *AccountActions) CalculateServiceCost(_ context.Context, customerID, serviceName, action string) MutationResult {
	c, ok := a.store.GetByCustomerID(customerID)
	if !ok {
		return failed("Customer with ID %s not found", customerID)
	}
	addon, ok := domain.ParseAddon(serviceName)
	if !ok {
		return failed("Invalid addon: %s. Valid options: %s", serviceName, addonNames())
	}

	value := domain.Yes
	verb := "Adding"
	switch action {
	case "add", "":
	case "remove":
		value = domain.No
		verb = "Removing"
	default:
		return failed("Invalid action: %s. Must be 'add' or 'remove'", action)
	}

	preview := pricing.DiffOnToggle(*c, addon, value)
	return MutationResult{
		Success: true,
		Message: fmt.Sprintf("%s %s changes the monthly bill by $%.2f (%.2f%%): $%.2f -> $%.2f",
			verb, pricing.Label(addon), preview.Difference, preview.PercentageChange, preview.OldTotal, preview.NewTotal),
		Customer: summarize(c),
		Preview:  &preview,
	}
}

func addonNames() string {
	names := make([]string, len(domain.AddonServices))
	for i, a := range domain.AddonServices {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}
