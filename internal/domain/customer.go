package domain

// ============================================================
// Customer accounts
// ============================================================

// Flag values used by the service columns.
const (
	Yes            = "Yes"
	No             = "No"
	NoPhoneService = "No phone service"
)

// Internet plans.
const (
	InternetDSL   = "DSL"
	InternetFiber = "Fiber optic"
	InternetNone  = "No"
)

// Account status values shown in the ticket view.
const (
	StatusNew       = "new"
	StatusActive    = "active"
	StatusResolved  = "resolved"
	StatusEscalated = "escalated"
)

// AddonService names one of the eight toggle-able services.
type AddonService string

const (
	AddonPhoneService     AddonService = "PhoneService"
	AddonMultipleLines    AddonService = "MultipleLines"
	AddonOnlineSecurity   AddonService = "OnlineSecurity"
	AddonOnlineBackup     AddonService = "OnlineBackup"
	AddonDeviceProtection AddonService = "DeviceProtection"
	AddonTechSupport      AddonService = "TechSupport"
	AddonStreamingTV      AddonService = "StreamingTV"
	AddonStreamingMovies  AddonService = "StreamingMovies"
)

// AddonServices lists every add-on in pricing order.
var AddonServices = []AddonService{
	AddonPhoneService,
	AddonMultipleLines,
	AddonOnlineSecurity,
	AddonOnlineBackup,
	AddonDeviceProtection,
	AddonTechSupport,
	AddonStreamingTV,
	AddonStreamingMovies,
}

// ParseAddon returns the add-on matching name.
func ParseAddon(name string) (AddonService, bool) {
	for _, a := range AddonServices {
		if string(a) == name {
			return a, true
		}
	}
	return "", false
}

// CustomerRecord is one telecom account. MonthlyCharges and TotalCharges are
// derived from the service flags and tenure and are never edited directly.
type CustomerRecord struct {
	ID               int     `json:"id" validate:"gte=0"`
	CustomerID       string  `json:"customerID" validate:"required,customer_id"`
	Gender           string  `json:"gender"`
	SeniorCitizen    string  `json:"SeniorCitizen" validate:"omitempty,oneof=0 1"`
	Partner          string  `json:"Partner" validate:"omitempty,oneof=Yes No"`
	Dependents       string  `json:"Dependents" validate:"omitempty,oneof=Yes No"`
	Tenure           int     `json:"tenure" validate:"gte=0"`
	PhoneService     string  `json:"PhoneService" validate:"omitempty,oneof=Yes No"`
	MultipleLines    string  `json:"MultipleLines" validate:"omitempty,oneof=Yes No 'No phone service'"`
	InternetService  string  `json:"InternetService" validate:"omitempty,oneof=DSL 'Fiber optic' No"`
	OnlineSecurity   string  `json:"OnlineSecurity"`
	OnlineBackup     string  `json:"OnlineBackup"`
	DeviceProtection string  `json:"DeviceProtection"`
	TechSupport      string  `json:"TechSupport"`
	StreamingTV      string  `json:"StreamingTV"`
	StreamingMovies  string  `json:"StreamingMovies"`
	Contract         string  `json:"Contract"`
	PaperlessBilling string  `json:"PaperlessBilling" validate:"omitempty,oneof=Yes No"`
	PaymentMethod    string  `json:"PaymentMethod"`
	MonthlyCharges   float64 `json:"MonthlyCharges"`
	TotalCharges     float64 `json:"TotalCharges"`
	Churn            string  `json:"Churn" validate:"omitempty,oneof=Yes No"`
	Status           string  `json:"status" validate:"omitempty,oneof=new active resolved escalated"`
}

// Addon returns the current value of an add-on flag.
func (c *CustomerRecord) Addon(a AddonService) string {
	switch a {
	case AddonPhoneService:
		return c.PhoneService
	case AddonMultipleLines:
		return c.MultipleLines
	case AddonOnlineSecurity:
		return c.OnlineSecurity
	case AddonOnlineBackup:
		return c.OnlineBackup
	case AddonDeviceProtection:
		return c.DeviceProtection
	case AddonTechSupport:
		return c.TechSupport
	case AddonStreamingTV:
		return c.StreamingTV
	case AddonStreamingMovies:
		return c.StreamingMovies
	}
	return ""
}

// SetAddon overwrites an add-on flag. Unknown add-ons are ignored.
func (c *CustomerRecord) SetAddon(a AddonService, value string) {
	switch a {
	case AddonPhoneService:
		c.PhoneService = value
	case AddonMultipleLines:
		c.MultipleLines = value
	case AddonOnlineSecurity:
		c.OnlineSecurity = value
	case AddonOnlineBackup:
		c.OnlineBackup = value
	case AddonDeviceProtection:
		c.DeviceProtection = value
	case AddonTechSupport:
		c.TechSupport = value
	case AddonStreamingTV:
		c.StreamingTV = value
	case AddonStreamingMovies:
		c.StreamingMovies = value
	}
}

// IsChurnRisk reports whether the account is flagged as likely to leave.
func (c *CustomerRecord) IsChurnRisk() bool { return c.Churn == Yes }

// IsSenior reports the SeniorCitizen flag.
func (c *CustomerRecord) IsSenior() bool { return c.SeniorCitizen == "1" }

// NewCustomerInput is what a caller supplies when opening an account.
// Identity, contract and charges are filled in by the account store.
type NewCustomerInput struct {
	Gender           string `json:"gender"`
	Partner          string `json:"Partner" validate:"required,oneof=Yes No"`
	Dependents       string `json:"Dependents" validate:"required,oneof=Yes No"`
	Tenure           int    `json:"tenure" validate:"gte=0"`
	PhoneService     string `json:"PhoneService" validate:"required,oneof=Yes No"`
	MultipleLines    string `json:"MultipleLines,omitempty" validate:"omitempty,oneof=Yes No 'No phone service'"`
	InternetService  string `json:"InternetService" validate:"required,oneof=DSL 'Fiber optic'"`
	OnlineSecurity   string `json:"OnlineSecurity" validate:"required,oneof=Yes No"`
	OnlineBackup     string `json:"OnlineBackup" validate:"required,oneof=Yes No"`
	DeviceProtection string `json:"DeviceProtection" validate:"required,oneof=Yes No"`
	TechSupport      string `json:"TechSupport" validate:"required,oneof=Yes No"`
	StreamingTV      string `json:"StreamingTV" validate:"required,oneof=Yes No"`
	StreamingMovies  string `json:"StreamingMovies" validate:"required,oneof=Yes No"`
	PaperlessBilling string `json:"PaperlessBilling" validate:"required,oneof=Yes No"`
	PaymentMethod    string `json:"PaymentMethod" validate:"required,oneof='Electronic check' 'Mailed check' 'Bank transfer (automatic)' 'Credit card (automatic)'"`
}

// CustomerPatch carries a partial update. Nil fields are left untouched.
type CustomerPatch struct {
	Gender           *string `json:"gender,omitempty"`
	SeniorCitizen    *string `json:"SeniorCitizen,omitempty" validate:"omitempty,oneof=0 1"`
	Partner          *string `json:"Partner,omitempty" validate:"omitempty,oneof=Yes No"`
	Dependents       *string `json:"Dependents,omitempty" validate:"omitempty,oneof=Yes No"`
	Tenure           *int    `json:"tenure,omitempty" validate:"omitempty,gte=0"`
	PhoneService     *string `json:"PhoneService,omitempty" validate:"omitempty,oneof=Yes No"`
	MultipleLines    *string `json:"MultipleLines,omitempty" validate:"omitempty,oneof=Yes No 'No phone service'"`
	InternetService  *string `json:"InternetService,omitempty" validate:"omitempty,oneof=DSL 'Fiber optic' No"`
	OnlineSecurity   *string `json:"OnlineSecurity,omitempty" validate:"omitempty,oneof=Yes No"`
	OnlineBackup     *string `json:"OnlineBackup,omitempty" validate:"omitempty,oneof=Yes No"`
	DeviceProtection *string `json:"DeviceProtection,omitempty" validate:"omitempty,oneof=Yes No"`
	TechSupport      *string `json:"TechSupport,omitempty" validate:"omitempty,oneof=Yes No"`
	StreamingTV      *string `json:"StreamingTV,omitempty" validate:"omitempty,oneof=Yes No"`
	StreamingMovies  *string `json:"StreamingMovies,omitempty" validate:"omitempty,oneof=Yes No"`
	Contract         *string `json:"Contract,omitempty"`
	PaperlessBilling *string `json:"PaperlessBilling,omitempty" validate:"omitempty,oneof=Yes No"`
	PaymentMethod    *string `json:"PaymentMethod,omitempty"`
	Churn            *string `json:"Churn,omitempty" validate:"omitempty,oneof=Yes No"`
	Status           *string `json:"status,omitempty" validate:"omitempty,oneof=new active resolved escalated"`
}

// Apply copies every non-nil field of p onto c.
func (p *CustomerPatch) Apply(c *CustomerRecord) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&c.Gender, p.Gender)
	set(&c.SeniorCitizen, p.SeniorCitizen)
	set(&c.Partner, p.Partner)
	set(&c.Dependents, p.Dependents)
	if p.Tenure != nil {
		c.Tenure = *p.Tenure
	}
	set(&c.PhoneService, p.PhoneService)
	set(&c.MultipleLines, p.MultipleLines)
	set(&c.InternetService, p.InternetService)
	set(&c.OnlineSecurity, p.OnlineSecurity)
	set(&c.OnlineBackup, p.OnlineBackup)
	set(&c.DeviceProtection, p.DeviceProtection)
	set(&c.TechSupport, p.TechSupport)
	set(&c.StreamingTV, p.StreamingTV)
	set(&c.StreamingMovies, p.StreamingMovies)
	set(&c.Contract, p.Contract)
	set(&c.PaperlessBilling, p.PaperlessBilling)
	set(&c.PaymentMethod, p.PaymentMethod)
	set(&c.Churn, p.Churn)
	set(&c.Status, p.Status)
}

// CloneCustomers returns a copy of the collection so callers can build the
// next snapshot without touching the current one.
func CloneCustomers(in []CustomerRecord) []CustomerRecord {
	if in == nil {
		return nil
	}
	out := make([]CustomerRecord, len(in))
	copy(out, in)
	return out
}
