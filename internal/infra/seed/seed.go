// Package seed loads the initial customer collection from a YAML or JSON
// export of the churn dataset.
package seed

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/pricing"

	"gopkg.in/yaml.v3"
)

//go:embed data/customers.yaml
var defaultSeed []byte

// numeric accepts both quoted and bare numbers, as dataset exports mix
// them. Blank strings decode to 0.
type numeric float64

func (n *numeric) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" || node.Tag == "!!null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("line %d: %q is not a number", node.Line, node.Value)
	}
	*n = numeric(v)
	return nil
}

func (n *numeric) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if raw == "" || raw == "null" || strings.TrimSpace(raw) == "" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("%s is not a number", b)
	}
	*n = numeric(v)
	return nil
}

// flag accepts the SeniorCitizen column as 0/1 in either form.
type flag string

func (f *flag) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", node.Line)
	}
	*f = flag(strings.TrimSpace(node.Value))
	return nil
}

func (f *flag) UnmarshalJSON(b []byte) error {
	*f = flag(strings.Trim(strings.TrimSpace(string(b)), `"`))
	return nil
}

type record struct {
	ID               numeric `yaml:"id"`
	CustomerID       string  `yaml:"customerID"`
	Gender           string  `yaml:"gender"`
	SeniorCitizen    flag    `yaml:"SeniorCitizen"`
	Partner          string  `yaml:"Partner"`
	Dependents       string  `yaml:"Dependents"`
	Tenure           numeric `yaml:"tenure"`
	PhoneService     string  `yaml:"PhoneService"`
	MultipleLines    string  `yaml:"MultipleLines"`
	InternetService  string  `yaml:"InternetService"`
	OnlineSecurity   string  `yaml:"OnlineSecurity"`
	OnlineBackup     string  `yaml:"OnlineBackup"`
	DeviceProtection string  `yaml:"DeviceProtection"`
	TechSupport      string  `yaml:"TechSupport"`
	StreamingTV      string  `yaml:"StreamingTV"`
	StreamingMovies  string  `yaml:"StreamingMovies"`
	Contract         string  `yaml:"Contract"`
	PaperlessBilling string  `yaml:"PaperlessBilling"`
	PaymentMethod    string  `yaml:"PaymentMethod"`
	Churn            string  `yaml:"Churn"`
	Status           string  `yaml:"status"`
}

// LoadFile reads path. An empty path loads the bundled sample.
func LoadFile(path string) ([]domain.CustomerRecord, error) {
	if path == "" {
		return Parse(defaultSeed)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML or JSON array of customers. Records without an id get
// their 1-based position. Charges in the file are ignored: MonthlyCharges and
// TotalCharges are always derived from the record's plan, add-ons and tenure.
func Parse(data []byte) ([]domain.CustomerRecord, error) {
	var raw []record
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse seed: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	out := make([]domain.CustomerRecord, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, r := range raw {
		c := r.toDomain()
		if c.ID == 0 {
			c.ID = i + 1
		}
		if c.Status == "" {
			c.Status = domain.StatusActive
		}
		pricing.Recalculate(&c)
		if err := domain.Validate(c); err != nil {
			return nil, fmt.Errorf("seed record %d: %w", i, err)
		}
		if seen[c.CustomerID] {
			return nil, fmt.Errorf("seed record %d: duplicate customerID %s", i, c.CustomerID)
		}
		seen[c.CustomerID] = true
		out = append(out, c)
	}
	return out, nil
}

func (r record) toDomain() domain.CustomerRecord {
	return domain.CustomerRecord{
		ID:               int(r.ID),
		CustomerID:       r.CustomerID,
		Gender:           r.Gender,
		SeniorCitizen:    string(r.SeniorCitizen),
		Partner:          r.Partner,
		Dependents:       r.Dependents,
		Tenure:           int(r.Tenure),
		PhoneService:     r.PhoneService,
		MultipleLines:    r.MultipleLines,
		InternetService:  r.InternetService,
		OnlineSecurity:   r.OnlineSecurity,
		OnlineBackup:     r.OnlineBackup,
		DeviceProtection: r.DeviceProtection,
		TechSupport:      r.TechSupport,
		StreamingTV:      r.StreamingTV,
		StreamingMovies:  r.StreamingMovies,
		Contract:         r.Contract,
		PaperlessBilling: r.PaperlessBilling,
		PaymentMethod:    r.PaymentMethod,
		Churn:            r.Churn,
		Status:           r.Status,
	}
}
