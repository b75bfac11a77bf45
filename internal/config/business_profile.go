package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// BusinessProfile is the supplier side of every invoice the service issues.
type BusinessProfile struct {
	Business BusinessDetails `toml:"business"`
	Invoice  InvoiceDefaults `toml:"invoice"`
}

// BusinessDetails identifies the registered business
type BusinessDetails struct {
	Name    string `toml:"name"`
	Address string `toml:"address"`
	State   string `toml:"state"`
	GSTIN   string `toml:"gstin"`
	Email   string `toml:"email"`
	Phone   string `toml:"phone"`
}

// InvoiceDefaults apply when a request leaves the field empty
type InvoiceDefaults struct {
	Currency        string `toml:"currency"`
	NumberLocale    string `toml:"number_locale"`
	PaymentTermDays int    `toml:"payment_term_days"`
	Notes           string `toml:"notes"`
}

// LoadBusinessProfile loads the profile from a TOML file
func LoadBusinessProfile(filename string) (*BusinessProfile, error) {
	profile := &BusinessProfile{}
	if _, err := toml.DecodeFile(filename, profile); err != nil {
		return nil, fmt.Errorf("failed to load business profile: %w", err)
	}
	profile.applyDefaults()
	return profile, nil
}

// ParseBusinessProfile decodes a profile from TOML text.
func ParseBusinessProfile(data string) (*BusinessProfile, error) {
	profile := &BusinessProfile{}
	if _, err := toml.Decode(data, profile); err != nil {
		return nil, fmt.Errorf("failed to parse business profile: %w", err)
	}
	profile.applyDefaults()
	return profile, nil
}

func (p *BusinessProfile) applyDefaults() {
	p.Business.State = strings.TrimSpace(p.Business.State)
	p.Business.GSTIN = strings.ToUpper(strings.TrimSpace(p.Business.GSTIN))
	if p.Invoice.Currency == "" {
		p.Invoice.Currency = "INR"
	}
	if p.Invoice.NumberLocale == "" {
		p.Invoice.NumberLocale = "en-IN"
	}
	if p.Invoice.PaymentTermDays <= 0 {
		p.Invoice.PaymentTermDays = 30
	}
}
