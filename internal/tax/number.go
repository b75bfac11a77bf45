package tax

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Number is a numeric form field as the client sent it. It keeps track of whether the
// input was usable so the boundary can decide to reject it or fall back to zero.
// The zero value is a valid 0, which is what a missing field decodes to.
type Number struct {
	Value   float64
	Invalid bool
	Raw     string
}

// Num builds a valid Number.
func Num(v float64) Number {
	return Number{Value: v, Raw: strconv.FormatFloat(v, 'f', -1, 64)}
}

// ParseNumber parses a non-negative finite number. Empty input is a valid zero.
func ParseNumber(raw string) Number {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Number{Raw: raw}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return Number{Invalid: true, Raw: raw}
	}
	return Number{Value: v, Raw: raw}
}

// Coerce returns the value, or 0 when the input was invalid.
func (n Number) Coerce() float64 {
	if n.Invalid {
		return 0
	}
	return n.Value
}

// UnmarshalJSON accepts numbers, numeric strings and null.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = ParseNumber(s)
		return nil
	}
	*n = ParseNumber(string(data))
	return nil
}

// MarshalJSON writes the coerced value.
func (n Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Coerce())
}

// FieldError names an input field that could not be parsed.
type FieldError struct {
	Field string `json:"field"`
	Raw   string `json:"raw"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: invalid number %q", e.Field, e.Raw)
}

// LineItemInput is a line item as submitted by a client, before validation.
type LineItemInput struct {
	Description    string `json:"description"`
	HSNSAC         string `json:"hsnSac"`
	Quantity       Number `json:"quantity"`
	Rate           Number `json:"rate"`
	GSTRatePercent Number `json:"gstRatePercent"`
}

// Normalize converts the input to a LineItem. Unusable numbers become 0 and are
// reported as field errors, prefixed with path.
func (in LineItemInput) Normalize(path string) (LineItem, []FieldError) {
	var errs []FieldError
	check := func(field string, n Number) float64 {
		if n.Invalid {
			errs = append(errs, FieldError{Field: path + "." + field, Raw: n.Raw})
		}
		return n.Coerce()
	}

	item := LineItem{
		Description:    strings.TrimSpace(in.Description),
		HSNSAC:         strings.TrimSpace(in.HSNSAC),
		Quantity:       check("quantity", in.Quantity),
		Rate:           check("rate", in.Rate),
		GSTRatePercent: check("gstRatePercent", in.GSTRatePercent),
	}
	if item.GSTRatePercent > 100 {
		errs = append(errs, FieldError{Field: path + ".gstRatePercent", Raw: in.GSTRatePercent.Raw})
		item.GSTRatePercent = 0
	}
	return item, errs
}

// NormalizeItems normalizes a whole item list.
func NormalizeItems(inputs []LineItemInput) ([]LineItem, []FieldError) {
	items := make([]LineItem, 0, len(inputs))
	var errs []FieldError
	for i, in := range inputs {
		item, itemErrs := in.Normalize(fmt.Sprintf("items[%d]", i))
		items = append(items, item)
		errs = append(errs, itemErrs...)
	}
	return items, errs
}
