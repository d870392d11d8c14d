package checkout

import (
	"regexp"
	"strings"
)

var (
	phonePattern   = regexp.MustCompile(`^\d{10}$`)
	pincodePattern = regexp.MustCompile(`^\d{6}$`)
)

// Address is the shipping address collected before an order is created.
// Landmark is the only optional field.
type Address struct {
	FullName string
	Phone    string
	Street   string
	City     string
	State    string
	Pincode  string
	Landmark string
}

func (a Address) Validate() error {
	required := []struct {
		field, value string
	}{
		{"fullName", a.FullName},
		{"phone", a.Phone},
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"pincode", a.Pincode},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Message: "Please fill all required fields"}
		}
	}

	if !phonePattern.MatchString(a.Phone) {
		return &ValidationError{Field: "phone", Message: "Invalid phone number"}
	}
	if !pincodePattern.MatchString(a.Pincode) {
		return &ValidationError{Field: "pincode", Message: "Invalid pincode"}
	}
	return nil
}

// ShippingAddress renders the address as the single line the backend stores:
// "name, phone, street[, landmark], city, state - pincode".
func (a Address) ShippingAddress() string {
	var b strings.Builder
	b.WriteString(a.FullName)
	b.WriteString(", ")
	b.WriteString(a.Phone)
	b.WriteString(", ")
	b.WriteString(a.Street)
	if a.Landmark != "" {
		b.WriteString(", ")
		b.WriteString(a.Landmark)
	}
	b.WriteString(", ")
	b.WriteString(a.City)
	b.WriteString(", ")
	b.WriteString(a.State)
	b.WriteString(" - ")
	b.WriteString(a.Pincode)
	return b.String()
}
