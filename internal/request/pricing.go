// AngelaMos | 2026
// pricing.go

package request

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type ServiceType string

const (
	ServiceAccompaniment      ServiceType = "accompaniment"
	ServiceArrangementNoMod   ServiceType = "arrangement_no_mod"
	ServiceArrangementWithMod ServiceType = "arrangement_with_mod"
	ServiceReview             ServiceType = "review"
)

var ErrInvalidServiceType = errors.New("invalid service type")

type catalogEntry struct {
	price decimal.Decimal
	label string
}

var catalog = map[ServiceType]catalogEntry{
	ServiceAccompaniment:      {decimal.NewFromInt(350), "Acompanhamento"},
	ServiceArrangementNoMod:   {decimal.NewFromInt(250), "Arranjos sem Modificações"},
	ServiceArrangementWithMod: {decimal.NewFromInt(370), "Arranjos com Modificações"},
	ServiceReview:             {decimal.NewFromInt(50), "Análises Musicais"},
}

// PriceFor returns the fixed price of a service in Kz.
func PriceFor(t ServiceType) (decimal.Decimal, error) {
	entry, ok := catalog[t]
	if !ok {
		return decimal.Zero, fmt.Errorf("price for %q: %w", t, ErrInvalidServiceType)
	}
	return entry.price, nil
}

func (t ServiceType) Label() string {
	if entry, ok := catalog[t]; ok {
		return entry.label
	}
	return string(t)
}

type PriceEntry struct {
	ServiceType ServiceType     `json:"service_type"`
	Label       string          `json:"label"`
	Price       decimal.Decimal `json:"price"`
}

// PriceList is the catalog in display order.
func PriceList() []PriceEntry {
	order := []ServiceType{
		ServiceAccompaniment,
		ServiceArrangementNoMod,
		ServiceArrangementWithMod,
		ServiceReview,
	}

	out := make([]PriceEntry, 0, len(order))
	for _, t := range order {
		out = append(out, PriceEntry{ServiceType: t, Label: t.Label(), Price: catalog[t].price})
	}
	return out
}
