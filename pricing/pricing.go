// Package pricing computes the money side of an order: delivery distance and
// fee, VAT and the final total.
package pricing

import (
	"math"

	"food-ordering-api/money"
)

const (
	earthRadiusKm = 6371.0

	// MaxDeliveryDistanceKm is inclusive: exactly 15 km is still delivered.
	MaxDeliveryDistanceKm = 15.0

	// VATBasisPoints is the Swiss standard rate of 8.1%.
	VATBasisPoints = 810
)

// DefaultDeliveryFee applies when either side has no coordinates.
var DefaultDeliveryFee = money.Francs(5, 0)

type feeStep struct {
	upToKm float64
	fee    money.Amount
}

var feeSteps = []feeStep{
	{upToKm: 2, fee: money.Francs(3, 0)},
	{upToKm: 5, fee: money.Francs(5, 0)},
	{upToKm: 10, fee: money.Francs(7, 0)},
	{upToKm: MaxDeliveryDistanceKm, fee: money.Francs(10, 0)},
}

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lng float64
}

// DistanceKm returns the great-circle distance using the haversine formula.
func DistanceKm(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DeliveryFee maps a distance to a fee. ok is false beyond the delivery radius.
func DeliveryFee(distanceKm float64) (fee money.Amount, ok bool) {
	for _, s := range feeSteps {
		if distanceKm <= s.upToKm {
			return s.fee, true
		}
	}
	return 0, false
}

// Breakdown is the full price of an order.
type Breakdown struct {
	Subtotal    money.Amount
	DeliveryFee money.Amount
	Discount    money.Amount
	Tax         money.Amount
	Total       money.Amount
}

// Compute applies VAT to subtotal + fee - discount and derives the total.
// The discount never takes the taxable base below zero.
func Compute(subtotal, deliveryFee, discount money.Amount) Breakdown {
	base := subtotal + deliveryFee - discount
	if base < 0 {
		discount = subtotal + deliveryFee
		base = 0
	}
	tax := base.Percent(VATBasisPoints)
	return Breakdown{
		Subtotal:    subtotal,
		DeliveryFee: deliveryFee,
		Discount:    discount,
		Tax:         tax,
		Total:       base + tax,
	}
}

// LoyaltyPointsFor awards one point per whole franc spent.
func LoyaltyPointsFor(total money.Amount) int64 {
	if total <= 0 {
		return 0
	}
	return total.WholeFrancs()
}
