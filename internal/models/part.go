package models

import "time"

// Part is the local inventory part a bulk search runs against
type Part struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	MPN          string    `json:"mpn,omitempty"`
	Manufacturer string    `json:"manufacturer,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	// OrderDetails holds known supplier order numbers for this part
	OrderDetails []OrderDetail `json:"orderDetails,omitempty"`
}

// OrderDetail is one supplier's order number (SPN) for a local part
type OrderDetail struct {
	SupplierID  string `json:"supplierId"`
	OrderNumber string `json:"orderNumber"`
}

// SupplierOrderNumber returns the order number for the given supplier, or ""
func (p *Part) SupplierOrderNumber(supplierID string) string {
	for _, od := range p.OrderDetails {
		if od.SupplierID == supplierID {
			return od.OrderNumber
		}
	}
	return ""
}
