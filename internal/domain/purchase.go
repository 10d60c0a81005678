package domain

type PurchaseRequest struct {
	Products []int64 `json:"products"`
	Name     string  `json:"name"`
	Student  bool    `json:"student"`
	Coupon   string  `json:"coupon"`
}

func NewPurchaseRequest(cart Cart, name string, student bool, coupon string) PurchaseRequest {
	return PurchaseRequest{
		Products: cart.ProductIDs(),
		Name:     name,
		Student:  student,
		Coupon:   coupon,
	}
}
