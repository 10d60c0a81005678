package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_DecodeUpstreamShape(t *testing.T) {
	raw := `{"id":7,"title":"T-shirt DEISI","price":"19.50","description":"cotton",
		"category":"clothes","image":"/media/produtos/tshirt.png","rating":{"rate":4.5,"count":12}}`

	var p Product
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "19.50", p.Price.String())
	assert.Equal(t, "19.5", p.Price.Decimal().String())
	assert.Equal(t, 4.5, p.Rating.Rate)
	assert.Equal(t, 12, p.Rating.Count)
}

func TestProduct_InvalidPriceRejected(t *testing.T) {
	for _, price := range []string{`"abc"`, `""`, `"-1.00"`, `true`} {
		t.Run(price, func(t *testing.T) {
			var p Product
			err := json.Unmarshal([]byte(`{"id":1,"price":`+price+`}`), &p)
			assert.ErrorIs(t, err, ErrInvalidPrice)
		})
	}
}

func TestPrice_NumericJSONAccepted(t *testing.T) {
	var p Price
	require.NoError(t, json.Unmarshal([]byte(`12.3`), &p))
	assert.Equal(t, "12.3", p.String())

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `"12.3"`, string(out))
}

func TestCartLine_FlattenedJSON(t *testing.T) {
	line := CartLine{Product: Product{ID: 3, Title: "Mug", Price: MustPrice("5.00")}, Quantity: 2}

	out, err := json.Marshal(line)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(out, &generic))
	assert.Equal(t, float64(3), generic["id"])
	assert.Equal(t, "5.00", generic["price"])
	assert.Equal(t, float64(2), generic["quantity"])
}

func TestCart_ProductIDsOnePerUnit(t *testing.T) {
	cart := Cart{
		{Product: Product{ID: 1}, Quantity: 2},
		{Product: Product{ID: 5}, Quantity: 1},
	}
	assert.Equal(t, []int64{1, 1, 5}, cart.ProductIDs())
	assert.Equal(t, 3, cart.Units())
	assert.Equal(t, 1, cart.IndexOf(5))
	assert.Equal(t, -1, cart.IndexOf(9))
}

func TestCart_Normalize(t *testing.T) {
	cart := Cart{
		{Product: Product{ID: 1}, Quantity: 1},
		{Product: Product{ID: 2}, Quantity: 0},
		{Product: Product{ID: 1}, Quantity: 2},
		{Product: Product{ID: 3}, Quantity: -4},
	}
	got := cart.Normalize()
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, 3, got[0].Quantity)
}

func TestNewPurchaseRequest(t *testing.T) {
	cart := Cart{{Product: Product{ID: 4}, Quantity: 3}}
	req := NewPurchaseRequest(cart, "Ana", true, "DEISI20")

	out, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"products":[4,4,4],"name":"Ana","student":true,"coupon":"DEISI20"}`, string(out))
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to PurchaseState
		allowed  bool
	}{
		{PurchaseIdle, PurchaseInProgress, true},
		{PurchaseIdle, PurchaseSucceeded, false},
		{PurchaseInProgress, PurchaseInProgress, false},
		{PurchaseInProgress, PurchaseSucceeded, true},
		{PurchaseInProgress, PurchaseFailed, true},
		{PurchaseInProgress, PurchaseIdle, false},
		{PurchaseSucceeded, PurchaseIdle, true},
		{PurchaseFailed, PurchaseInProgress, true},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransitionTo(tt.from, tt.to))
		})
	}
}

func TestSucceededStatus_DefaultsOrderID(t *testing.T) {
	assert.Equal(t, OrderIDNotAvailable, SucceededStatus("").OrderID)
	assert.Equal(t, "abc", SucceededStatus("abc").OrderID)
	assert.True(t, FailedStatus("x").State.IsTerminal())
	assert.False(t, InProgressStatus().State.IsTerminal())
}
