package domain

// CartLine is one product and how many units of it are in the cart.
// It is stored flattened, the product fields next to "quantity".
type CartLine struct {
	Product
	Quantity int `json:"quantity"`
}

// Cart keeps lines in insertion order, at most one line per product id.
type Cart []CartLine

func (c Cart) IndexOf(productID int64) int {
	for i := range c {
		if c[i].ID == productID {
			return i
		}
	}
	return -1
}

func (c Cart) Units() int {
	total := 0
	for _, line := range c {
		total += line.Quantity
	}
	return total
}

// ProductIDs lists one id per unit, the shape the purchase endpoint expects.
func (c Cart) ProductIDs() []int64 {
	ids := make([]int64, 0, c.Units())
	for _, line := range c {
		for i := 0; i < line.Quantity; i++ {
			ids = append(ids, line.ID)
		}
	}
	return ids
}

func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// Normalize drops lines with a non-positive quantity and merges duplicate
// product ids into the first occurrence.
func (c Cart) Normalize() Cart {
	out := make(Cart, 0, len(c))
	for _, line := range c {
		if line.Quantity <= 0 {
			continue
		}
		if i := out.IndexOf(line.ID); i >= 0 {
			out[i].Quantity += line.Quantity
			continue
		}
		out = append(out, line)
	}
	return out
}
