package checkout

import (
	"encoding/json"
	"strconv"
	"strings"
)

// orderIDFields are the names the shop has used for the order reference,
// in the order they are looked up.
var orderIDFields = []string{"id", "orderId", "order_id", "reference"}

// orderID returns the first usable order reference in fields, or "".
func orderID(fields map[string]any) string {
	for _, name := range orderIDFields {
		if id := idString(fields[name]); id != "" {
			return id
		}
	}
	return ""
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	}
	return ""
}
