package service

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// OrderRequest is the decoded body of an order placement call.
type OrderRequest struct {
	Email    string
	SKU      string
	Quantity int
	// Dropped counts the items after the first, which are ignored.
	Dropped int
}

// ParseOrderRequest reads {"email": ..., "items": [{"sku": ..., "quantity": ...}]}.
// Bodies that are not a JSON object are read as an empty one. Only the
// first item is used. A missing or malformed quantity becomes 1; numeric
// values, including non-positive ones, are passed through unchanged unless
// they overflow an int.
func ParseOrderRequest(body []byte) (OrderRequest, error) {
	var doc gjson.Result
	if gjson.ValidBytes(body) {
		doc = gjson.ParseBytes(body)
	}
	if !doc.IsObject() {
		return OrderRequest{}, ErrOrderFieldsRequired
	}

	email := doc.Get("email")
	items := doc.Get("items")
	if email.Type != gjson.String || strings.TrimSpace(email.Str) == "" || !items.IsArray() || len(items.Array()) == 0 {
		return OrderRequest{}, ErrOrderFieldsRequired
	}

	all := items.Array()
	first := all[0]
	quantity, err := ParseQuantity(first.Get("quantity"))
	if err != nil {
		return OrderRequest{}, err
	}
	return OrderRequest{
		Email:    email.Str,
		SKU:      first.Get("sku").String(),
		Quantity: quantity,
		Dropped:  len(all) - 1,
	}, nil
}

// ParseQuantity coerces a JSON quantity to an int, defaulting to 1 when it
// is absent or not a number. Numbers that do not fit an int are rejected
// with ErrInvalidQuantity.
func ParseQuantity(v gjson.Result) (int, error) {
	switch v.Type {
	case gjson.Number:
		n, err := strconv.Atoi(v.Raw)
		if err == nil {
			return n, nil
		}
		if errors.Is(err, strconv.ErrRange) {
			return 0, ErrInvalidQuantity
		}
		// fractions and exponents
		if v.Num >= float64(math.MaxInt) || v.Num < float64(math.MinInt) {
			return 0, ErrInvalidQuantity
		}
		return int(v.Num), nil
	case gjson.String:
		return QuantityFromString(v.Str)
	default:
		return 1, nil
	}
}

// QuantityFromString parses a form or query value, defaulting to 1 when
// the value is empty or not an integer. An integer too large for an int
// is rejected with ErrInvalidQuantity.
func QuantityFromString(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if errors.Is(err, strconv.ErrRange) {
		return 0, ErrInvalidQuantity
	}
	if err != nil {
		return 1, nil
	}
	return n, nil
}
