package orders

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Metadata keys carried on the hosted payment session.
const (
	MetaCustomerName    = "customer_name"
	MetaShippingAddress = "shipping_address"
	MetaItems           = "items"
	MetaProductID       = "product_id"
)

var (
	// ErrMissingItems: neither items nor product_id present.
	ErrMissingItems = errors.New("missing items or product_id in metadata")
	// ErrEmptyItems: items decoded to an empty list.
	ErrEmptyItems = errors.New("empty items array")
	// ErrMalformedItems: items present but not a valid list of line items.
	ErrMalformedItems = errors.New("invalid items format in metadata")
)

// ItemSource is either LegacySingleItem or ItemList.
type ItemSource interface {
	Items() []LineItem
	isItemSource()
}

// LegacySingleItem is the old single-product format: one unit of ProductID.
type LegacySingleItem struct{ ProductID string }

func (l LegacySingleItem) Items() []LineItem {
	return []LineItem{{ProductID: l.ProductID, Quantity: 1}}
}

func (LegacySingleItem) isItemSource() {}

type ItemList []LineItem

func (l ItemList) Items() []LineItem { return l }

func (ItemList) isItemSource() {}

// Intent is the order intent carried from checkout to payment confirmation.
type Intent struct {
	CustomerName    string
	ShippingAddress ShippingAddress
	Source          ItemSource
}

// Encode renders the intent as session metadata.
func (in Intent) Encode() (map[string]string, error) {
	addr, err := json.Marshal(in.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("encode shipping address: %w", err)
	}
	md := map[string]string{
		MetaCustomerName:    in.CustomerName,
		MetaShippingAddress: string(addr),
	}
	switch src := in.Source.(type) {
	case LegacySingleItem:
		md[MetaProductID] = src.ProductID
	case ItemList:
		b, err := json.Marshal([]LineItem(src))
		if err != nil {
			return nil, fmt.Errorf("encode items: %w", err)
		}
		md[MetaItems] = string(b)
	default:
		return nil, fmt.Errorf("unknown item source %T", in.Source)
	}
	return md, nil
}

// DecodeItems resolves the line items of a session. The items key wins over the
// legacy product_id key.
func DecodeItems(md map[string]string) (ItemSource, error) {
	if raw := strings.TrimSpace(md[MetaItems]); raw != "" {
		var list []LineItem
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedItems, err)
		}
		if len(list) == 0 {
			return nil, ErrEmptyItems
		}
		for i, it := range list {
			if strings.TrimSpace(it.ProductID) == "" {
				return nil, fmt.Errorf("%w: item %d has no product_id", ErrMalformedItems, i)
			}
			if it.Quantity <= 0 {
				return nil, fmt.Errorf("%w: item %d has quantity %d", ErrMalformedItems, i, it.Quantity)
			}
		}
		return ItemList(list), nil
	}
	if pid := strings.TrimSpace(md[MetaProductID]); pid != "" {
		return LegacySingleItem{ProductID: pid}, nil
	}
	return nil, ErrMissingItems
}

// DecodeShippingAddress parses the serialized address. Anything that is not a
// JSON object degrades to {"address": raw}; the bool reports that fallback.
func DecodeShippingAddress(raw string) (ShippingAddress, bool) {
	if strings.TrimSpace(raw) == "" {
		return ShippingAddress{}, false
	}
	var addr ShippingAddress
	if IsJSONObject([]byte(raw)) {
		if err := json.Unmarshal([]byte(raw), &addr); err == nil {
			return addr, false
		}
	}
	return ShippingAddress{"address": raw}, true
}

// IsJSONObject reports whether b holds a JSON object (not an array, string or null).
func IsJSONObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{' && json.Valid(b)
}
