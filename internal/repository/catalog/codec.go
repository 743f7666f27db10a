package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopgrep/shopgrep/internal/domain"
)

// idField is the reserved document field carrying the item identifier.
// Catalog attributes may not use this name.
const idField = "id"

// encodeItem renders an item as a flat JSON document: the id plus one
// top-level field per attribute, so FT index paths stay one level deep.
func encodeItem(item domain.Item) ([]byte, error) {
	if item.ID == "" {
		return nil, fmt.Errorf("item id is required")
	}

	doc := make(map[string]any, len(item.Attrs)+1)
	doc[idField] = item.ID
	for name, v := range item.Attrs {
		if name == idField {
			continue
		}
		switch v.Kind() {
		case domain.KindNumeric:
			doc[name] = v.Number()
		case domain.KindArrayText:
			doc[name] = v.List()
		default:
			doc[name] = v.Text()
		}
	}

	return json.Marshal(doc)
}

// decodeItem parses a flat JSON document back into an item. Unsupported
// value shapes (nested objects, nulls) are flattened to text or skipped
// so one odd attribute never fails the whole read.
func decodeItem(data []byte) (domain.Item, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Item{}, fmt.Errorf("decode item: %w", err)
	}

	id, _ := doc[idField].(string)
	if id == "" {
		return domain.Item{}, fmt.Errorf("item document has no %s field", idField)
	}
	delete(doc, idField)

	item := domain.Item{ID: id, Attrs: make(map[string]domain.Value, len(doc))}
	for name, raw := range doc {
		v, ok := decodeValue(raw)
		if !ok {
			continue
		}
		item.Attrs[name] = v
	}
	return item, nil
}

// ItemFromRaw converts a decoded JSON object into an item, using the same
// value mapping as stored documents. Callers feeding external catalog dumps
// go through this so loaded and stored items agree on attribute kinds.
func ItemFromRaw(raw map[string]any) (domain.Item, error) {
	id, _ := raw[idField].(string)
	if id == "" {
		return domain.Item{}, fmt.Errorf("item object has no %s field", idField)
	}

	item := domain.Item{ID: id, Attrs: make(map[string]domain.Value, len(raw)-1)}
	for name, r := range raw {
		if name == idField {
			continue
		}
		v, ok := decodeValue(r)
		if !ok {
			continue
		}
		item.Attrs[name] = v
	}
	return item, nil
}

func decodeValue(raw any) (domain.Value, bool) {
	switch t := raw.(type) {
	case string:
		return domain.TextValue(t), true
	case float64:
		return domain.NumericValue(t), true
	case bool:
		return domain.TextValue(strconv.FormatBool(t)), true
	case []any:
		list := make([]string, 0, len(t))
		for _, el := range t {
			if s, ok := el.(string); ok {
				list = append(list, s)
			} else {
				list = append(list, fmt.Sprint(el))
			}
		}
		return domain.ListValue(list...), true
	case map[string]any:
		// Option maps and other nested objects surface as serialized text.
		b, err := json.Marshal(t)
		if err != nil {
			return domain.Value{}, false
		}
		return domain.TextValue(string(b)), true
	default:
		return domain.Value{}, false
	}
}
