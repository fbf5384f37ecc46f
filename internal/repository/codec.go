package repository

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	rm "rehab_monitor"
	"rehab_monitor/internal/models"
)

// encodeFields serializes a document body. Times become RFC3339 strings,
// which models.Fields decodes back transparently.
func encodeFields(f models.Fields) ([]byte, error) {
	if f == nil {
		f = models.Fields{}
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}

func decodeFields(b []byte) (models.Fields, error) {
	var f models.Fields
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if f == nil {
		f = models.Fields{}
	}
	return f, nil
}

func checkPath(p rm.DocPath) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPath, p.String())
	}
	return nil
}

// applyQuery sorts docs by q.OrderBy and applies q.Limit. Documents missing
// the order field sort last; ties keep id order.
func applyQuery(docs []Document, q Query) []Document {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Path.ID < docs[j].Path.ID
	})
	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			return lessByField(docs[i].Fields, docs[j].Fields, q.OrderBy, q.Descending)
		})
	}
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

func lessByField(a, b models.Fields, field string, desc bool) bool {
	aHas, bHas := a.Has(field), b.Has(field)
	if aHas != bHas {
		return aHas
	}
	if !aHas {
		return false
	}

	cmp := compareValues(a, b, field)
	if desc {
		return cmp > 0
	}
	return cmp < 0
}

func compareValues(a, b models.Fields, field string) int {
	if ta, ok := a.Time(field); ok {
		if tb, ok := b.Time(field); ok {
			return ta.Compare(tb)
		}
	}
	if sa, ok := a[field].(string); ok {
		if sb, ok := b[field].(string); ok {
			return strings.Compare(sa, sb)
		}
	}
	fa, fb := a.Float(field), b.Float(field)
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	default:
		return 0
	}
}
