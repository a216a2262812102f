package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var (
	financialNumbers = []string{"total_amount", "subtotal", "tax_amount"}
	itemNumbers      = []string{"quantity", "unit_price", "total_price", "discount"}

	// anything that is not a digit, sign or separator
	reAmountNoise = regexp.MustCompile(`[^0-9.,\-]`)

	// first fenced block anywhere in a reply, with an optional json tag
	reFencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?(.*?)```")
)

// StripCodeFences returns the body of the first fenced block in model
// output, or the output with any unpaired leading or trailing marker removed
// when there is no complete block.
func StripCodeFences(s string) string {
	if m := reFencedBlock.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// NormalizeExtractionJSON coerces what models commonly get wrong into the
// extraction shape:
//   - numeric strings such as "1,200.50" or "$500" become numbers
//   - empty or "null" strings in numeric slots are dropped
//   - a bare string vendor_info becomes {"name": ...}
//   - a numeric invoice number becomes a string
//
// It returns the rewritten document and the list of touched keys.
func NormalizeExtractionJSON(m map[string]any, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var changed []string

	if s, ok := m["vendor_info"].(string); ok {
		m["vendor_info"] = map[string]any{"name": s}
		changed = append(changed, "vendor_info")
	}

	if d, ok := m["invoice_details"].(map[string]any); ok {
		if n, ok := d["number"].(float64); ok {
			d["number"] = strconv.FormatFloat(n, 'f', -1, 64)
			changed = append(changed, "invoice_details.number")
		}
		trimString(d, "date")
	}

	if f, ok := m["financials"].(map[string]any); ok {
		for _, k := range financialNumbers {
			if coerceNumber(f, k) {
				changed = append(changed, "financials."+k)
			}
		}
		if c, ok := f["currency"].(string); ok {
			f["currency"] = strings.ToUpper(strings.TrimSpace(c))
		}
	}

	if items, ok := m["items"].([]any); ok {
		for i, it := range items {
			row, ok := it.(map[string]any)
			if !ok {
				continue
			}
			for _, k := range itemNumbers {
				if coerceNumber(row, k) {
					changed = append(changed, fmt.Sprintf("items[%d].%s", i, k))
				}
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, changed, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(changed) > 0 {
		logger.Debug("llm.extract.normalize", "changed", changed)
	}
	return out, changed, nil
}

// coerceNumber rewrites m[k] in place and reports whether it changed.
func coerceNumber(m map[string]any, k string) bool {
	v, ok := m[k]
	if !ok {
		return false
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
		delete(m, k)
		return true
	}
	num, ok := plainDecimal(reAmountNoise.ReplaceAllString(s, ""))
	if !ok {
		// leave it for schema validation to reject
		return false
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		// leave it for schema validation to reject
		return false
	}
	m[k] = f
	return true
}

// plainDecimal rewrites an amount into ParseFloat form. A comma is the
// decimal separator only when it is the last separator with exactly two
// digits after it. Any other trailing comma is ambiguous and rejected.
func plainDecimal(s string) (string, bool) {
	comma := strings.LastIndex(s, ",")
	if comma < 0 || comma < strings.LastIndex(s, ".") {
		return strings.ReplaceAll(s, ",", ""), true
	}
	frac := s[comma+1:]
	if len(frac) != 2 || strings.Trim(frac, "0123456789") != "" {
		return "", false
	}
	whole := strings.NewReplacer(".", "", ",", "").Replace(s[:comma])
	return whole + "." + frac, true
}

func trimString(m map[string]any, k string) {
	if s, ok := m[k].(string); ok {
		if t := strings.TrimSpace(s); t == "" {
			delete(m, k)
		} else {
			m[k] = t
		}
	}
}
