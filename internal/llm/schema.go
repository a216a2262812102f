package llm

// Extraction is the canonical structured output of the field extractor.
// Every leaf is optional; absent and null both decode to nil.
type Extraction struct {
	VendorInfo     VendorInfo     `json:"vendor_info"`
	InvoiceDetails InvoiceDetails `json:"invoice_details"`
	Financials     Financials     `json:"financials"`
	Items          []Item         `json:"items"`
	Summary        *string        `json:"summary,omitempty"`
}

type VendorInfo struct {
	Name *string `json:"name,omitempty"`
}

type InvoiceDetails struct {
	Number *string `json:"number,omitempty"`
	Date   *string `json:"date,omitempty"` // YYYY-MM-DD
}

type Financials struct {
	TotalAmount *float64 `json:"total_amount,omitempty"`
	Subtotal    *float64 `json:"subtotal,omitempty"`
	TaxAmount   *float64 `json:"tax_amount,omitempty"`
	Currency    *string  `json:"currency,omitempty"` // ISO 4217
}

type Item struct {
	Description *string  `json:"description,omitempty"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	TotalPrice  *float64 `json:"total_price,omitempty"`
	Discount    *float64 `json:"discount,omitempty"`
}

// BuildExtractionJSONSchema returns the JSON Schema the sanitized model
// output must satisfy before it is decoded into Extraction. Unknown keys
// are tolerated; types are not.
func BuildExtractionJSONSchema() map[string]any {
	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description": nullable("string"),
			"quantity":    nullable("number"),
			"unit_price":  nullable("number"),
			"total_price": nullable("number"),
			"discount":    nullable("number"),
		},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"vendor_info": map[string]any{
				"type":       []string{"object", "null"},
				"properties": map[string]any{"name": nullable("string")},
			},
			"invoice_details": map[string]any{
				"type": []string{"object", "null"},
				"properties": map[string]any{
					"number": nullable("string"),
					"date":   nullable("string"),
				},
			},
			"financials": map[string]any{
				"type": []string{"object", "null"},
				"properties": map[string]any{
					"total_amount": nullable("number"),
					"subtotal":     nullable("number"),
					"tax_amount":   nullable("number"),
					"currency":     nullable("string"),
				},
			},
			"items":   map[string]any{"type": []string{"array", "null"}, "items": item},
			"summary": nullable("string"),
		},
	}
}

// BuildVerdictJSONSchema describes the auditor's reply.
func BuildVerdictJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"status":  map[string]any{"type": "string", "enum": []string{VerdictValid, VerdictInvalid}},
			"reasons": map[string]any{"type": []string{"array", "null"}, "items": map[string]any{"type": "string"}},
		},
		"required": []string{"status"},
	}
}

func nullable(typ string) map[string]any {
	return map[string]any{"type": []string{typ, "null"}}
}
