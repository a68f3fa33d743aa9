package core

import "encoding/json"

// FieldKind tags a FormField variant.
type FieldKind string

const (
	KindText   FieldKind = "text"
	KindSelect FieldKind = "select"
)

// FormField describes one input of the manual-entry form. The set of
// implementations is closed: TextField and SelectField.
type FormField interface {
	Kind() FieldKind
	formField()
}

// TextField is a free-text input.
type TextField struct {
	Name        Field  `json:"name"`
	Label       string `json:"label"`
	Required    bool   `json:"required"`
	Placeholder string `json:"placeholder,omitempty"`
	InputMode   string `json:"inputMode,omitempty"`
}

// SelectField offers a closed list of options.
type SelectField struct {
	Name     Field          `json:"name"`
	Label    string         `json:"label"`
	Required bool           `json:"required"`
	Default  string         `json:"default"`
	Options  []SelectOption `json:"options"`
}

// SelectOption is one choice of a SelectField.
type SelectOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func (TextField) Kind() FieldKind   { return KindText }
func (SelectField) Kind() FieldKind { return KindSelect }
func (TextField) formField()        {}
func (SelectField) formField()      {}

// MarshalJSON adds the kind tag.
func (f TextField) MarshalJSON() ([]byte, error) {
	type plain TextField
	return json.Marshal(struct {
		Kind FieldKind `json:"kind"`
		plain
	}{KindText, plain(f)})
}

// MarshalJSON adds the kind tag.
func (f SelectField) MarshalJSON() ([]byte, error) {
	type plain SelectField
	return json.Marshal(struct {
		Kind FieldKind `json:"kind"`
		plain
	}{KindSelect, plain(f)})
}

func options[T ~string](v *vocabulary[T]) []SelectOption {
	out := make([]SelectOption, len(v.values))
	for i, val := range v.values {
		out[i] = SelectOption{Value: string(val), Label: string(val)}
	}
	return out
}

// InvoiceFormFields returns the inputs of a single-invoice form in display order.
func InvoiceFormFields() []FormField {
	return []FormField{
		TextField{Name: FieldPointOfSale, Label: "Punto de venta", Required: true, InputMode: "numeric"},
		SelectField{Name: FieldIssuerType, Label: "Tipo de emisor", Default: string(issuerTypes.def), Options: options(issuerTypes)},
		SelectField{Name: FieldConcept, Label: "Concepto", Required: true, Default: string(concepts.def), Options: options(concepts)},
		SelectField{Name: FieldTaxCondition, Label: "Condicion frente al IVA", Default: string(taxConditions.def), Options: options(taxConditions)},
		SelectField{Name: FieldDocType, Label: "Tipo de documento", Default: string(docTypes.def), Options: options(docTypes)},
		TextField{Name: FieldDocNumber, Label: "Numero de documento", InputMode: "numeric"},
		SelectField{Name: FieldCountry, Label: "Pais", Default: string(countries.def), Options: options(countries)},
		TextField{Name: FieldDescription, Label: "Descripcion", Required: true},
		TextField{Name: FieldQuantity, Label: "Cantidad", Required: true, InputMode: "decimal", Placeholder: "1"},
		TextField{Name: FieldUnitPrice, Label: "Precio unitario", Required: true, InputMode: "decimal", Placeholder: "0,00"},
		SelectField{Name: FieldVAT, Label: "IVA", Default: string(vatCodes.def), Options: options(vatCodes)},
		TextField{Name: FieldIssueDate, Label: "Fecha de emision", Placeholder: "AAAA-MM-DD"},
		TextField{Name: FieldServiceFrom, Label: "Servicio desde", Placeholder: "AAAA-MM-DD"},
		TextField{Name: FieldServiceTo, Label: "Servicio hasta", Placeholder: "AAAA-MM-DD"},
		TextField{Name: FieldPaymentDue, Label: "Vencimiento de pago", Placeholder: "AAAA-MM-DD"},
	}
}
