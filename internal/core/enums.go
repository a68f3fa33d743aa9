package core

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Warnings collects row-scoped messages produced while parsing.
type Warnings []string

// Addf appends a formatted warning.
func (w *Warnings) Addf(format string, args ...any) {
	*w = append(*w, fmt.Sprintf(format, args...))
}

// IssuerType is the tax regime of the issuing party.
type IssuerType string

const (
	IssuerResponsableInscripto IssuerType = "RESPONSABLE_INSCRIPTO"
	IssuerMonotributo          IssuerType = "MONOTRIBUTO"
	IssuerExento               IssuerType = "EXENTO"
)

// Concept classifies a line as goods or services.
type Concept string

const (
	ConceptProductos Concept = "PRODUCTOS"
	ConceptServicios Concept = "SERVICIOS"
)

// TaxCondition is the VAT condition of the recipient.
type TaxCondition string

const (
	TaxConsumidorFinal      TaxCondition = "CONSUMIDOR_FINAL"
	TaxResponsableInscripto TaxCondition = "RESPONSABLE_INSCRIPTO"
	TaxMonotributo          TaxCondition = "MONOTRIBUTO"
	TaxExento               TaxCondition = "EXENTO"
	TaxNoCategorizado       TaxCondition = "NO_CATEGORIZADO"
)

// Registered reports whether the recipient holds a tax ID.
func (c TaxCondition) Registered() bool {
	return c == TaxResponsableInscripto || c == TaxMonotributo || c == TaxExento
}

// DocType identifies the kind of recipient document.
type DocType string

const (
	DocCUIT           DocType = "CUIT"
	DocCUIL           DocType = "CUIL"
	DocCDI            DocType = "CDI"
	DocDNI            DocType = "DNI"
	DocPasaporte      DocType = "PASAPORTE"
	DocSinIdentificar DocType = "SIN_IDENTIFICAR"
)

// TaxIDStyle reports whether the document is an 11-digit tax identifier.
func (d DocType) TaxIDStyle() bool {
	return d == DocCUIT || d == DocCUIL || d == DocCDI
}

// Country is an ISO 3166-1 alpha-2 code.
type Country string

// CountryArgentina is the default recipient country.
const CountryArgentina Country = "AR"

// VATCode is the closed set of VAT rates for a line item.
type VATCode string

const (
	VAT0         VATCode = "IVA_0"
	VAT2_5       VATCode = "IVA_2_5"
	VAT5         VATCode = "IVA_5"
	VAT10_5      VATCode = "IVA_10_5"
	VAT21        VATCode = "IVA_21"
	VAT27        VATCode = "IVA_27"
	VATExento    VATCode = "EXENTO"
	VATNoGravado VATCode = "NO_GRAVADO"
)

// vocabulary resolves free text against canonical values and their aliases.
type vocabulary[T ~string] struct {
	field   string
	def     T
	values  []T
	exact   map[string]T
	compact map[string]T
}

func newVocabulary[T ~string](field string, def T, aliases map[T][]string) *vocabulary[T] {
	v := &vocabulary[T]{
		field:   field,
		def:     def,
		exact:   make(map[string]T),
		compact: make(map[string]T),
	}
	for canonical, names := range aliases {
		v.values = append(v.values, canonical)
		for _, name := range append([]string{string(canonical)}, names...) {
			key := NormalizeEnum(name)
			v.exact[key] = canonical
			v.compact[strings.ReplaceAll(key, "_", "")] = canonical
		}
	}
	slices.Sort(v.values)
	return v
}

var trailingZeroFraction = regexp.MustCompile(`^(.*\d)_0+$`)

func (v *vocabulary[T]) lookup(s string) (T, bool) {
	key := NormalizeEnum(s)
	if key == "" {
		return v.def, false
	}
	if c, ok := v.exact[key]; ok {
		return c, true
	}
	if m := trailingZeroFraction.FindStringSubmatch(key); m != nil {
		if c, ok := v.exact[m[1]]; ok {
			return c, true
		}
	}
	if c, ok := v.compact[strings.ReplaceAll(key, "_", "")]; ok {
		return c, true
	}
	return v.def, false
}

// resolve never fails: a blank or unknown value yields def with a warning.
func (v *vocabulary[T]) resolve(raw any, label string, w *Warnings, def T) T {
	text, ok := AsText(raw)
	if !ok {
		w.Addf("%s: %s vacio, se usara %s.", label, v.field, def)
		return def
	}
	c, found := v.lookup(text)
	if !found {
		w.Addf("%s: %s %q no reconocido, se usara %s.", label, v.field, text, def)
		return def
	}
	return c
}

func (v *vocabulary[T]) has(s string) bool {
	_, ok := v.lookup(s)
	return ok
}

var (
	issuerTypes = newVocabulary("tipo de emisor", IssuerMonotributo, map[IssuerType][]string{
		IssuerResponsableInscripto: {"RI", "RESP_INSC", "RESP_INSCRIPTO", "INSCRIPTO", "IVA_RESPONSABLE_INSCRIPTO"},
		IssuerMonotributo:          {"MT", "MONO", "MONOTRIBUTISTA", "RESPONSABLE_MONOTRIBUTO", "RM"},
		IssuerExento:               {"EX", "IVA_EXENTO"},
	})

	concepts = newVocabulary("concepto", ConceptProductos, map[Concept][]string{
		ConceptProductos: {"PRODUCTO", "BIEN", "BIENES", "P", "1"},
		ConceptServicios: {"SERVICIO", "S", "2"},
	})

	taxConditions = newVocabulary("condicion frente al IVA", TaxConsumidorFinal, map[TaxCondition][]string{
		TaxConsumidorFinal:      {"CF", "CONS_FINAL", "FINAL", "CONSUMIDOR"},
		TaxResponsableInscripto: {"RI", "RESP_INSC", "RESP_INSCRIPTO", "INSCRIPTO", "IVA_RESPONSABLE_INSCRIPTO"},
		TaxMonotributo:          {"MT", "MONO", "MONOTRIBUTISTA", "RESPONSABLE_MONOTRIBUTO", "RM"},
		TaxExento:               {"EX", "IVA_EXENTO", "IVA_SUJETO_EXENTO", "SUJETO_EXENTO"},
		TaxNoCategorizado:       {"NC", "SUJETO_NO_CATEGORIZADO"},
	})

	docTypes = newVocabulary("tipo de documento", DocDNI, map[DocType][]string{
		DocCUIT:           {"80", "C_U_I_T"},
		DocCUIL:           {"86"},
		DocCDI:            {"87"},
		DocDNI:            {"96", "D_N_I", "DOCUMENTO"},
		DocPasaporte:      {"94", "PAS", "PASSPORT"},
		DocSinIdentificar: {"99", "SIN_ID", "NINGUNO", "OTRO"},
	})

	countries = newVocabulary("pais", CountryArgentina, map[Country][]string{
		"AR": {"ARG", "ARGENTINA", "REPUBLICA_ARGENTINA"},
		"UY": {"URY", "URUGUAY"},
		"CL": {"CHL", "CHILE"},
		"BR": {"BRA", "BRASIL", "BRAZIL"},
		"PY": {"PRY", "PARAGUAY"},
		"BO": {"BOL", "BOLIVIA"},
		"PE": {"PER", "PERU"},
		"CO": {"COL", "COLOMBIA"},
		"MX": {"MEX", "MEXICO"},
		"ES": {"ESP", "ESPANA", "SPAIN"},
		"IT": {"ITA", "ITALIA", "ITALY"},
		"DE": {"DEU", "ALEMANIA", "GERMANY"},
		"FR": {"FRA", "FRANCIA", "FRANCE"},
		"GB": {"GBR", "UK", "REINO_UNIDO", "UNITED_KINGDOM"},
		"US": {"USA", "EEUU", "EE_UU", "ESTADOS_UNIDOS", "UNITED_STATES"},
		"CN": {"CHN", "CHINA"},
	})

	vatCodes = newVocabulary("alicuota de IVA", VAT21, map[VATCode][]string{
		VAT0:         {"0", "IVA_CERO", "CERO"},
		VAT2_5:       {"2_5"},
		VAT5:         {"5"},
		VAT10_5:      {"10_5"},
		VAT21:        {"21"},
		VAT27:        {"27"},
		VATExento:    {"EX", "E", "IVA_EXENTO"},
		VATNoGravado: {"NG", "IVA_NO_GRAVADO"},
	})
)

// ResolveIssuerType maps raw to an issuer regime, defaulting to MONOTRIBUTO.
func ResolveIssuerType(raw any, label string, w *Warnings) IssuerType {
	return issuerTypes.resolve(raw, label, w, issuerTypes.def)
}

// ResolveConcept maps raw to a concept, defaulting to PRODUCTOS.
func ResolveConcept(raw any, label string, w *Warnings) Concept {
	return concepts.resolve(raw, label, w, concepts.def)
}

// ResolveTaxCondition maps raw to a recipient condition, defaulting to CONSUMIDOR_FINAL.
func ResolveTaxCondition(raw any, label string, w *Warnings) TaxCondition {
	return taxConditions.resolve(raw, label, w, taxConditions.def)
}

// ResolveDocType maps raw to a document type. The default follows the
// recipient: registered recipients get CUIT, everyone else DNI.
func ResolveDocType(raw any, label string, w *Warnings, cond TaxCondition) DocType {
	def := DocDNI
	if cond.Registered() {
		def = DocCUIT
	}
	return docTypes.resolve(raw, label, w, def)
}

// ResolveCountry maps raw to a country code, defaulting to AR.
func ResolveCountry(raw any, label string, w *Warnings) Country {
	return countries.resolve(raw, label, w, countries.def)
}

// ResolveVATCode maps raw to a VAT code, defaulting to IVA_21.
func ResolveVATCode(raw any, label string, w *Warnings) VATCode {
	return vatCodes.resolve(raw, label, w, vatCodes.def)
}

// IsVATCode reports whether s names a known VAT code or alias.
func IsVATCode(s string) bool { return vatCodes.has(s) }
