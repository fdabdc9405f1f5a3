// =============================================================================
// Ledger Reconciliation - Canonical Source Schemas
// =============================================================================
//
// A Category describes one kind of source export (vendors, customers,
// collections, ...) and how its raw columns become the canonical schema:
//
//   | Field        | Meaning                                              |
//   |--------------|------------------------------------------------------|
//   | Pattern      | file name pattern used by the table loader           |
//   | CleanName    | file name of the cleaned table                       |
//   | Mode/Columns | projection allowlist (or blocklist)                  |
//   | Renames      | source column -> canonical column                    |
//   | Keys         | join key columns to normalize (canonical names)      |
//   | RateColumns  | exchange-rate columns rendered with 4 decimals       |
//   | DateColumns  | date columns rendered as dd/mm/yyyy                  |
//
// The defaults below describe the accounting system's standard exports.
// Every field can be overridden from the YAML configuration.
//
// =============================================================================

package schema

// Category is the cleaning recipe for one source table.
type Category struct {
	Name        string            `yaml:"name"`
	Pattern     string            `yaml:"pattern"`
	CleanName   string            `yaml:"clean_name"`
	Mode        string            `yaml:"mode"`
	Columns     []string          `yaml:"columns"`
	Renames     map[string]string `yaml:"renames"`
	Keys        []KeyRule         `yaml:"keys"`
	RateColumns []string          `yaml:"rate_columns"`
	DateColumns []string          `yaml:"date_columns"`
}

// KeyRule names a join key column and the number of trailing characters
// to strip after normalization (0 for none).
type KeyRule struct {
	Column         string `yaml:"column"`
	TruncateSuffix int    `yaml:"truncate_suffix"`
}

// Category names used by the default configuration.
const (
	Proveedores = "proveedores"
	Clientes    = "clientes"
	Cobrado     = "cobrado"
	Acreditable = "acreditable"
	Bancos      = "bancos"
	Emitidos    = "emitidos"
	Recibidos   = "recibidos"
)

// Canonical column names referenced by the default layouts.
const (
	ColMergeKey     = "Merge_Key"
	ColMergeKeyAux  = "Merge_Key_Aux"
	ColMergeKeyBank = "Merge_Key_Bank"
	ColTCReporte    = "TC Reporte"
	ColFechaBanco   = "Fecha Banco"
	ColFechaEmision = "Fecha de emisión"
)

// AssignmentSuffixLength is the length of the internal reference suffix
// the accounting system appends to the assignment field.
const AssignmentSuffixLength = 7

var counterpartyColumns = []string{
	"Description Offsetting Item",
	"Assignment",
	"Document Number",
	"Document Type",
	"Tax Code",
	"Withholding Tax Amt",
	"Clearing Document",
	"Text",
}

var paymentColumns = []string{
	"Debit/Credit Ind.",
	"Offsetting Acct Type",
	"Document Number",
	"Document Type",
	"Assignment",
	"Description Offsetting Item",
	"Document Date",
	"Amount in Local Currency",
	"Amount in Doc. Curr.",
	"Document Currency",
	"Eff. Exchange Rate",
}

func counterpartyRenames(nameColumn string) map[string]string {
	return map[string]string{
		"Description Offsetting Item": nameColumn,
		"Assignment":                  "Folio Interno",
		"Document Number":             ColMergeKey,
		"Document Type":               "Tipo Documento Aux",
		"Tax Code":                    "filtro1",
		"Withholding Tax Amt":         "filtro2",
		"Clearing Document":           ColMergeKeyBank,
		"Text":                        "Observaciones",
	}
}

func paymentRenames() map[string]string {
	return map[string]string{
		"Debit/Credit Ind.":        "Filtro1",
		"Offsetting Acct Type":     "Filtro2",
		"Document Number":          "Poliza / No documento/ Compensacion/ Referencia",
		"Document Type":            "Tipo Documento",
		"Assignment":               ColMergeKeyAux,
		"Document Date":            ColFechaEmision,
		"Amount in Local Currency": "Importe MXN",
		"Amount in Doc. Curr.":     "Importe",
		"Document Currency":        "Moneda",
		"Eff. Exchange Rate":       ColTCReporte,
	}
}

func counterparty(name, pattern, nameColumn string) Category {
	return Category{
		Name:      name,
		Pattern:   pattern,
		CleanName: name,
		Mode:      "keep",
		Columns:   append([]string(nil), counterpartyColumns...),
		Renames:   counterpartyRenames(nameColumn),
		Keys: []KeyRule{
			{Column: ColMergeKey},
			{Column: ColMergeKeyBank},
		},
	}
}

func payment(name, pattern, cleanName string) Category {
	return Category{
		Name:        name,
		Pattern:     pattern,
		CleanName:   cleanName,
		Mode:        "keep",
		Columns:     append([]string(nil), paymentColumns...),
		Renames:     paymentRenames(),
		Keys:        []KeyRule{{Column: ColMergeKeyAux, TruncateSuffix: AssignmentSuffixLength}},
		RateColumns: []string{ColTCReporte},
		DateColumns: []string{ColFechaEmision},
	}
}

func invoice(name, pattern string) Category {
	return Category{
		Name:      name,
		Pattern:   pattern,
		CleanName: name,
		Mode:      "keep",
		Columns:   []string{"UUID", "Serie", "Folio"},
	}
}

// DefaultCategories returns the seven standard source categories in
// processing order.
func DefaultCategories() []Category {
	return []Category{
		counterparty(Proveedores, "PROVEEDORES", "Nombre Proveedor"),
		counterparty(Clientes, "CLIENTES", "Nombre Cliente"),
		payment(Acreditable, "ACREDITABLE", "acreditable"),
		payment(Cobrado, "COBRADO", "cobranza"),
		{
			Name:      Bancos,
			Pattern:   "BANCOS",
			CleanName: "bancos",
			Mode:      "keep",
			Columns: []string{
				"Account",
				"Document Number",
				"Document Date",
				"Amount in Doc. Curr.",
			},
			Renames: map[string]string{
				"Account":              "Banco",
				"Document Number":      ColMergeKey,
				"Document Date":        ColFechaBanco,
				"Amount in Doc. Curr.": "Importe Banco",
			},
			Keys:        []KeyRule{{Column: ColMergeKey}},
			DateColumns: []string{ColFechaBanco},
		},
		invoice(Emitidos, "EMITIDOS"),
		invoice(Recibidos, "RECIBIDOS"),
	}
}
