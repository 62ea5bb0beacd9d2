package billing

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DateLayout = "02/01/2006"
	NoPlan     = "sem plano"
)

// Vars maps placeholder names (without braces) to their values.
type Vars map[string]string

// CustomerVars builds the placeholder set for c. nome, plano and vencimento are
// always present; the rest are filled when the record has them.
func CustomerVars(c Customer) Vars {
	plan := strings.TrimSpace(c.Plan)
	if plan == "" {
		plan = NoPlan
	}
	v := Vars{
		"nome":       c.Name,
		"plano":      plan,
		"vencimento": c.Expiration.Format(DateLayout),
		"valor":      FormatBRL(c.Valor),
		"servidor":   c.Server,
		"usuario":    c.Username,
		"senha":      c.Password,
		"app":        c.App,
	}
	if c.Screens > 0 {
		v["telas"] = strconv.Itoa(c.Screens)
	}
	return v
}

// Render replaces every {name} in tpl that has an entry in vars. Unknown
// placeholders are kept as written.
func Render(tpl string, vars Vars) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, val := range vars {
		pairs = append(pairs, "{"+k+"}", val)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

// FormatBRL renders an amount as "R$ 1234,50".
func FormatBRL(v decimal.Decimal) string {
	return "R$ " + strings.Replace(v.StringFixed(2), ".", ",", 1)
}
