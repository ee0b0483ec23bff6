package repo

import (
	"fmt"
	"strings"

	"github.com/LeventeLantos/listsync/internal/filter"
)

const contactColumns = `c.id, c.tenant_id, COALESCE(c.name, ''), c.number, COALESCE(c.email, ''),
		COALESCE(c.channel, ''), COALESCE(c.representative_code, ''), COALESCE(c.city, ''),
		COALESCE(c.situation, ''), c.foundation_date, COALESCE(c.credit_limit, '')`

// Mirrors filter.NormalizeMoney. Values that do not come out as a plain
// decimal yield NULL and so never satisfy a bound.
const (
	normalizedCreditLimit = `REPLACE(REPLACE(REGEXP_REPLACE(REGEXP_REPLACE(COALESCE(c.credit_limit, ''), '\s+', '', 'g'), '^R\$?', '', 'i'), '.', ''), ',', '.')`
	numericCreditLimit    = `(CASE WHEN ` + normalizedCreditLimit + ` ~ '^-?[0-9]+(\.[0-9]+)?$' THEN CAST(` + normalizedCreditLimit + ` AS NUMERIC) END)`
)

var setColumns = map[filter.Field]string{
	filter.FieldChannel:            "c.channel",
	filter.FieldRepresentativeCode: "c.representative_code",
	filter.FieldCity:               "c.city",
	filter.FieldSituation:          "c.situation::text",
}

// compileContactQuery renders q as one parameterized SELECT. Only fixed
// fragments reach the SQL text; every filter value is bound.
func compileContactQuery(tenantID int64, q filter.Query) (string, []any, error) {
	args := []any{tenantID}
	where := []string{"c.tenant_id = $1"}

	bind := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, p := range q.Predicates {
		switch p := p.(type) {
		case filter.InSet:
			col, ok := setColumns[p.Field]
			if !ok {
				return "", nil, fmt.Errorf("unsupported filter field %q", p.Field)
			}
			where = append(where, fmt.Sprintf("%s = ANY(%s)", col, bind(p.Values)))
		case filter.FoundedBetween:
			where = append(where, fmt.Sprintf("c.foundation_date BETWEEN %s AND %s", bind(p.From), bind(p.To)))
		case filter.FoundedInMonths:
			where = append(where, fmt.Sprintf("CAST(EXTRACT(MONTH FROM c.foundation_date) AS INTEGER) = ANY(%s::int[])", bind(p.Months)))
		case filter.CreditLimitRange:
			if p.Min != nil {
				where = append(where, fmt.Sprintf("%s >= CAST(%s AS NUMERIC)", numericCreditLimit, bind(*p.Min)))
			}
			if p.Max != nil {
				where = append(where, fmt.Sprintf("%s <= CAST(%s AS NUMERIC)", numericCreditLimit, bind(*p.Max)))
			}
			if p.Min == nil && p.Max == nil {
				where = append(where, numericCreditLimit+" IS NOT NULL")
			}
		case filter.IDIn:
			where = append(where, fmt.Sprintf("c.id = ANY(%s)", bind(p.IDs)))
		case filter.HasAllTags:
			return "", nil, fmt.Errorf("tag predicate must be resolved to contact ids before querying")
		default:
			return "", nil, fmt.Errorf("unsupported predicate %T", p)
		}
	}

	query := "SELECT " + contactColumns + "\n\t\tFROM contacts c\n\t\tWHERE " +
		strings.Join(where, "\n\t\t  AND ") +
		"\n\t\tORDER BY c.id ASC"
	return query, args, nil
}
