package segment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/tidemark/recordhub-backend/internal/domain"
)

// The compiler translates an ordered rule set into a squirrel predicate over
// the target population table. Field keys resolve in three steps:
//
//  1. entity-specific alias map: a core column, or a field on a one-hop
//     related entity ("company" on a contact is the related account's name);
//  2. a field definition of the target type, read from the attrs bag;
//  3. otherwise the rule is skipped (lenient degrade, reported to the caller
//     and logged as a warning at the call sites).
//
// With zero surviving rules the predicate is nil: no constraint, matching
// the whole tenant-scoped population.

// aliasTarget is one resolved alias: either a typed core column or a column
// on a one-hop related entity reached through a relationship attribute.
type aliasTarget struct {
	column string

	relAttr   string
	relTable  string
	relColumn string
}

func (a aliasTarget) isRelated() bool { return a.relAttr != "" }

// populationTables maps segment target types to their backing tables.
var populationTables = map[domain.EntityType]string{
	domain.EntityTypeContact: "contacts",
	domain.EntityTypeLead:    "leads",
}

// aliasMaps resolve friendly rule field keys per target entity.
var aliasMaps = map[domain.EntityType]map[string]aliasTarget{
	domain.EntityTypeContact: {
		"firstName": {column: "first_name"},
		"lastName":  {column: "last_name"},
		"email":     {column: "email"},
		"phone":     {column: "phone"},
		"company":   {relAttr: "account", relTable: "accounts", relColumn: "name"},
	},
	domain.EntityTypeLead: {
		"firstName": {column: "first_name"},
		"lastName":  {column: "last_name"},
		"email":     {column: "email"},
		"source":    {column: "source"},
		"status":    {column: "status"},
		"company":   {relAttr: "account", relTable: "accounts", relColumn: "name"},
	},
}

var (
	attrKeyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	numericGuard   = `^-?[0-9]+(\.[0-9]+)?$`
	dateGuard      = `^[0-9]{4}-[0-9]{2}-[0-9]{2}`
)

// compileRules builds the predicate for a rule set. It returns the compiled
// predicate (nil when no rule survived), and the rules that were skipped
// because their field key or operator could not be resolved.
func compileRules(target domain.EntityType, fields []domain.FieldDefinition, rules []domain.SegmentRule, logic domain.RuleLogic) (sq.Sqlizer, []domain.SegmentRule, error) {
	table, ok := populationTables[target]
	if !ok {
		return nil, nil, fmt.Errorf("entity type %s is not a segment population: %w", target, domain.ErrValidation)
	}

	fieldKeys := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		fieldKeys[f.Key] = struct{}{}
	}

	var (
		conds   []sq.Sqlizer
		skipped []domain.SegmentRule
	)

	for _, rule := range rules {
		cond, ok := compileRule(table, target, fieldKeys, rule)
		if !ok {
			skipped = append(skipped, rule)
			continue
		}
		conds = append(conds, cond)
	}

	if len(conds) == 0 {
		return nil, skipped, nil
	}

	if logic == domain.RuleLogicOr {
		return sq.Or(conds), skipped, nil
	}
	return sq.And(conds), skipped, nil
}

func compileRule(table string, target domain.EntityType, fieldKeys map[string]struct{}, rule domain.SegmentRule) (sq.Sqlizer, bool) {
	if !rule.Operator.IsValid() {
		return nil, false
	}

	if alias, ok := aliasMaps[target][rule.FieldKey]; ok {
		if alias.isRelated() {
			return compileRelated(table, alias, rule)
		}
		return operatorCond(table+"."+alias.column, rule.Operator, rule.Value)
	}

	if _, ok := fieldKeys[rule.FieldKey]; ok && attrKeyPattern.MatchString(rule.FieldKey) {
		expr := fmt.Sprintf("%s.attrs->>'%s'", table, rule.FieldKey)
		return operatorCond(expr, rule.Operator, rule.Value)
	}

	return nil, false
}

// compileRelated emits an EXISTS subquery applying the operator to a column
// of the record referenced by the population row's relationship attribute.
func compileRelated(table string, alias aliasTarget, rule domain.SegmentRule) (sq.Sqlizer, bool) {
	inner, ok := operatorCond("r."+alias.relColumn, rule.Operator, rule.Value)
	if !ok {
		return nil, false
	}

	innerSQL, innerArgs, err := inner.ToSql()
	if err != nil {
		return nil, false
	}

	return sq.Expr(fmt.Sprintf(
		"EXISTS (SELECT 1 FROM %s r WHERE r.tenant_id = %s.tenant_id AND r.id::text = %s.attrs->>'%s' AND %s)",
		alias.relTable, table, table, alias.relAttr, innerSQL,
	), innerArgs...), true
}

// operatorCond applies a rule operator to a SQL expression yielding text.
// JSON null attributes surface as SQL NULL through ->>, so NULL handling
// below covers both absent and explicit-null values.
func operatorCond(expr string, op domain.RuleOperator, value string) (sq.Sqlizer, bool) {
	switch op {
	case domain.OperatorEquals:
		if value == "" {
			return sq.Expr(fmt.Sprintf("(%s IS NULL OR %s = '')", expr, expr)), true
		}
		return sq.Expr(expr+" = ?", value), true

	case domain.OperatorNotEquals:
		return sq.Expr(expr+" IS DISTINCT FROM ?", value), true

	case domain.OperatorContains:
		return sq.Expr(expr+" ILIKE ?", "%"+escapeLike(value)+"%"), true

	case domain.OperatorNotContains:
		return sq.Expr(fmt.Sprintf("(%s IS NULL OR %s NOT ILIKE ?)", expr, expr), "%"+escapeLike(value)+"%"), true

	case domain.OperatorStartsWith:
		return sq.Expr(expr+" ILIKE ?", escapeLike(value)+"%"), true

	case domain.OperatorEndsWith:
		return sq.Expr(expr+" ILIKE ?", "%"+escapeLike(value)), true

	case domain.OperatorGreaterThan:
		return orderingCond(expr, ">", value)

	case domain.OperatorLessThan:
		return orderingCond(expr, "<", value)

	case domain.OperatorIsEmpty:
		return sq.Expr(fmt.Sprintf("(%s IS NULL OR %s = '')", expr, expr)), true

	case domain.OperatorIsNotEmpty:
		return sq.Expr(fmt.Sprintf("(%s IS NOT NULL AND %s <> '')", expr, expr)), true
	}
	return nil, false
}

// orderingCond compares numerically when the rule value is a number, as a
// timestamp when it is a date, and lexicographically otherwise. Stored
// values that do not pass the type guard compare as NULL, i.e. never match.
func orderingCond(expr, cmp, value string) (sq.Sqlizer, bool) {
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return sq.Expr(fmt.Sprintf(
			"(CASE WHEN %s ~ '%s' THEN (%s)::numeric END) %s ?",
			expr, numericGuard, expr, cmp,
		), f), true
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if _, err := time.Parse(layout, value); err == nil {
			return sq.Expr(fmt.Sprintf(
				"(CASE WHEN %s ~ '%s' THEN (%s)::timestamptz END) %s ?::timestamptz",
				expr, dateGuard, expr, cmp,
			), value), true
		}
	}

	return sq.Expr(fmt.Sprintf("%s %s ?", expr, cmp), value), true
}

// escapeLike escapes LIKE metacharacters so rule values match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
