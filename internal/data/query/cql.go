package query

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	domainErrors "fortrandep/internal/core/errors"
)

var (
	cqlSelectRE       = regexp.MustCompile(`(?i)^\s*SELECT\s+units(?:\s+WHERE\s+(.+))?\s*$`)
	cqlAndSplitRE     = regexp.MustCompile(`(?i)\s+AND\s+`)
	cqlNumericCondRE  = regexp.MustCompile(`(?i)^\s*([a-z_]+)\s*(>=|<=|!=|=|>|<)\s*(-?[0-9]+)\s*$`)
	cqlContainsCondRE = regexp.MustCompile(`(?i)^\s*([a-z_]+)\s+CONTAINS\s+['"]([^'"]+)['"]\s*$`)
	cqlStringCondRE   = regexp.MustCompile(`(?i)^\s*([a-z_]+)\s*(=|!=)\s*['"]([^'"]+)['"]\s*$`)
)

var (
	cqlIntFields = map[string]func(UnitSummary) int{
		"uses":         func(u UnitSummary) int { return u.UseCount },
		"dependencies": func(u UnitSummary) int { return u.DependencyCount },
		"dependents":   func(u UnitSummary) int { return u.DependentCount },
	}
	cqlStrFields = map[string]func(UnitSummary) string{
		"name": func(u UnitSummary) string { return u.Name },
		"kind": func(u UnitSummary) string { return u.Kind },
		"file": func(u UnitSummary) string { return u.File },
	}
)

// CQLQuery is a parsed "SELECT units [WHERE cond AND cond ...]" query.
type CQLQuery struct {
	Target     string
	Conditions []CQLCondition
}

type CQLCondition struct {
	Field  string
	Op     string
	IntVal int
	StrVal string
	IsInt  bool
	IsStr  bool
}

func ParseCQL(raw string) (CQLQuery, error) {
	matches := cqlSelectRE.FindStringSubmatch(strings.TrimSpace(raw))
	if len(matches) == 0 {
		return CQLQuery{}, domainErrors.New(domainErrors.CodeValidationError, "invalid CQL query: expected SELECT units [WHERE ...]")
	}

	query := CQLQuery{Target: "units"}
	where := strings.TrimSpace(matches[1])
	if where == "" {
		return query, nil
	}

	parts := cqlAndSplitRE.Split(where, -1)
	query.Conditions = make([]CQLCondition, 0, len(parts))
	for _, part := range parts {
		condition, err := parseCQLCondition(part)
		if err != nil {
			return CQLQuery{}, err
		}
		query.Conditions = append(query.Conditions, condition)
	}
	return query, nil
}

func parseCQLCondition(raw string) (CQLCondition, error) {
	if match := cqlNumericCondRE.FindStringSubmatch(raw); len(match) == 4 {
		field := strings.ToLower(strings.TrimSpace(match[1]))
		if _, ok := cqlIntFields[field]; !ok {
			return CQLCondition{}, invalidCondition(raw, "unknown numeric field "+field)
		}
		value, err := strconv.Atoi(strings.TrimSpace(match[3]))
		if err != nil {
			return CQLCondition{}, invalidCondition(raw, err.Error())
		}
		return CQLCondition{
			Field:  field,
			Op:     strings.TrimSpace(match[2]),
			IntVal: value,
			IsInt:  true,
		}, nil
	}

	if match := cqlContainsCondRE.FindStringSubmatch(raw); len(match) == 3 {
		return stringCondition(raw, match[1], "contains", match[2])
	}

	if match := cqlStringCondRE.FindStringSubmatch(raw); len(match) == 4 {
		return stringCondition(raw, match[1], match[2], match[3])
	}

	return CQLCondition{}, invalidCondition(raw, "unrecognized condition")
}

func stringCondition(raw, field, op, value string) (CQLCondition, error) {
	field = strings.ToLower(strings.TrimSpace(field))
	if _, ok := cqlStrFields[field]; !ok {
		return CQLCondition{}, invalidCondition(raw, "unknown text field "+field)
	}
	return CQLCondition{
		Field:  field,
		Op:     strings.TrimSpace(op),
		StrVal: strings.TrimSpace(value),
		IsStr:  true,
	}, nil
}

func invalidCondition(raw, reason string) error {
	return domainErrors.New(domainErrors.CodeValidationError,
		fmt.Sprintf("invalid CQL condition %q: %s", strings.TrimSpace(raw), reason))
}

// Matches reports whether u satisfies every condition.
func (q CQLQuery) Matches(u UnitSummary) bool {
	for _, c := range q.Conditions {
		if !c.matches(u) {
			return false
		}
	}
	return true
}

func (c CQLCondition) matches(u UnitSummary) bool {
	if c.IsInt {
		v := cqlIntFields[c.Field](u)
		switch c.Op {
		case ">":
			return v > c.IntVal
		case ">=":
			return v >= c.IntVal
		case "<":
			return v < c.IntVal
		case "<=":
			return v <= c.IntVal
		case "!=":
			return v != c.IntVal
		default:
			return v == c.IntVal
		}
	}
	v := strings.ToLower(cqlStrFields[c.Field](u))
	want := strings.ToLower(c.StrVal)
	switch c.Op {
	case "contains":
		return strings.Contains(v, want)
	case "!=":
		return v != want
	default:
		return v == want
	}
}

// ExecuteCQL runs raw against the project's units.
func (s *Service) ExecuteCQL(ctx context.Context, raw string, limit int) ([]UnitSummary, error) {
	query, err := ParseCQL(raw)
	if err != nil {
		return nil, err
	}
	all, err := s.ListUnits(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	rows := make([]UnitSummary, 0, len(all))
	for _, u := range all {
		if query.Matches(u) {
			rows = append(rows, u)
		}
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}
