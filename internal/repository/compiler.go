package repository

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kgv/backend/internal/spec"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// compile turns a predicate into a squirrel expression. Field names are
// validated first; values are always bound as parameters.
func compile(p spec.Predicate) (sq.Sqlizer, error) {
	if err := spec.Validate(p); err != nil {
		return nil, err
	}
	return compileTerm(p)
}

func compileTerm(p spec.Predicate) (sq.Sqlizer, error) {
	switch t := p.(type) {
	case spec.TextContains:
		pattern := "%" + likeEscaper.Replace(strings.ToLower(t.Term)) + "%"
		or := make(sq.Or, 0, len(t.Fields))
		for _, f := range t.Fields {
			or = append(or, sq.Expr("LOWER("+f+`) LIKE ? ESCAPE '\'`, pattern))
		}
		return or, nil
	case spec.Equals:
		return sq.Eq{t.Field: t.Value}, nil
	case spec.Range:
		and := sq.And{}
		if t.Min != nil {
			and = append(and, sq.GtOrEq{t.Field: t.Min})
		}
		if t.Max != nil {
			and = append(and, sq.LtOrEq{t.Field: t.Max})
		}
		return and, nil
	case spec.In:
		return sq.Eq{t.Field: t.Values}, nil
	case spec.And:
		and := make(sq.And, 0, len(t.Terms))
		for _, term := range t.Terms {
			c, err := compileTerm(term)
			if err != nil {
				return nil, err
			}
			and = append(and, c)
		}
		return and, nil
	}
	return nil, fmt.Errorf("repository: unsupported predicate %T", p)
}

// ToSQL renders a predicate as a parameterised WHERE fragment.
func ToSQL(p spec.Predicate) (string, []any, error) {
	if p == nil {
		return "", nil, nil
	}
	c, err := compile(p)
	if err != nil {
		return "", nil, err
	}
	return c.ToSql()
}

// applyWhere adds the compiled predicate to db.
func applyWhere(db *gorm.DB, p spec.Predicate) (*gorm.DB, error) {
	sql, args, err := ToSQL(p)
	if err != nil {
		return nil, err
	}
	if sql == "" {
		return db, nil
	}
	return db.Where(sql, args...), nil
}

// applyOrder adds the sorts plus a trailing id sort for stable paging.
func applyOrder(db *gorm.DB, sorts []spec.Sort) (*gorm.DB, error) {
	hasID := false
	for _, s := range sorts {
		if !spec.ValidField(s.Field) {
			return nil, fmt.Errorf("repository: invalid sort field %q", s.Field)
		}
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: s.Field}, Desc: s.Desc})
		hasID = hasID || s.Field == "id"
	}
	if !hasID {
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
	}
	return db, nil
}
