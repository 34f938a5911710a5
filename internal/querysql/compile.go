package querysql

import (
	"fmt"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/restsql/internal/ir"
	"github.com/roach88/restsql/internal/queryir"
	"github.com/roach88/restsql/internal/registry"
)

// Source is one subquery taking part in a select. The first source passed
// to Compile is the primary; the rest are folded joins.
type Source struct {
	Subquery queryir.Subquery
	Table    string           // physical table, namespace already applied
	JoinType queryir.JoinType // JoinMain for the primary
	On       []queryir.OnPair // folded sources only
	Aliases  queryir.Aliases
}

// Plan is a rendered, parameterized SELECT.
type Plan struct {
	Kind      registry.Kind
	Statement string
	Args      []any
	// Columns are the output names in projection order. Empty means the
	// statement selects "*" and the driver's column names are used.
	Columns []string
	// Aliases rename primary columns after execution. Folded sources are
	// renamed inside the statement.
	Aliases queryir.Aliases
	Folded  int
}

// PlanKind returns the backend kind the plan was built for.
func (p *Plan) PlanKind() registry.Kind { return p.Kind }

// Explain renders the plan for display.
func (p *Plan) Explain() map[string]any {
	args := p.Args
	if args == nil {
		args = []any{}
	}
	out := map[string]any{
		"kind":      string(p.Kind),
		"statement": p.Statement,
		"args":      args,
		"columns":   p.Columns,
	}
	if p.Folded > 0 {
		out["folded_joins"] = p.Folded
	}
	if len(p.Aliases) > 0 {
		out["aliases"] = map[string]string(p.Aliases)
	}
	return out
}

// Compiler builds SELECT statements for one relational backend.
//
// CRITICAL: values are never interpolated; every operand is a bind
// parameter. Identifiers are interpolated, so Compile rejects any table,
// column, alias or join key that is not a plain identifier, with or
// without a declared schema.
type Compiler struct {
	kind registry.Kind
	sb   sq.StatementBuilderType
}

// NewCompiler creates a compiler for the given kind and placeholder style.
func NewCompiler(kind registry.Kind, placeholder registry.Placeholder) *Compiler {
	var format sq.PlaceholderFormat = sq.Question
	if placeholder == registry.PlaceholderDollar {
		format = sq.Dollar
	}
	return &Compiler{
		kind: kind,
		sb:   sq.StatementBuilder.PlaceholderFormat(format),
	}
}

// joinKeyword maps a join type to its SQL form.
var joinKeyword = map[queryir.JoinType]string{
	queryir.LeftJoin:  "LEFT OUTER JOIN",
	queryir.InnerJoin: "INNER JOIN",
	queryir.FullJoin:  "FULL OUTER JOIN",
}

// aggFunction maps aggregation suffixes to SQL aggregate templates.
var aggFunction = map[queryir.AggFunc]string{
	queryir.AggCount:         "COUNT(%s)",
	queryir.AggSum:           "SUM(%s)",
	queryir.AggAvg:           "AVG(%s)",
	queryir.AggMax:           "MAX(%s)",
	queryir.AggMin:           "MIN(%s)",
	queryir.AggCountDistinct: "COUNT(DISTINCT %s)",
}

// Compile renders the primary source plus any folded sources into one
// SELECT. Projection, WHERE, GROUP BY and ORDER BY of folded sources are
// appended to the primary's; LIMIT is the primary's.
//
// Without folds column references are bare. With folds every table gets
// an alias (t0, t1, ...) and every column is qualified.
func (c *Compiler) Compile(primary Source, folds ...Source) (*Plan, error) {
	sources := append([]Source{primary}, folds...)
	if err := checkSources(sources); err != nil {
		return nil, err
	}
	qualified := len(folds) > 0

	plan := &Plan{Kind: c.kind, Aliases: primary.Aliases, Folded: len(folds)}
	var (
		columns []string
		outputs = make(map[string]bool)
		where   []sq.Sqlizer
		groupBy []string
		orderBy []string
	)

	for i, src := range sources {
		tableAlias := ""
		if qualified {
			tableAlias = fmt.Sprintf("t%d", i)
		}
		ref := func(col string) string {
			if tableAlias == "" {
				return col
			}
			return tableAlias + "." + col
		}
		// folded sources carry their export renames into the statement
		outName := func(name string) string {
			if i == 0 {
				return name
			}
			return src.Aliases.Apply(name)
		}
		addColumn := func(expr, name string) error {
			if outputs[name] {
				if i > 0 && isSharedKey(src.On, name) {
					return nil
				}
				return ir.Errorf(ir.ErrCodeAmbiguousColumn, name, "column %q is produced by more than one joined subquery", name)
			}
			outputs[name] = true
			plan.Columns = append(plan.Columns, name)
			if expr == name {
				columns = append(columns, expr)
			} else {
				columns = append(columns, expr+" AS "+name)
			}
			return nil
		}

		for _, f := range src.Subquery.Fields {
			if err := addColumn(ref(f.Column), outName(f.Alias)); err != nil {
				return nil, err
			}
		}
		for _, a := range src.Subquery.Aggregation {
			expr := fmt.Sprintf(aggFunction[a.Func], ref(a.Column))
			if err := addColumn(expr, outName(a.Name())); err != nil {
				return nil, err
			}
		}

		for _, f := range src.Subquery.Filter {
			cond, err := c.filterSQL(ref(f.Column), f)
			if err != nil {
				return nil, err
			}
			where = append(where, cond)
		}
		for _, g := range src.Subquery.GroupBy {
			groupBy = append(groupBy, ref(g))
		}
		for _, k := range src.Subquery.Sort {
			col := k.Column
			if src.Subquery.HasAggregate(col) {
				col = outName(col)
			} else {
				col = ref(col)
			}
			if k.Desc {
				col += " DESC"
			}
			orderBy = append(orderBy, col)
		}
	}

	if len(columns) == 0 {
		columns = []string{"*"}
	}

	from := primary.Table
	if qualified {
		from += " t0"
	}
	query := c.sb.Select(columns...).From(from)
	for i, fold := range folds {
		clause, err := joinClause(fold, i+1)
		if err != nil {
			return nil, err
		}
		query = query.JoinClause(clause)
	}
	for _, cond := range where {
		query = query.Where(cond)
	}
	if len(groupBy) > 0 {
		query = query.GroupBy(groupBy...)
	}
	if len(orderBy) > 0 {
		query = query.OrderBy(orderBy...)
	}
	query = query.Limit(uint64(primary.Subquery.Limit))

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("render select: %w", err)
	}
	plan.Statement = stmt
	plan.Args = args
	return plan, nil
}

// checkSources rejects names that would reach the statement unquoted.
// Tables may carry a namespace prefix; every other name is a bare
// identifier.
func checkSources(sources []Source) error {
	for i, src := range sources {
		if err := queryir.CheckIdentifier(src.Table, "table", queryir.IsFieldPath); err != nil {
			return err
		}
		if err := src.Subquery.CheckIdentifiers(queryir.IsIdentifier); err != nil {
			return err
		}
		if i == 0 {
			continue
		}
		for _, p := range src.On {
			if err := queryir.CheckIdentifier(p.Left, "join key", queryir.IsIdentifier); err != nil {
				return err
			}
			if err := queryir.CheckIdentifier(p.Right, "join key", queryir.IsIdentifier); err != nil {
				return err
			}
		}
		aliases := make([]string, 0, len(src.Aliases))
		for _, alias := range src.Aliases {
			aliases = append(aliases, alias)
		}
		slices.Sort(aliases)
		for _, alias := range aliases {
			if err := queryir.CheckIdentifier(alias, "export alias", queryir.IsIdentifier); err != nil {
				return err
			}
		}
	}
	return nil
}

// isSharedKey reports whether name is a join key with the same name on
// both sides; its folded copy is redundant.
func isSharedKey(on []queryir.OnPair, name string) bool {
	for _, p := range on {
		if p.Left == name && p.Right == name {
			return true
		}
	}
	return false
}

func joinClause(fold Source, idx int) (string, error) {
	keyword, ok := joinKeyword[fold.JoinType]
	if !ok {
		return "", ir.Errorf(ir.ErrCodeInvalidQuery, string(fold.JoinType), "cannot fold join type %q", fold.JoinType)
	}
	if len(fold.On) == 0 {
		return "", ir.Errorf(ir.ErrCodeInvalidQuery, fold.Table, "folded join has no key pairs")
	}
	conds := make([]string, len(fold.On))
	for i, p := range fold.On {
		conds[i] = fmt.Sprintf("t0.%s = t%d.%s", p.Left, idx, p.Right)
	}
	return fmt.Sprintf("%s %s t%d ON %s", keyword, fold.Table, idx, strings.Join(conds, " AND ")), nil
}

// filterSQL translates one filter into a squirrel condition.
func (c *Compiler) filterSQL(col string, f queryir.Filter) (sq.Sqlizer, error) {
	if _, isList := f.Value.(ir.List); isList && f.Op != queryir.OpIn && f.Op != queryir.OpRange {
		return nil, ir.Errorf(ir.ErrCodeBadFilter, f.Key, "operator %q does not take a list", opName(f.Op))
	}

	switch f.Op {
	case queryir.OpEq:
		return sq.Eq{col: ir.ToAny(f.Value)}, nil
	case queryir.OpGt:
		return sq.Gt{col: ir.ToAny(f.Value)}, nil
	case queryir.OpLt:
		return sq.Lt{col: ir.ToAny(f.Value)}, nil
	case queryir.OpGte:
		return sq.GtOrEq{col: ir.ToAny(f.Value)}, nil
	case queryir.OpLte:
		return sq.LtOrEq{col: ir.ToAny(f.Value)}, nil
	case queryir.OpContains, queryir.OpStartsWith, queryir.OpEndsWith:
		if ir.IsNull(f.Value) {
			return nil, ir.Errorf(ir.ErrCodeBadFilter, f.Key, "pattern operand must not be null")
		}
		// Impala's LIKE escapes with backslash and has no ESCAPE clause
		if c.kind == registry.KindImpala {
			return sq.Like{col: likePattern(f.Op, escapeLike(ir.Format(f.Value), '\\'))}, nil
		}
		return sq.Expr(col+" LIKE ? ESCAPE '!'", likePattern(f.Op, escapeLike(ir.Format(f.Value), likeEscape))), nil
	case queryir.OpRange:
		bounds, ok := f.Value.(ir.List)
		if !ok || len(bounds) != 2 {
			return nil, ir.Errorf(ir.ErrCodeBadFilter, f.Key, "range needs a list of exactly 2 values")
		}
		return sq.Expr(col+" BETWEEN ? AND ?", ir.ToAny(bounds[0]), ir.ToAny(bounds[1])), nil
	case queryir.OpIn:
		items, ok := f.Value.(ir.List)
		if !ok {
			return nil, ir.Errorf(ir.ErrCodeBadFilter, f.Key, "in needs a list of values")
		}
		args := make([]any, len(items))
		for i, item := range items {
			args[i] = ir.ToAny(item)
		}
		return sq.Eq{col: args}, nil
	default:
		return nil, ir.Errorf(ir.ErrCodeBadFilter, f.Key, "unrecognized filter operator %q", string(f.Op))
	}
}

// likeEscape is the ESCAPE character of generated LIKE clauses. Unlike
// backslash it is not a string-literal escape in any dialect.
const likeEscape = '!'

// escapeLike makes the LIKE wildcards % and _ and the escape character
// itself match literally.
func escapeLike(v string, esc rune) string {
	var b strings.Builder
	for _, r := range v {
		if r == '%' || r == '_' || r == esc {
			b.WriteRune(esc)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func likePattern(op queryir.Op, v string) string {
	switch op {
	case queryir.OpStartsWith:
		return v + "%"
	case queryir.OpEndsWith:
		return "%" + v
	default:
		return "%" + v + "%"
	}
}

func opName(op queryir.Op) string {
	if op == queryir.OpEq {
		return "eq"
	}
	return string(op)
}
