// Package queryir provides the federated query document model for restsql.
//
// A query document is a JSON object with a main subquery ("select"), an
// ordered list of joined subqueries ("join"), top-level selectors
// ("fields"), global "sort" keys and a global "limit". Parse turns the
// decoded document into typed values; ValidateShape checks it against the
// embedded CUE schema first so structural mistakes are reported with
// positions before any reference is resolved.
//
// ARCHITECTURE:
//
//	[JSON document] → ValidateShape (CUE) → Parse → [Query]
//	                                                  ↓
//	                                       compiler / engine
//
// TOKENS:
//
// The document encodes intent in string tokens. This package owns their
// grammar so every other package classifies them the same way:
//
//	Token                 Where               Meaning
//	-----                 -----               -------
//	col                   subquery fields     identity projection
//	col@alias             subquery fields     projection renamed in SQL
//	col__agg              aggregation/fields  aggregate named literally col__agg
//	col[__op]             filter keys         predicate, equality when no op
//	raw@alias             export              per-subquery rename after execution
//	col / col@alias       top-level fields    keep / rename a merged column
//	col@exclude           top-level fields    readable by expressions, not output
//	expr@alias            top-level fields    arithmetic over merged columns
//	[-]col                sort                ascending, or descending with "-"
//
// Filter operators: gt, lt, gte, lte, contains, startswith, endswith, range,
// in. Aggregations: count, sum, avg, max, min, count_distinct.
//
// Parse is a pure function. It never resolves backends or columns; that is
// the job of the registry and the compiler.
package queryir
