// Package harness runs end-to-end query scenarios described in YAML.
//
// Each scenario declares its backends, a query document and the expected
// outcome. SQL backends are in-memory SQLite databases seeded by the
// scenario's setup statements, so compiled SQL really executes. Search
// backends replay scripted replies per index.
//
// # Scenario Format
//
//	name: left_join_across_backends
//	description: "What this scenario validates"
//	backends:
//	  - name: db
//	    kind: sql
//	    setup: |
//	      CREATE TABLE orders (oid INTEGER, uid INTEGER);
//	      INSERT INTO orders VALUES (1, 7), (2, 8);
//	    tables:
//	      orders: {oid: int, uid: int}
//	  - name: es
//	    kind: es
//	    tables:
//	      users: {uid: int, name: string}
//	    responses:
//	      users: {hits: {hits: [{_source: {uid: 7, name: ann}}]}}
//	engine:
//	  push_down: false
//	query:
//	  select: {from: db.orders}
//	expect:
//	  columns: [oid, uid]
//	  rows: [{oid: 1, uid: 7}, {oid: 2, uid: 8}]
//	  requests: 1
//
// An expected error is given as expect.error with the error code; rows and
// columns are then not checked.
//
// # Deterministic Testing
//
// Scenarios run sequentially with a fixed query id and a step clock, and
// record into an in-memory history store. RunWithGolden snapshots the
// output rows and the backend requests as canonical JSON under
// testdata/golden.
package harness
