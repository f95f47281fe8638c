// Package policy provides document access rules for retrieval.
//
// Two definitions live here:
//   - BuildFilter turns a caller's attributes into a portable predicate tree
//     that vector indexes apply before ranking. This is the rule enforced on
//     every query.
//   - IsAuthorized is the document-level reference rule based on role
//     membership and strict department equality. It is reported alongside the
//     filter by the access-check endpoint so the two can be compared.
//
// Predicates render to an in-memory matcher, a parameterized SQL WHERE clause
// and a Chroma-style where document.
package policy
