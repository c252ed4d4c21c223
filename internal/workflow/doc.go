// Package workflow holds the pure rules of the OD approval chain: the status
// state machine, submission validation and the authorization gate. Nothing in
// this package performs I/O; services load records, ask workflow whether and
// how they change, and persist the result with compare-and-set.
package workflow
