// Package journal records clock events (packets sent, received and
// dropped) in a SQLite database for later inspection. The journal is an
// audit trail only; it is never read back to restore a clock.
package journal
