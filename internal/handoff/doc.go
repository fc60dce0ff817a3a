// Package handoff provides a zero-capacity rendezvous queue between
// producers running on transport goroutines and a single consumer loop.
package handoff
