// Package schedule draws the randomized cadence of self-generated events
// and the payload tokens they carry. Waits follow an exponential
// distribution, so events form a Poisson process with the configured mean.
package schedule
