// Package wyrmtest provides test helpers for exercising
// send streams against stubbed or fully wired connections.
package wyrmtest
