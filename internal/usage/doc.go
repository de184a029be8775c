// Package usage tracks live review consumption per user and enforces
// optional quotas.
//
// Memory keeps totals in process. Redis keeps them in one hash per user so
// several servers can share a budget; writes go through a short fortify
// retry because usage must not be lost to a transient connection error.
package usage
