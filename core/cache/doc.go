// Package cache provides small in-process caches used to keep recently
// loaded stream states close at hand.
package cache
