// Package abyss provides the core types and operations of the abyss shared
// resource broker: the Store (a single mutable, insertion-ordered collection of
// item records shared by every viewer), the pagination arithmetic over it, and
// the Redis-backed event stream client that lets external surfaces observe
// store mutations, notices, rendered frames and viewer commands in real time.
//
// The Store itself is strictly in-memory and single-process. Redis carries
// only the observability and command surfaces; all Redis keys and Pub/Sub
// channels are namespaced by instance name so multiple broker instances can
// safely coexist on a single Redis server.
//
// Concurrency model: every Store operation runs inside one exclusive critical
// section, so bounds-check-and-mutate is a single atomic step. Two concurrent
// Take calls on the same index yield exactly one success. Mutation listeners
// are invoked synchronously after the mutation commits, outside the lock.
package abyss
