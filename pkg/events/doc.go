// Package events implements an in-memory pub/sub broker for cluster
// lifecycle notifications: job submitted/started/completed/failed, worker
// registered/down, node joined/left.
//
// Broker, Subscriber and the non-blocking publish/broadcast loop are
// unchanged from the teacher's events.go; only the EventType catalog is
// rebased onto this domain's lifecycle (spec.md sections 4.3-4.5) in
// place of the teacher's service/task/secret/volume events. pkg/manager
// publishes through an optionally attached Broker (SetEventBroker) so a
// deployment that doesn't care about live notifications pays nothing.
package events
