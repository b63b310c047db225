// Package msgs defines the schemas of host commands, replies and events
// exchanged with a device over message queues.
package msgs
