package gateway

import "net"

// Context is handed to the auth handler on every decoded frame. It is the
// only thing the handler can use to talk back to its own connection or
// reach others through the registry, which keeps the handler itself free
// of any direct reference to sockets or goroutines.
type Context struct {
	connectionID ConnectionID
	addr         net.Addr
	outbox       chan<- []byte
	registry     *ConnectionRegistry
}

// NewContext builds a Context for one connection's current frame.
func NewContext(id ConnectionID, addr net.Addr, outbox chan<- []byte, registry *ConnectionRegistry) *Context {
	return &Context{connectionID: id, addr: addr, outbox: outbox, registry: registry}
}

// ConnectionID returns the id of the connection this context belongs to.
func (c *Context) ConnectionID() ConnectionID {
	return c.connectionID
}

// Addr returns the peer address of the owning connection.
func (c *Context) Addr() net.Addr {
	return c.addr
}

// Send queues bytes for delivery on the owning connection's write task.
func (c *Context) Send(bytes []byte) {
	trySend(c.outbox, bytes)
}

// SendTo queues bytes for delivery to a different connection.
func (c *Context) SendTo(target ConnectionID, bytes []byte) {
	c.registry.SendTo(target, bytes)
}

// BroadcastOthers queues bytes for delivery to every connection but this one.
func (c *Context) BroadcastOthers(bytes []byte) {
	c.registry.BroadcastExcept(c.connectionID, bytes)
}

// BroadcastAll queues bytes for delivery to every connection, including
// this one.
func (c *Context) BroadcastAll(bytes []byte) {
	c.registry.BroadcastAll(bytes)
}

// BroadcastFilter queues bytes for delivery to every connection accepted
// by filter.
func (c *Context) BroadcastFilter(bytes []byte, filter func(id ConnectionID, addr net.Addr) bool) {
	c.registry.BroadcastFilter(bytes, filter)
}

// Connections returns every connection id currently registered.
func (c *Context) Connections() []ConnectionID {
	return c.registry.IDs()
}

// ConnectionCount returns the number of connections currently registered.
func (c *Context) ConnectionCount() int {
	return c.registry.Count()
}
