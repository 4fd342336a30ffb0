package mqtt

// Subscribe routes messages matching filter to handler.
//
// The filter may use + and # wildcards. It is remembered and subscribed
// again after every reconnect, which is how the Home Assistant birth topic
// keeps working across broker restarts:
//
//	client.Subscribe(topics.Birth(), client.QoS(), registry.HandleBirth)
func (c *Client) Subscribe(filter string, qos byte, handler MessageHandler) error {
	if err := checkTopic(filter, true); err != nil {
		return err
	}
	if err := checkQoS(qos); err != nil {
		return err
	}
	if handler == nil {
		return ErrNilHandler
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	c.subs[filter] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	if err := await(c.client.Subscribe(filter, qos, c.wrapHandler(handler)), "subscribe "+filter); err != nil {
		c.forget(filter)
		return err
	}
	return nil
}

// Unsubscribe stops routing filter. Messages already in flight may still
// reach the old handler.
func (c *Client) Unsubscribe(filter string) error {
	if err := checkTopic(filter, true); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.forget(filter)
	return await(c.client.Unsubscribe(filter), "unsubscribe "+filter)
}

// HasSubscription reports whether filter will be restored on reconnect.
// The match is on the exact filter string.
func (c *Client) HasSubscription(filter string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subs[filter]
	return ok
}

func (c *Client) forget(filter string) {
	c.mu.Lock()
	delete(c.subs, filter)
	c.mu.Unlock()
}
