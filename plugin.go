package plexapm

import (
	"errors"
	"fmt"
	"sort"
)

// Plugin is a framework integration attached to a Client.
type Plugin interface {
	// Name identifies the plugin. It must be unique per client.
	Name() string

	// Setup wires the plugin to the client. It is called once, by Register.
	Setup(c *Client) error
}

// Register sets up plugins in order. It stops at the first plugin that fails
// or whose name is already registered.
func (c *Client) Register(plugins ...Plugin) error {
	for _, p := range plugins {
		name := p.Name()
		if name == "" {
			return errors.New("plexapm: register: plugin name is required")
		}

		c.mu.Lock()
		_, dup := c.plugins[name]
		if !dup {
			c.plugins[name] = p
		}
		c.mu.Unlock()
		if dup {
			return fmt.Errorf("plexapm: register: plugin %q already registered", name)
		}

		if err := p.Setup(c); err != nil {
			c.mu.Lock()
			delete(c.plugins, name)
			c.mu.Unlock()
			return fmt.Errorf("plexapm: register %s: %w", name, err)
		}
		c.logger.Info("plugin registered", "plugin", name)
	}
	return nil
}

// Plugins returns the names of the registered plugins, sorted.
func (c *Client) Plugins() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.plugins))
	for name := range c.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
