package plexapm

import (
	"errors"
	"strings"
	"testing"
)

type fakePlugin struct {
	name   string
	err    error
	client *Client
}

func (p *fakePlugin) Name() string { return p.name }

func (p *fakePlugin) Setup(c *Client) error {
	p.client = c
	return p.err
}

func TestRegister(t *testing.T) {
	c, _ := newTestClient(t, Config{})
	a, b := &fakePlugin{name: "a"}, &fakePlugin{name: "b"}

	if err := c.Register(b, a); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if a.client != c || b.client != c {
		t.Error("Setup did not receive the client")
	}
	if got := c.Plugins(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Plugins = %v, want [a b]", got)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	c, _ := newTestClient(t, Config{})
	if err := c.Register(&fakePlugin{name: "http"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	second := &fakePlugin{name: "http"}
	err := c.Register(second)
	if err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("Register duplicate error = %v", err)
	}
	if second.client != nil {
		t.Error("Setup ran for a duplicate plugin")
	}
}

func TestRegister_SetupFailure(t *testing.T) {
	c, _ := newTestClient(t, Config{})
	cause := errors.New("no driver")

	err := c.Register(&fakePlugin{name: "gorm", err: cause}, &fakePlugin{name: "later"})
	if !errors.Is(err, cause) {
		t.Fatalf("Register error = %v, want wrapping cause", err)
	}
	if got := c.Plugins(); len(got) != 0 {
		t.Errorf("Plugins = %v, want none", got)
	}
	// A failed plugin may be registered again.
	if err := c.Register(&fakePlugin{name: "gorm"}); err != nil {
		t.Errorf("Register after failure: %v", err)
	}
}

func TestRegister_EmptyName(t *testing.T) {
	c, _ := newTestClient(t, Config{})
	if err := c.Register(&fakePlugin{}); err == nil {
		t.Fatal("Register accepted an unnamed plugin")
	}
}
