// Package tool presents every external city-data source behind a uniform
// capability: invoke(name, arguments) -> result or error. The catalog is a
// closed set; adding a capability means adding a tool type, not registering
// an object at runtime.
package tool

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yazdeszhivu/cityagent/log"
)

// Arg describes one argument of a tool's input schema.
type Arg struct {
	Name        string
	Description string
	Required    bool
}

// Tool is one external city-data capability.
type Tool interface {
	// Name is the stable identifier used for dispatch and citations.
	Name() string
	// Description tells the selection LLM what the tool answers.
	Description() string
	// Schema declares the accepted arguments.
	Schema() []Arg
	// Invoke performs the call. Arguments are already schema-validated.
	Invoke(ctx context.Context, args map[string]string) (string, error)
}

// Call records one tool invocation. Never mutated after the call returns.
type Call struct {
	Tool      string
	Arguments map[string]string
	Result    string
	Err       error
	Latency   time.Duration
}

// Catalog is the closed set of available tools.
type Catalog struct {
	tools  map[string]Tool
	names  []string
	logger log.Logger
}

// NewCatalog builds a catalog over a fixed tool set. Duplicate names are a
// programming error.
func NewCatalog(logger log.Logger, tools ...Tool) (*Catalog, error) {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	c := &Catalog{tools: make(map[string]Tool, len(tools)), logger: logger}
	for _, t := range tools {
		if _, ok := c.tools[t.Name()]; ok {
			return nil, fmt.Errorf("duplicate tool %q", t.Name())
		}
		c.tools[t.Name()] = t
		c.names = append(c.names, t.Name())
	}
	sort.Strings(c.names)
	return c, nil
}

// Names returns the tool names in sorted order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Get returns the named tool.
func (c *Catalog) Get(name string) (Tool, bool) {
	t, ok := c.tools[name]
	return t, ok
}

// Describe renders the catalog for a tool-selection prompt, one line per
// tool.
func (c *Catalog) Describe() string {
	var b strings.Builder
	for _, name := range c.names {
		t := c.tools[name]
		fmt.Fprintf(&b, "- %s: %s", t.Name(), t.Description())
		args := t.Schema()
		if len(args) > 0 {
			parts := make([]string, 0, len(args))
			for _, a := range args {
				if a.Required {
					parts = append(parts, a.Name)
				} else {
					parts = append(parts, a.Name+"?")
				}
			}
			fmt.Fprintf(&b, " (аргументы: %s)", strings.Join(parts, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Invoke validates the arguments against the tool's schema and performs the
// call, recording latency and outcome. Validation failures never reach the
// network.
func (c *Catalog) Invoke(ctx context.Context, name string, args map[string]string) Call {
	call := Call{Tool: name, Arguments: args}
	start := time.Now()

	t, ok := c.tools[name]
	if !ok {
		call.Err = &ValidationError{Tool: name, Reason: "unknown tool"}
		call.Latency = time.Since(start)
		return call
	}

	if err := validateArgs(t, args); err != nil {
		call.Err = err
		call.Latency = time.Since(start)
		return call
	}

	result, err := t.Invoke(ctx, args)
	call.Result = result
	call.Err = err
	call.Latency = time.Since(start)

	if err != nil {
		c.logger.Warn("tool %s failed after %s: %v", name, call.Latency, err)
	} else {
		c.logger.Debug("tool %s completed in %s", name, call.Latency)
	}
	return call
}

func validateArgs(t Tool, args map[string]string) error {
	schema := t.Schema()
	known := make(map[string]Arg, len(schema))
	for _, a := range schema {
		known[a.Name] = a
	}
	for name := range args {
		if _, ok := known[name]; !ok {
			return &ValidationError{Tool: t.Name(), Field: name, Reason: "unknown argument"}
		}
	}
	for _, a := range schema {
		if a.Required && strings.TrimSpace(args[a.Name]) == "" {
			return &ValidationError{Tool: t.Name(), Field: a.Name, Reason: "required argument missing"}
		}
	}
	return nil
}
