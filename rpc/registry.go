package rpc

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// paramType is the closed set of semantic parameter types. Every registered
// parameter carries one, and the coercer converts string and native argument
// forms of the same type to identical values.
type paramType int

const (
	paramInteger paramType = iota
	paramBool
	paramString
	paramAddress
	paramHash
)

func (t paramType) String() string {
	switch t {
	case paramInteger:
		return "integer"
	case paramBool:
		return "bool"
	case paramString:
		return "string"
	case paramAddress:
		return "address"
	case paramHash:
		return "hash"
	default:
		return "unknown"
	}
}

// paramSpec describes one positional parameter.
type paramSpec struct {
	name     string
	typ      paramType
	required bool
	// def is substituted when an optional parameter is absent or null.
	def interface{}
}

// handlerFunc receives coerced arguments positionally aligned with the
// command's parameter specs; it never sees raw tokens.
type handlerFunc func(ctx context.Context, args []interface{}) (interface{}, error)

// command couples a name with its parameter schema and handler.
type command struct {
	name    string
	params  []paramSpec
	help    string
	handler handlerFunc
}

// usage renders the one-line call form, optional parameters bracketed.
func (c *command) usage() string {
	var b strings.Builder
	b.WriteString(c.name)
	for _, p := range c.params {
		if p.required {
			fmt.Fprintf(&b, " <%s>", p.name)
		} else {
			fmt.Fprintf(&b, " [%s]", p.name)
		}
	}
	return b.String()
}

// registry is the static command table. It is assembled once at server
// construction; lookup is exact-match and case-sensitive.
type registry struct {
	commands map[string]*command
}

func newRegistry() *registry {
	return &registry{commands: make(map[string]*command)}
}

// register panics on a duplicate name: the table is built from static code
// and a collision is a programming error, not a runtime condition.
func (r *registry) register(cmd *command) {
	if cmd.name == "" {
		panic("rpc: command with empty name")
	}
	if _, ok := r.commands[cmd.name]; ok {
		panic(fmt.Sprintf("rpc: duplicate command %q", cmd.name))
	}
	for i, p := range cmd.params {
		if p.required && i > 0 && !cmd.params[i-1].required {
			panic(fmt.Sprintf("rpc: command %q has required parameter %q after an optional one", cmd.name, p.name))
		}
	}
	r.commands[cmd.name] = cmd
}

func (r *registry) lookup(name string) (*command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// names returns all registered command names sorted lexically.
func (r *registry) names() []string {
	out := make([]string, 0, len(r.commands))
	for name := range r.commands {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
