// Package cmdutil holds flag helpers shared by the stellite-build commands.
package cmdutil

import (
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Oneof is a string flag restricted to a fixed set of values.
type Oneof struct {
	Value   string
	Allowed []string
	Flag    string
	Desc    string // usage desc
}

// Strings converts a list of string-typed values for use as Allowed.
func Strings[T ~string](vs []T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}

// AddFlag registers the flag on cmd, with shell completion of the allowed values.
func (o *Oneof) AddFlag(cmd *cobra.Command) {
	cmd.Flags().AddFlag(&pflag.Flag{
		Name:     o.Flag,
		Usage:    o.Usage(),
		Value:    o,
		DefValue: o.String(),
	})
	_ = cmd.RegisterFlagCompletionFunc(o.Flag, func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return o.Allowed, cobra.ShellCompDirectiveNoFileComp
	})
}

func (o *Oneof) String() string {
	return o.Value
}

func (o *Oneof) Type() string {
	return o.Flag
}

func (o *Oneof) Set(v string) error {
	if slices.Contains(o.Allowed, v) {
		o.Value = v
		return nil
	}

	var b strings.Builder
	b.WriteString("must be one of ")
	o.oneOf(&b)
	return errors.New(b.String())
}

func (o *Oneof) Usage() string {
	var b strings.Builder
	b.WriteString(o.Desc + ". One of (")
	o.oneOf(&b)
	b.WriteString(").")
	return b.String()
}

// Alternatives lists the alternatives in the format "a|b|c".
func (o *Oneof) Alternatives() string {
	return strings.Join(o.Allowed, "|")
}

func (o *Oneof) oneOf(b *strings.Builder) {
	n := len(o.Allowed)
	for i, s := range o.Allowed {
		if i > 0 {
			switch {
			case n == 2:
				b.WriteString(" or ")
			case i == n-1:
				b.WriteString(", or ")
			default:
				b.WriteString(", ")
			}
		}
		b.WriteString(strconv.Quote(s))
	}
}
