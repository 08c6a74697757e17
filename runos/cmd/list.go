// Copyright 2024 The Osprey Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/osprey-os/osprey/pkg/loader"
	"github.com/osprey-os/osprey/runos/flag"
)

// List prints the registered program images.
type List struct{}

// Name implements subcommands.Command.Name.
func (*List) Name() string {
	return "list"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*List) Synopsis() string {
	return "list the registered program images"
}

// Usage implements subcommands.Command.Usage.
func (*List) Usage() string {
	return `list - print every image the loader can boot.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*List) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*List) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	for _, name := range loader.Names() {
		img, _ := loader.Lookup(name)
		kind := ""
		if img.Demo {
			kind = "demo"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, kind, img.Doc)
	}
	w.Flush()
	return subcommands.ExitSuccess
}
