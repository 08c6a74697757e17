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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/subcommands"
	"github.com/osprey-os/osprey/pkg/loader"
	"github.com/osprey-os/osprey/runos/boot"
	"github.com/osprey-os/osprey/runos/config"
	"github.com/osprey-os/osprey/runos/flag"
	"golang.org/x/sync/errgroup"
)

// Run boots a machine on an image.
type Run struct {
	all         bool
	waitSeconds int
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "boot a machine and run an image as its init process"
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run [--all] [--wait-seconds N] [image] - boot a machine on the image (default from --init).
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.all, "all", false, "run every registered demo image, one machine each.")
	f.IntVar(&r.waitSeconds, "wait-seconds", 0, "poll for machine completion up to this many seconds instead of waiting inline.")
}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)
	if r.all {
		return r.runAll(conf)
	}
	name := conf.Init
	if f.NArg() > 0 {
		name = f.Arg(0)
	}
	code, err := r.runOne(conf, name, os.Stdout)
	if err != nil {
		Fatalf("running %q: %v", name, err)
	}
	if code != 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

var errStillRunning = errors.New("machine still running")

func (r *Run) runOne(conf *config.Config, name string, console *os.File) (int32, error) {
	cc := *conf
	cc.Init = name
	m := boot.New(&cc, console)
	if r.waitSeconds <= 0 {
		return m.Run()
	}
	var (
		code int32
		err  error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		code, err = m.Run()
	}()
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = time.Duration(r.waitSeconds) * time.Second
	if werr := backoff.Retry(func() error {
		if m.Done() {
			return nil
		}
		return errStillRunning
	}, b); werr != nil {
		return 0, fmt.Errorf("machine did not drain within %ds", r.waitSeconds)
	}
	<-done
	return code, err
}

func (r *Run) runAll(conf *config.Config) subcommands.ExitStatus {
	var printMu sync.Mutex
	g := new(errgroup.Group)
	for _, name := range loader.Names() {
		img, _ := loader.Lookup(name)
		if !img.Demo {
			continue
		}
		name := name
		g.Go(func() error {
			var out bytes.Buffer
			cc := *conf
			cc.Init = name
			code, err := boot.New(&cc, &out).Run()
			printMu.Lock()
			fmt.Printf("=== %s ===\n%s", name, out.String())
			printMu.Unlock()
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			if code != 0 {
				return fmt.Errorf("%s: exit code %d", name, code)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "runos: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
