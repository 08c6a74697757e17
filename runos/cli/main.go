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

// Package cli is the main entrypoint for runos.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/google/subcommands"
	"github.com/osprey-os/osprey/pkg/log"
	_ "github.com/osprey-os/osprey/pkg/workloads" // register built-in images.
	"github.com/osprey-os/osprey/runos/cmd"
	"github.com/osprey-os/osprey/runos/config"
	"github.com/osprey-os/osprey/runos/flag"
	"github.com/osprey-os/osprey/runos/version"
	"golang.org/x/sys/unix"
)

// versionFlagName is the name of the flag that prints the version.
const versionFlagName = "version"

// Main is the main entrypoint.
func Main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(cmd.Run), "")
	subcommands.Register(new(cmd.List), "")
	subcommands.Register(new(cmd.Syscalls), "")
	subcommands.Register(new(cmd.Version), "")

	config.RegisterFlags(flag.CommandLine)
	if flag.Lookup(versionFlagName) == nil {
		flag.Bool(versionFlagName, false, "show version and exit.")
	}

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	if flag.Get(flag.Lookup(versionFlagName).Value).(bool) {
		fmt.Fprintf(os.Stdout, "runos version %s\n", version.Version())
		os.Exit(0)
	}

	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		cmd.Fatalf("%v", err)
	}

	// Set up logging.
	if conf.Debug {
		log.SetLevel(log.Debug)
	}
	var logWriter io.Writer = os.Stderr
	if conf.LogFilename != "" {
		f, err := os.OpenFile(conf.LogFilename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			cmd.Fatalf("error opening log file %q: %v", conf.LogFilename, err)
		}
		logWriter = f
	}
	log.SetTarget(log.NewEmitter(conf.LogFormat, logWriter))

	log.Infof("***************************")
	log.Infof("Args: %s", os.Args)
	log.Infof("Version %s", version.Version())
	log.Infof("PID: %d", os.Getpid())
	log.Infof("Configuration:")
	log.Infof("\t\tInit: %s", conf.Init)
	log.Infof("\t\tMemoryFrames: %d", conf.MemoryFrames)
	log.Infof("\t\tDebug: %v", conf.Debug)
	log.Infof("***************************")

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	os.Exit(int(subcommands.Execute(ctx, conf)))
}
