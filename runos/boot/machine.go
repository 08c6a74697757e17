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

// Package boot assembles and runs a machine: firmware console, frame
// pool, kernel singletons, syscall table, and the init image.
package boot

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/osprey-os/osprey/pkg/fs"
	"github.com/osprey-os/osprey/pkg/kernel"
	"github.com/osprey-os/osprey/pkg/loader"
	"github.com/osprey-os/osprey/pkg/log"
	"github.com/osprey-os/osprey/pkg/mm"
	"github.com/osprey-os/osprey/pkg/sbi"
	"github.com/osprey-os/osprey/pkg/syscalls"
	"github.com/osprey-os/osprey/runos/config"
)

// machineMu serializes machine runs: the kernel singletons belong to
// one booted machine at a time.
var machineMu sync.Mutex

// Machine is one bootable instance of the kernel.
type Machine struct {
	conf    *config.Config
	console io.Writer

	mu       sync.Mutex
	finished bool
	exitCode int32
}

// New returns a machine that will boot conf.Init and write console
// output to console.
func New(conf *config.Config, console io.Writer) *Machine {
	return &Machine{conf: conf, console: console}
}

// Done reports whether Run has completed.
func (m *Machine) Done() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished
}

// ExitCode returns the init process's exit code once Run completed.
func (m *Machine) ExitCode() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exitCode
}

// Run boots the machine and drives the processor loop until shutdown,
// returning the init process's exit code. A panic raised on Run's own
// goroutine (the processor loop) is reported as an error after the
// firmware shutdown path runs; a panic raised inside a task's goroutine
// or by the watchdog timer is not recovered and ends the Go process.
func (m *Machine) Run() (code int32, err error) {
	machineMu.Lock()
	defer machineMu.Unlock()

	img, ok := loader.Lookup(m.conf.Init)
	if !ok {
		return 0, fmt.Errorf("no image %q", m.conf.Init)
	}

	sbi.Init(m.console, []byte(m.conf.Input))
	mm.InitFrameAllocator(m.conf.MemoryFrames)
	fs.Init()
	kernel.Init(syscalls.Table())

	if m.conf.WatchdogSeconds > 0 {
		wd := time.AfterFunc(time.Duration(m.conf.WatchdogSeconds)*time.Second, func() {
			panic(fmt.Sprintf("machine watchdog expired after %ds", m.conf.WatchdogSeconds))
		})
		defer wd.Stop()
	}

	defer func() {
		if r := recover(); r != nil {
			// The panic path: report through the firmware console and
			// power off.
			fmt.Fprintf(m.console, "[kernel] panicked: %v\n", r)
			sbi.Shutdown(true)
			err = fmt.Errorf("kernel panic: %v", r)
		}
		m.mu.Lock()
		m.finished = true
		m.exitCode = code
		m.mu.Unlock()
	}()

	log.Infof("kernel: booting init image %q with %d frames", m.conf.Init, m.conf.MemoryFrames)
	initProc, err := kernel.CreateProcess(img.CreateArgs(0), nil)
	if err != nil {
		return 0, fmt.Errorf("starting init image %q: %w", m.conf.Init, err)
	}
	kernel.RunTasks()
	sbi.Shutdown(false)
	code = initProc.ExitCode()
	log.Infof("kernel: shutdown, init exited with %d", code)
	return code, nil
}
