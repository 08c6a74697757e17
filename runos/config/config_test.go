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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/osprey-os/osprey/runos/flag"
)

func newFlagSet(t *testing.T) *flag.FlagSet {
	t.Helper()
	fs := flag.FlagSet{}
	RegisterFlags(&fs)
	return &fs
}

func TestDefaultIsACopy(t *testing.T) {
	a := Default()
	a.MemoryFrames = 1
	b := Default()
	if b.MemoryFrames == 1 {
		t.Errorf("mutating one Default() copy leaked into another")
	}
}

func TestFlagOverrides(t *testing.T) {
	fs := newFlagSet(t)
	if err := fs.Parse([]string{"--init", "pipedemo", "--memory-frames", "1024", "--debug"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	conf, err := NewFromFlags(fs)
	if err != nil {
		t.Fatalf("NewFromFlags: %v", err)
	}
	want := Default()
	want.Init = "pipedemo"
	want.MemoryFrames = 1024
	want.Debug = true
	if diff := cmp.Diff(want, conf); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestTOMLFileUnderFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine.toml")
	body := "init = \"stride\"\nmemory_frames = 2048\nwatchdog_seconds = 5\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	fs := newFlagSet(t)
	if err := fs.Parse([]string{"--config", path, "--memory-frames", "4096"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	conf, err := NewFromFlags(fs)
	if err != nil {
		t.Fatalf("NewFromFlags: %v", err)
	}
	if conf.Init != "stride" || conf.WatchdogSeconds != 5 {
		t.Errorf("TOML values not applied: %+v", conf)
	}
	if conf.MemoryFrames != 4096 {
		t.Errorf("flag did not override TOML: MemoryFrames = %d", conf.MemoryFrames)
	}
}

func TestRejectsBadValues(t *testing.T) {
	fs := newFlagSet(t)
	if err := fs.Parse([]string{"--memory-frames", "2"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := NewFromFlags(fs); err == nil {
		t.Errorf("tiny frame pool accepted")
	}
	fs = newFlagSet(t)
	if err := fs.Parse([]string{"--log-format", "yaml"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := NewFromFlags(fs); err == nil {
		t.Errorf("unknown log format accepted")
	}
}
