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

package boot

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/osprey-os/osprey/pkg/kernel"
	"github.com/osprey-os/osprey/pkg/kernelerr"
	"github.com/osprey-os/osprey/pkg/loader"
	"github.com/osprey-os/osprey/pkg/sysabi"
	"github.com/osprey-os/osprey/pkg/usys"
	_ "github.com/osprey-os/osprey/pkg/workloads"
	"github.com/osprey-os/osprey/runos/config"
)

func runImageWithInput(t *testing.T, name, input string) (string, int32) {
	t.Helper()
	conf := config.Default()
	conf.Init = name
	conf.Input = input
	conf.WatchdogSeconds = 20
	var out bytes.Buffer
	m := New(conf, &out)
	code, err := m.Run()
	if err != nil {
		t.Fatalf("machine run: %v\nconsole:\n%s", err, out.String())
	}
	if !m.Done() {
		t.Fatalf("machine not marked done after Run")
	}
	return out.String(), code
}

func runImage(t *testing.T, name string) (string, int32) {
	t.Helper()
	return runImageWithInput(t, name, "")
}

var testImageCount int

func runEntry(t *testing.T, main kernel.Entry) (string, int32) {
	t.Helper()
	testImageCount++
	name := fmt.Sprintf("test:%s-%d", t.Name(), testImageCount)
	loader.Register(loader.Image{Name: name, Main: main})
	return runImage(t, name)
}

func TestHelloImage(t *testing.T) {
	out, code := runImage(t, "hello")
	if out != "Hello, world!\n" {
		t.Errorf("console = %q", out)
	}
	if code != 0 {
		t.Errorf("exit code = %d", code)
	}
}

func TestStrideFairness(t *testing.T) {
	out, code := runImage(t, "stride")
	if code != 0 {
		t.Fatalf("exit code = %d, console %q", code, out)
	}
	var a, b int
	if _, err := fmt.Sscanf(strings.TrimSpace(out), "A=%d B=%d", &a, &b); err != nil {
		t.Fatalf("unparseable console %q: %v", out, err)
	}
	ratio := float64(b) / float64(a)
	if ratio < 1.8 || ratio > 2.2 {
		t.Errorf("selection ratio B/A = %.3f (A=%d, B=%d), want about 2", ratio, a, b)
	}
}

func TestDeadlockDetection(t *testing.T) {
	out, code := runImage(t, "deadlock")
	if code != 0 {
		t.Fatalf("exit code = %d, console %q", code, out)
	}
	if got := strings.Count(out, "refused"); got != 1 {
		t.Errorf("refusals = %d, want exactly 1; console %q", got, out)
	}
	if !strings.HasSuffix(out, "done\n") {
		t.Errorf("threads did not all finish; console %q", out)
	}
}

func TestSemaphoreBoundedBuffer(t *testing.T) {
	out, code := runImage(t, "prodcons")
	if code != 0 {
		t.Fatalf("exit code = %d, console %q", code, out)
	}
	want := "got 1\ngot 2\ngot 3\ngot 4\ngot 5\nprodcons ok\n"
	if out != want {
		t.Errorf("console = %q, want %q", out, want)
	}
}

func TestPipeEOF(t *testing.T) {
	out, code := runImage(t, "pipedemo")
	if code != 0 {
		t.Fatalf("exit code = %d, console %q", code, out)
	}
	if out != "hello\nEOF\n" {
		t.Errorf("console = %q", out)
	}
}

func TestMmapScenario(t *testing.T) {
	out, code := runImage(t, "mmapprobe")
	if code != 0 {
		t.Fatalf("exit code = %d, console %q", code, out)
	}
	want := "mmap=0\nremap=-1\nmunmap=0\nreunmap=-1\nbadport=-1\nmisaligned=-1\nsbrk-roundtrip=ok\n"
	if out != want {
		t.Errorf("console = %q, want %q", out, want)
	}
}

func TestWaittidSemantics(t *testing.T) {
	out, code := runEntry(t, func(t *kernel.Task, _ uint64) {
		tid := usys.ThreadCreate(t, func(t *kernel.Task, _ uint64) {
			usys.Exit(t, 7)
		}, 0)
		first := usys.WaittidBlocking(t, int(tid))
		second := usys.Waittid(t, int(tid))
		self := usys.Waittid(t, int(usys.Gettid(t)))
		missing := usys.Waittid(t, 42)
		usys.Print(t, fmt.Sprintf("first=%d second=%d self=%d missing=%d\n", first, second, self, missing))
		usys.Exit(t, 0)
	})
	if code != 0 {
		t.Fatalf("exit code = %d, console %q", code, out)
	}
	if out != "first=7 second=-1 self=-1 missing=-1\n" {
		t.Errorf("console = %q", out)
	}
}

func TestThreadArgReachesEntry(t *testing.T) {
	out, _ := runEntry(t, func(t *kernel.Task, _ uint64) {
		tid := usys.ThreadCreate(t, func(t *kernel.Task, arg uint64) {
			usys.Print(t, fmt.Sprintf("arg=%d tid=%d\n", arg, usys.Gettid(t)))
			usys.Exit(t, 0)
		}, 99)
		usys.WaittidBlocking(t, int(tid))
		usys.Exit(t, 0)
	})
	if out != "arg=99 tid=1\n" {
		t.Errorf("console = %q", out)
	}
}

func TestBlockingMutexFIFO(t *testing.T) {
	out, _ := runEntry(t, func(t *kernel.Task, _ uint64) {
		mu := int(usys.MutexCreate(t, true))
		usys.MutexLock(t, mu)
		var tids []int64
		for i := 1; i <= 3; i++ {
			i := i
			tids = append(tids, usys.ThreadCreate(t, func(t *kernel.Task, _ uint64) {
				usys.MutexLock(t, mu)
				usys.Print(t, fmt.Sprintf("w%d\n", i))
				usys.MutexUnlock(t, mu)
				usys.Exit(t, 0)
			}, 0))
		}
		// Let each waiter enqueue in creation order.
		for i := 0; i < 6; i++ {
			usys.Yield(t)
		}
		usys.MutexUnlock(t, mu)
		for _, tid := range tids {
			usys.WaittidBlocking(t, int(tid))
		}
		usys.Exit(t, 0)
	})
	if out != "w1\nw2\nw3\n" {
		t.Errorf("wakeup order = %q, want FIFO", out)
	}
}

func TestSpinMutexExcludes(t *testing.T) {
	out, _ := runEntry(t, func(t *kernel.Task, _ uint64) {
		mu := int(usys.MutexCreate(t, false))
		held := 0
		worker := func(t *kernel.Task, _ uint64) {
			usys.MutexLock(t, mu)
			held++
			if held != 1 {
				usys.Print(t, "overlap\n")
			}
			usys.Yield(t)
			held--
			usys.MutexUnlock(t, mu)
			usys.Exit(t, 0)
		}
		a := usys.ThreadCreate(t, worker, 0)
		b := usys.ThreadCreate(t, worker, 0)
		usys.WaittidBlocking(t, int(a))
		usys.WaittidBlocking(t, int(b))
		usys.Print(t, "exclusive\n")
		usys.Exit(t, 0)
	})
	if out != "exclusive\n" {
		t.Errorf("console = %q", out)
	}
}

func TestCondvarWaitSignal(t *testing.T) {
	out, _ := runEntry(t, func(t *kernel.Task, _ uint64) {
		mu := int(usys.MutexCreate(t, true))
		cv := int(usys.CondvarCreate(t))
		flag := 0
		tid := usys.ThreadCreate(t, func(t *kernel.Task, _ uint64) {
			usys.MutexLock(t, mu)
			for flag == 0 {
				usys.CondvarWait(t, cv, mu)
			}
			usys.Print(t, "woken\n")
			usys.MutexUnlock(t, mu)
			usys.Exit(t, 0)
		}, 0)
		// Let the waiter block on the condvar first.
		for i := 0; i < 4; i++ {
			usys.Yield(t)
		}
		usys.MutexLock(t, mu)
		flag = 1
		usys.MutexUnlock(t, mu)
		usys.CondvarSignal(t, cv)
		usys.Print(t, "signalled\n")
		usys.WaittidBlocking(t, int(tid))
		usys.Exit(t, 0)
	})
	// The signaller keeps running until its next suspension.
	if out != "signalled\nwoken\n" {
		t.Errorf("console = %q", out)
	}
}

func TestSleepOrdering(t *testing.T) {
	out, _ := runEntry(t, func(t *kernel.Task, _ uint64) {
		tid := usys.ThreadCreate(t, func(t *kernel.Task, _ uint64) {
			usys.Sleep(t, 50)
			usys.Print(t, "late\n")
			usys.Exit(t, 0)
		}, 0)
		usys.Sleep(t, 10)
		usys.Print(t, "early\n")
		usys.WaittidBlocking(t, int(tid))
		usys.Exit(t, 0)
	})
	if out != "early\nlate\n" {
		t.Errorf("console = %q", out)
	}
}

func TestGetTimeAdvances(t *testing.T) {
	out, _ := runEntry(t, func(t *kernel.Task, _ uint64) {
		_, us1 := usys.GetTime(t)
		usys.Sleep(t, 5)
		_, us2 := usys.GetTime(t)
		if us2 > us1 {
			usys.Print(t, "advanced\n")
		} else {
			usys.Print(t, fmt.Sprintf("stuck %d %d\n", us1, us2))
		}
		usys.Exit(t, 0)
	})
	if out != "advanced\n" {
		t.Errorf("console = %q", out)
	}
}

func TestForkWaitpid(t *testing.T) {
	out, _ := runEntry(t, func(t *kernel.Task, _ uint64) {
		pid := usys.Fork(t, func(t *kernel.Task, _ uint64) {
			usys.Print(t, "child\n")
			usys.Exit(t, 5)
		}, 0)
		got, code := usys.WaitpidBlocking(t, int32(pid))
		again, _ := usys.Waitpid(t, int32(pid))
		usys.Print(t, fmt.Sprintf("reaped=%v code=%d again=%d\n", got == pid, code, again))
		usys.Exit(t, 0)
	})
	if out != "child\nreaped=true code=5 again=-1\n" {
		t.Errorf("console = %q", out)
	}
}

func TestExecReplacesProcess(t *testing.T) {
	out, code := runEntry(t, func(t *kernel.Task, _ uint64) {
		usys.Exec(t, "echo", 3)
		usys.Print(t, "unreachable\n")
		usys.Exit(t, 9)
	})
	if out != "echo:3\n" {
		t.Errorf("console = %q", out)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want the exec'd image's", code)
	}
}

func TestSpawnChild(t *testing.T) {
	out, _ := runEntry(t, func(t *kernel.Task, _ uint64) {
		pid := usys.Spawn(t, "echo", 4)
		if pid < 0 {
			usys.Exit(t, 1)
		}
		_, code := usys.WaitpidBlocking(t, int32(pid))
		usys.Print(t, fmt.Sprintf("spawned code=%d\n", code))
		usys.Exit(t, 0)
	})
	if out != "echo:4\nspawned code=4\n" {
		t.Errorf("console = %q", out)
	}
}

func TestFileSyscalls(t *testing.T) {
	out, _ := runEntry(t, func(t *kernel.Task, _ uint64) {
		fd := usys.Open(t, "notes.txt", sysabi.OpenCREATE|sysabi.OpenWRONLY)
		usys.Write(t, int(fd), []byte("persist"))
		usys.Close(t, int(fd))

		usys.Linkat(t, "notes.txt", "alias.txt")
		fd = usys.Open(t, "alias.txt", sysabi.OpenRDONLY)
		st, _ := usys.Fstat(t, int(fd))
		b, _ := usys.Read(t, int(fd), 7)
		usys.Close(t, int(fd))
		usys.Unlinkat(t, "notes.txt")

		fd = usys.Open(t, "alias.txt", sysabi.OpenRDONLY)
		st2, _ := usys.Fstat(t, int(fd))
		usys.Close(t, int(fd))

		usys.Print(t, fmt.Sprintf("data=%s nlink=%d after=%d\n", b, st.Nlink, st2.Nlink))
		usys.Exit(t, 0)
	})
	if out != "data=persist nlink=2 after=1\n" {
		t.Errorf("console = %q", out)
	}
}

func TestDupSharesOpenFile(t *testing.T) {
	out, _ := runEntry(t, func(t *kernel.Task, _ uint64) {
		fd := usys.Open(t, "dup.txt", sysabi.OpenCREATE|sysabi.OpenWRONLY)
		fd2 := usys.Dup(t, int(fd))
		usys.Write(t, int(fd), []byte("ab"))
		usys.Write(t, int(fd2), []byte("cd"))
		usys.Close(t, int(fd))
		usys.Close(t, int(fd2))
		rd := usys.Open(t, "dup.txt", sysabi.OpenRDONLY)
		b, _ := usys.Read(t, int(rd), 4)
		usys.Print(t, string(b)+"\n")
		usys.Exit(t, 0)
	})
	if out != "abcd\n" {
		t.Errorf("console = %q, dup does not share the open offset", out)
	}
}

func TestStdinRead(t *testing.T) {
	testImageCount++
	name := fmt.Sprintf("test:%s-%d", t.Name(), testImageCount)
	loader.Register(loader.Image{Name: name, Main: func(t *kernel.Task, _ uint64) {
		b, n := usys.Read(t, 0, 8)
		_, n2 := usys.Read(t, 0, 8)
		usys.Print(t, fmt.Sprintf("read=%q n=%d eof=%d\n", b, n, n2))
		usys.Exit(t, 0)
	}})
	out, _ := runImageWithInput(t, name, "hi")
	if out != "read=\"hi\" n=2 eof=0\n" {
		t.Errorf("console = %q", out)
	}
}

func TestTaskInfoCountsSyscalls(t *testing.T) {
	out, _ := runEntry(t, func(t *kernel.Task, _ uint64) {
		usys.Yield(t)
		usys.Yield(t)
		usys.Yield(t)
		counts, _ := usys.TaskInfo(t)
		usys.Print(t, "yields="+strconv.Itoa(int(counts[sysabi.SysYield]))+"\n")
		usys.Exit(t, 0)
	})
	if out != "yields=3\n" {
		t.Errorf("console = %q", out)
	}
}

func TestSbrkRefusesShrinkBelowBottom(t *testing.T) {
	out, _ := runEntry(t, func(t *kernel.Task, _ uint64) {
		usys.Print(t, fmt.Sprintf("shrink=%d\n", usys.Sbrk(t, -4096)))
		usys.Exit(t, 0)
	})
	if out != "shrink=-1\n" {
		t.Errorf("console = %q", out)
	}
}

func TestDeadlockRefusalIsRetryable(t *testing.T) {
	// After a refusal, the restored need counter lets the same request
	// succeed once the state changes.
	out, _ := runEntry(t, func(t *kernel.Task, _ uint64) {
		usys.EnableDeadlockDetect(t, true)
		sem := int(usys.SemaphoreCreate(t, 1))
		// Holding the only unit and asking for a second can never be
		// satisfied: refused.
		usys.SemaphoreDown(t, sem)
		if usys.SemaphoreDown(t, sem) == kernelerr.DeadlockCode {
			usys.Print(t, "refused\n")
		}
		// Returning the unit makes the identical request safe again.
		usys.SemaphoreUp(t, sem)
		if usys.SemaphoreDown(t, sem) == 0 {
			usys.Print(t, "retried\n")
			usys.SemaphoreUp(t, sem)
		}
		usys.Exit(t, 0)
	})
	if out != "refused\nretried\n" {
		t.Errorf("console = %q", out)
	}
}

func TestUnknownSyscallFails(t *testing.T) {
	out, _ := runEntry(t, func(t *kernel.Task, _ uint64) {
		usys.Print(t, fmt.Sprintf("bogus=%d\n", t.Syscall(9999)))
		usys.Exit(t, 0)
	})
	if out != "bogus=-1\n" {
		t.Errorf("console = %q", out)
	}
}
