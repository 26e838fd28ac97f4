// Copyright 2025 Zintix Labs
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

// ops 是開發用的任務入口：go run ./scripts <task>
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

type task struct {
	help string
	run  func() error
}

var tasks = map[string]task{
	"test":        {"go test ./... -cover -count=1, only ok/FAIL lines", runTest},
	"test-detail": {"go test ./... -v -count=1 without [no test files]", runTestDetail},
	"test-race":   {"go test ./... -race -count=1", runTestRace},
	"audit":       {"uniformity smoke audit for every prng and policy", runAudit},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	t, ok := tasks[os.Args[1]]
	if !ok {
		fmt.Println(yellow("unknown task: " + os.Args[1]))
		usage()
		os.Exit(1)
	}
	if err := t.run(); err != nil {
		fmt.Println(red(err.Error()))
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: go run ./scripts <task>")
	for name, t := range tasks {
		fmt.Printf("  %-12s %s\n", name, t.help)
	}
}

func cleanCache() error {
	return exec.Command("go", "clean", "-testcache").Run()
}

// filtered 執行指令並逐行交給 keep 決定是否印出；stderr 併入 stdout。
func filtered(keep func(string) (string, bool), name string, args ...string) error {
	cmd := exec.Command(name, args...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return err
	}
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		if line, ok := keep(sc.Text()); ok {
			fmt.Println(line)
		}
	}
	return cmd.Wait()
}

func runTest() error {
	fmt.Println(green("running tests"))
	_ = cleanCache()
	err := filtered(func(line string) (string, bool) {
		switch {
		case strings.HasPrefix(line, "ok"):
			return green(line), true
		case strings.HasPrefix(line, "FAIL"),
			strings.Contains(line, "build failed"),
			strings.Contains(line, "setup failed"):
			return red(line), true
		}
		return "", false
	}, "go", "test", "./...", "-cover", "-count=1")
	if err != nil {
		return fmt.Errorf("tests finished with errors")
	}
	return nil
}

func runTestDetail() error {
	fmt.Println(green("running tests (detail)"))
	if err := cleanCache(); err != nil {
		return err
	}
	return filtered(func(line string) (string, bool) {
		return line, !strings.Contains(line, "[no test files]")
	}, "go", "test", "./...", "-v", "-count=1")
}

func runTestRace() error {
	fmt.Println(green("running tests (race)"))
	cmd := exec.Command("go", "test", "./...", "-race", "-count=1")
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	return cmd.Run()
}

func runAudit() error {
	for _, prng := range []string{"pcg64", "pcg32", "crypto"} {
		for _, policy := range []string{"norepeat", "allow"} {
			fmt.Println(green(fmt.Sprintf("audit prng=%s policy=%s", prng, policy)))
			cmd := exec.Command("go", "run", "./cmd/drawlab", "audit",
				"-r", "1-55", "-n", "2750000", "-w", "4",
				"--prng", prng, "--policy", policy, "--fail-below", "0.001")
			cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
			if err := cmd.Run(); err != nil {
				return fmt.Errorf("audit prng=%s policy=%s: %w", prng, policy, err)
			}
		}
	}
	return nil
}
