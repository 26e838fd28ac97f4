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

// Package perf 以 pprof 包住一段工作（例如大量抽號的 audit）。
package perf

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"github.com/zintix-labs/drawlab/errs"
)

// DefaultDir pprof 檔案預設寫入路徑
const DefaultDir = "build/profiling"

// Modes 支援的模式；空字串表示不做 profiling。
var Modes = []string{"", "cpu", "heap", "allocs"}

// Run 依 mode 執行 exe 並把 profile 寫到 dir/<mode>.pprof，回傳 exe 的錯誤或寫檔錯誤。
//
//   - cpu：exe 執行期間的 CPU profile，也可當 PGO 的輸入
//   - heap：exe 結束後 GC 一次再寫 in-use 快照
//   - allocs：exe 結束後寫累積配置
func Run(exe func() error, mode string, dir string) error {
	if dir == "" {
		dir = DefaultDir
	}
	switch mode {
	case "":
		return exe()
	case "cpu":
		return cpu(exe, dir)
	case "heap":
		return after(exe, dir, "heap", true)
	case "allocs":
		return after(exe, dir, "allocs", false)
	default:
		return errs.Warnf("unknown pprof mode %q", mode)
	}
}

// Path 回傳 mode 的輸出檔路徑。
func Path(dir, mode string) string {
	if dir == "" {
		dir = DefaultDir
	}
	return filepath.Join(dir, mode+".pprof")
}

func create(dir, mode string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(err, "create profiling dir")
	}
	f, err := os.Create(Path(dir, mode))
	if err != nil {
		return nil, errs.Wrap(err, "create "+mode+".pprof")
	}
	return f, nil
}

func cpu(exe func() error, dir string) error {
	f, err := create(dir, "cpu")
	if err != nil {
		return err
	}
	defer f.Close()
	if err := pprof.StartCPUProfile(f); err != nil {
		return errs.Wrap(err, "start cpu profile")
	}
	defer pprof.StopCPUProfile()
	return exe()
}

func after(exe func() error, dir, mode string, gc bool) error {
	if err := exe(); err != nil {
		return err
	}
	if gc {
		runtime.GC()
	}
	f, err := create(dir, mode)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := pprof.Lookup(mode).WriteTo(f, 0); err != nil {
		return errs.Wrap(err, "write "+mode+" profile")
	}
	return nil
}
