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

package draw

import (
	"strconv"
	"strings"

	"github.com/zintix-labs/drawlab/errs"
)

// Policy 決定一個週期內是否允許重複。
type Policy uint8

const (
	// NoRepeat 週期內不重複（預設）：抽過的值在週期用盡前不會再出現。
	NoRepeat Policy = iota
	// AllowRepeat 每次都從整個範圍抽。
	AllowRepeat
)

// ErrBadPolicy 未知的週期策略。
var ErrBadPolicy = errs.Coded(errs.Warn, "bad_policy", "policy must be norepeat or allow")

func (p Policy) Valid() bool {
	return p == NoRepeat || p == AllowRepeat
}

func (p Policy) String() string {
	switch p {
	case NoRepeat:
		return "norepeat"
	case AllowRepeat:
		return "allow"
	default:
		return "policy(" + strconv.Itoa(int(p)) + ")"
	}
}

// ParsePolicy 接受常見寫法，大小寫不敏感。
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "norepeat", "no-repeat", "no_repeat", "unique":
		return NoRepeat, nil
	case "allow", "allowrepeat", "allow-repeat", "allow_repeat", "repeat":
		return AllowRepeat, nil
	default:
		return NoRepeat, errs.With(ErrBadPolicy, strconv.Quote(s))
	}
}

func (p Policy) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, errs.With(ErrBadPolicy, p.String())
	}
	return []byte(p.String()), nil
}

func (p *Policy) UnmarshalText(b []byte) error {
	v, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
