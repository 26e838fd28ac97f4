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

package settings

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	"github.com/zintix-labs/drawlab/draw"
	"github.com/zintix-labs/drawlab/errs"
	"gopkg.in/yaml.v3"
)

// FromYAML 以預設值為底讀取 YAML，未知欄位直接報錯，最後執行 Validate。
func FromYAML(data []byte) (Settings, error) {
	s := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 嚴格檢查：多寫/拼錯欄位就報錯
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return Settings{}, errs.WrapWithExtra(errs.NewWarn("decode yaml"), "failed to unmarshal settings yaml", err.Error())
	}
	if err := s.Validate(); err != nil {
		return Settings{}, errs.Wrap(err, "settings invalid")
	}
	return s, nil
}

// FromJSON 與 FromYAML 相同，但讀取 JSON。
func FromJSON(data []byte) (Settings, error) {
	s := Default()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return Settings{}, errs.WrapWithExtra(errs.NewWarn("decode json"), "failed to unmarshal settings json", err.Error())
	}
	if err := s.Validate(); err != nil {
		return Settings{}, errs.Wrap(err, "settings invalid")
	}
	return s, nil
}

// WriteYAML 輸出 YAML。
func (s Settings) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(s)
}

// key/value 欄位名稱，與頁面 localStorage 的鍵一一對應。
const (
	KeyRange       = "range"
	KeyPolicy      = "policy"
	KeyDelayMs     = "delay_ms"
	KeyManual      = "manual"
	KeyRollColor   = "roll_color"
	KeyCommitColor = "commit_color"
)

// ToKV 把設定攤平成字串 key/value，給 key/value 型的儲存層使用。
func (s Settings) ToKV() map[string]string {
	return map[string]string{
		KeyRange:       s.Range,
		KeyPolicy:      s.Policy.String(),
		KeyDelayMs:     strconv.Itoa(s.DelayMs),
		KeyManual:      strconv.FormatBool(s.Manual),
		KeyRollColor:   s.RollColor,
		KeyCommitColor: s.CommitColor,
	}
}

// FromKV 以預設值為底套用 key/value；缺少的鍵保留預設值，未知的鍵忽略。
func FromKV(kv map[string]string) (Settings, error) {
	s := Default()
	if v, ok := kv[KeyRange]; ok {
		s.Range = v
	}
	if v, ok := kv[KeyPolicy]; ok {
		p, err := draw.ParsePolicy(v)
		if err != nil {
			return Settings{}, err
		}
		s.Policy = p
	}
	if v, ok := kv[KeyDelayMs]; ok {
		d, err := strconv.Atoi(v)
		if err != nil {
			return Settings{}, errs.Warnf("delay_ms must be integer, got %q", v)
		}
		s.DelayMs = d
	}
	if v, ok := kv[KeyManual]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Settings{}, errs.Warnf("manual must be bool, got %q", v)
		}
		s.Manual = b
	}
	if v, ok := kv[KeyRollColor]; ok {
		s.RollColor = v
	}
	if v, ok := kv[KeyCommitColor]; ok {
		s.CommitColor = v
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
