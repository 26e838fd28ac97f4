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

package stats

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/zintix-labs/drawlab/errs"
	"gopkg.in/yaml.v3"
)

// AuditReportRender 定義輸出行為
type AuditReportRender interface {
	Write(w io.Writer, r *AuditReport) error
}

// RenderByName 依名稱取得 render："text"（或空字串）、"json"、"yaml"。
func RenderByName(name string) (AuditReportRender, error) {
	switch strings.ToLower(name) {
	case "", "text", "table":
		return &TextAuditReportRender{}, nil
	case "json":
		return &JsonAuditReportRender{}, nil
	case "yaml", "yml":
		return &YAMLAuditReportRender{}, nil
	default:
		return nil, errs.Warnf("unknown report format %q", name)
	}
}

// 文字表格
type TextAuditReportRender struct{}

func (tr *TextAuditReportRender) Write(w io.Writer, r *AuditReport) error {
	_, err := io.WriteString(w, r.Table())
	return err
}

// Json渲染
type JsonAuditReportRender struct{}

func (jr *JsonAuditReportRender) Write(w io.Writer, r *AuditReport) error {
	return json.NewEncoder(w).Encode(r)
}

// YAML渲染
type YAMLAuditReportRender struct{}

func (yr *YAMLAuditReportRender) Write(w io.Writer, r *AuditReport) error {
	// Counts 可能上千筆，一維陣列一律輸出成 flow style：[..., ...]
	return forceReadableList(w, r)
}

// YAML 內層方法
func forceReadableList[T any](w io.Writer, t *T) error {
	var node yaml.Node
	if err := node.Encode(t); err != nil {
		return err
	}
	styleReadableSequences(&node)

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(&node)
}

// styleReadableSequences 把最內層的 sequence 改成 flow style，外層維度保持 block。
func styleReadableSequences(n *yaml.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case yaml.DocumentNode, yaml.MappingNode:
		for _, c := range n.Content {
			styleReadableSequences(c)
		}
	case yaml.SequenceNode:
		hasChildSeq := false
		for _, c := range n.Content {
			if c != nil && c.Kind == yaml.SequenceNode {
				hasChildSeq = true
			}
			styleReadableSequences(c)
		}
		if !hasChildSeq {
			n.Style = yaml.FlowStyle
		}
	}
}
