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

package store

import (
	"encoding/json"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/zintix-labs/drawlab/draw"
	"github.com/zintix-labs/drawlab/errs"
)

// 快照格式：zstd(JSON(draw.State))。
// 週期剛開始時 drawn 接近 1e6 個整數，JSON 可壓到原本的一小部分。

var (
	encOnce  sync.Once
	enc      *zstd.Encoder
	dec      *zstd.Decoder
	codecErr error
)

func codec() (*zstd.Encoder, *zstd.Decoder, error) {
	encOnce.Do(func() {
		enc, codecErr = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderConcurrency(1),
		)
		if codecErr != nil {
			return
		}
		dec, codecErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	})
	return enc, dec, codecErr
}

// EncodeSnapshot 序列化並壓縮快照。EncodeAll/DecodeAll 可以併發使用。
func EncodeSnapshot(st *draw.State) ([]byte, error) {
	if st == nil {
		return nil, errNilState
	}
	e, _, err := codec()
	if err != nil {
		return nil, errs.Wrap(err, "init zstd codec")
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, errs.Wrap(err, "marshal snapshot")
	}
	return e.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

// DecodeSnapshot 解壓並反序列化快照。內容是否合法由 draw.Engine.Restore 檢查。
func DecodeSnapshot(blob []byte) (*draw.State, error) {
	_, d, err := codec()
	if err != nil {
		return nil, errs.Wrap(err, "init zstd codec")
	}
	raw, err := d.DecodeAll(blob, nil)
	if err != nil {
		return nil, errs.WrapWithExtra(draw.ErrBadState, "decompress snapshot", err.Error())
	}
	st := &draw.State{}
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, errs.WrapWithExtra(draw.ErrBadState, "unmarshal snapshot", err.Error())
	}
	return st, nil
}
