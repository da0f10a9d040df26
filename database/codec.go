// Copyright 2026 Clearo Labs
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

package database

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var ErrRecordDecode = errors.New("malformed record")

var (
	recordEncMode cbor.EncMode
	recordDecMode cbor.DecMode
)

func init() {
	var err error
	// Deterministic encoding so an unchanged record is byte-identical
	recordEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("record encoder: %s", err))
	}
	recordDecMode, err = cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("record decoder: %s", err))
	}
}

// EncodeRecord serializes a record struct. Record types declare the
// toarray option so their layout is fixed by field order.
func EncodeRecord(v any) ([]byte, error) {
	data, err := recordEncMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// DecodeRecord parses data produced by EncodeRecord into v
func DecodeRecord(data []byte, v any) error {
	if err := recordDecMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrRecordDecode, err)
	}
	return nil
}
