//go:build windows

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

package keystore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckDACL(t *testing.T) {
	testDefs := []struct {
		name   string
		sddl   string
		secure bool
	}{
		{"owner only", "O:BAD:P(A;;FA;;;SY)(A;;FA;;;BA)(A;;FA;;;S-1-5-21-1-2-3-1001)", true},
		{"everyone", "D:(A;;FR;;;WD)", false},
		{"users by sid", "D:(A;;FR;;;S-1-5-32-545)", false},
		{"deny everyone", "D:(D;;FA;;;WD)(A;;FA;;;SY)", true},
		{"sacl ignored", "D:(A;;FA;;;SY)S:(AU;SA;FA;;;WD)", true},
		{"no dacl", "O:BA", false},
	}
	for _, testDef := range testDefs {
		err := checkDACL("key.skey", testDef.sddl)
		if testDef.secure {
			require.NoError(t, err, testDef.name)
		} else {
			require.ErrorIs(t, err, ErrInsecureFileMode, testDef.name)
		}
	}
}
