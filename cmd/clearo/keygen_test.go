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

package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearo-labs/clearo/keystore"
)

func TestKeygenCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owner.skey")
	cmd := keygenCommand()
	cmd.SetArgs([]string{"--out", path, "--description", "owner"})
	require.NoError(t, cmd.Execute())

	key, err := keystore.LoadKeyFile(path)
	require.NoError(t, err)
	assert.Equal(t, "owner", key.Description())

	// Existing key files are never overwritten
	cmd = keygenCommand()
	cmd.SetArgs([]string{"--out", path})
	require.Error(t, cmd.Execute())
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", formatTime(0))
	assert.Equal(t, "2023-11-14T22:13:20Z", formatTime(1_700_000_000))
}
