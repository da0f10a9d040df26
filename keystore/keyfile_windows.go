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
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sys/windows"
)

// Set CLEARO_ALLOW_INSECURE_KEY_PERMS=true to skip the ACL check after
// verifying the key file ACLs by hand
const envAllowInsecureKeyPerms = "CLEARO_ALLOW_INSECURE_KEY_PERMS"

// Trustees that must not be granted access to a key file, by SDDL alias
// and by SID string
var broadTrustees = map[string]string{
	"WD":           "Everyone",
	"S-1-1-0":      "Everyone",
	"BU":           "BUILTIN\\Users",
	"S-1-5-32-545": "BUILTIN\\Users",
	"AU":           "Authenticated Users",
	"S-1-5-11":     "Authenticated Users",
}

// checkOpenFilePermissions rejects key files whose DACL grants access to
// a broad group. NTFS keeps an open file from being replaced, so checking
// by name after opening does not race the read.
func checkOpenFilePermissions(f *os.File) error {
	if strings.EqualFold(os.Getenv(envAllowInsecureKeyPerms), "true") {
		slog.Warn(
			"key file ACL verification bypassed",
			"path", f.Name(),
			"env_var", envAllowInsecureKeyPerms,
		)
		return nil
	}
	sd, err := windows.GetNamedSecurityInfo(
		f.Name(),
		windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION,
	)
	if err != nil {
		return fmt.Errorf("failed to read ACL of key file %q: %w", f.Name(), err)
	}
	// The descriptor is not freed: releasing it needs unsafe and this
	// runs once per key file at startup
	return checkDACL(f.Name(), sd.String())
}

// checkDACL inspects the allow entries of the DACL section of an SDDL
// string
func checkDACL(path string, sddl string) error {
	_, dacl, ok := strings.Cut(sddl, "D:")
	if !ok {
		return fmt.Errorf(
			"key file %q has no DACL: %w",
			path,
			ErrInsecureFileMode,
		)
	}
	dacl, _, _ = strings.Cut(dacl, "S:")
	for {
		_, rest, ok := strings.Cut(dacl, "(")
		if !ok {
			return nil
		}
		ace, rest, ok := strings.Cut(rest, ")")
		if !ok {
			return nil
		}
		dacl = rest
		// type;flags;rights;object;inherit;trustee
		fields := strings.Split(ace, ";")
		if len(fields) < 6 || fields[0] != "A" {
			continue
		}
		if name, ok := broadTrustees[fields[5]]; ok {
			return fmt.Errorf(
				"key file %q grants access to %s: %w",
				path,
				name,
				ErrInsecureFileMode,
			)
		}
	}
}
