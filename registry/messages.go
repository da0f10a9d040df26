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

package registry

import (
	"github.com/clearo-labs/clearo/address"
	"github.com/clearo-labs/clearo/auth"
)

// The message builders below define what a signer commits to for each
// registry operation. Clients sign the same message the registry checks.

func RegisterProjectMessage(
	program address.ProgramID,
	name string,
	description string,
) auth.Message {
	return auth.NewMessage(
		auth.OpRegisterProject,
		program,
		[]byte(name),
		[]byte(description),
	)
}

func UpdateProjectMessage(
	program address.ProgramID,
	project address.Address,
	name *string,
	description *string,
) auth.Message {
	return auth.NewMessage(
		auth.OpUpdateProject,
		program,
		project.Bytes(),
		optionalParam(name),
		optionalParam(description),
	)
}

func AddDocumentMessage(
	program address.ProgramID,
	project address.Address,
	docType DocumentType,
	hash string,
	url string,
) auth.Message {
	return auth.NewMessage(
		auth.OpAddDocument,
		program,
		project.Bytes(),
		[]byte{byte(docType)},
		[]byte(hash),
		[]byte(url),
	)
}

func SetVerifiedMessage(
	program address.ProgramID,
	project address.Address,
	verified bool,
) auth.Message {
	flag := []byte{0}
	if verified {
		flag[0] = 1
	}
	return auth.NewMessage(auth.OpSetVerified, program, project.Bytes(), flag)
}

func UpdateScoreMessage(
	program address.ProgramID,
	project address.Address,
	score uint8,
) auth.Message {
	return auth.NewMessage(
		auth.OpUpdateScore,
		program,
		project.Bytes(),
		[]byte{score},
	)
}

// An absent value and an empty string sign differently
func optionalParam(value *string) []byte {
	if value == nil {
		return []byte{0}
	}
	return append([]byte{1}, *value...)
}
