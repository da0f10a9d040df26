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
	"github.com/clearo-labs/clearo/event"
)

const (
	ProjectRegisteredEventType event.EventType = "registry.project_registered"
	ProjectUpdatedEventType    event.EventType = "registry.project_updated"
	DocumentAddedEventType     event.EventType = "registry.document_added"
	VerifiedSetEventType       event.EventType = "registry.verified_set"
	ScoreUpdatedEventType      event.EventType = "registry.score_updated"
)

// ProjectEvent carries a project record after a committed change
type ProjectEvent struct {
	Address address.Address
	Record  ProjectRecord
}

// DocumentEvent carries a newly added document
type DocumentEvent struct {
	Address address.Address
	Record  DocumentRecord
}

func (r *Registry) publish(eventType event.EventType, data any) {
	if r.eventBus == nil {
		return
	}
	r.eventBus.Publish(eventType, event.NewEvent(eventType, data))
}
