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

// Package registry stores projects and their documents. Identity fields
// belong to the project owner, the verification flag to the verification
// authority and the transparency score to the scoring authority.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clearo-labs/clearo/address"
	"github.com/clearo-labs/clearo/auth"
	"github.com/clearo-labs/clearo/database"
	"github.com/clearo-labs/clearo/event"
)

type Config struct {
	Database     *database.Database
	Guard        *auth.Guard
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// Clock defaults to time.Now
	Clock   func() time.Time
	Program address.ProgramID
}

type Registry struct {
	db       *database.Database
	guard    *auth.Guard
	eventBus *event.EventBus
	logger   *slog.Logger
	metrics  *registryMetrics
	clock    func() time.Time
	program  address.ProgramID
}

func New(cfg Config) (*Registry, error) {
	if cfg.Database == nil {
		return nil, errors.New("registry requires a database")
	}
	if cfg.Guard == nil {
		return nil, errors.New("registry requires an authorization guard")
	}
	if cfg.Program.IsZero() {
		return nil, errors.New("registry requires a program id")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	r := &Registry{
		db:       cfg.Database,
		guard:    cfg.Guard,
		eventBus: cfg.EventBus,
		logger:   cfg.Logger.With("component", "registry"),
		clock:    cfg.Clock,
		program:  cfg.Program,
	}
	if cfg.PromRegistry != nil {
		r.initMetrics(cfg.PromRegistry)
	}
	return r, nil
}

func (r *Registry) Program() address.ProgramID {
	return r.program
}

// ProjectAddress derives the address of the project registered by owner
// under name
func (r *Registry) ProjectAddress(
	owner auth.Identity,
	name string,
) (address.Address, uint8) {
	return address.Derive(r.program, address.KindProject, owner[:], []byte(name))
}

// NameAddress derives the address of the alias reserving name for owner
func (r *Registry) NameAddress(
	owner auth.Identity,
	name string,
) (address.Address, uint8) {
	return address.Derive(r.program, address.KindProjectName, owner[:], []byte(name))
}

// DocumentAddress derives the address of the document with hash
func (r *Registry) DocumentAddress(
	project address.Address,
	hash string,
) (address.Address, uint8) {
	return address.Derive(
		r.program,
		address.KindDocument,
		project[:],
		[]byte(hash),
	)
}

// RegisterProject creates a project owned by the capability signer
func (r *Registry) RegisterProject(
	ctx context.Context,
	c auth.Capability,
	name string,
	description string,
) (addr address.Address, err error) {
	defer func() { r.observe(auth.OpRegisterProject, err) }()
	if err := checkBudget("name", name, MaxNameLength); err != nil {
		return address.Address{}, err
	}
	if err := checkBudget("description", description, MaxDescriptionLength); err != nil {
		return address.Address{}, err
	}
	msg := RegisterProjectMessage(r.program, name, description)
	owner := c.Signer()
	if err := r.guard.Check(c, msg, owner); err != nil {
		return address.Address{}, err
	}
	addr, bump := r.ProjectAddress(owner, name)
	now := r.clock().Unix()
	rec := ProjectRecord{
		Owner:       owner,
		SeedName:    name,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Bump:        bump,
	}
	data, err := database.EncodeRecord(&rec)
	if err != nil {
		return address.Address{}, err
	}
	err = r.db.UpdateRecords(ctx, func(_ context.Context, txn *database.Txn) error {
		// A project renamed to name holds it through an alias
		aliasAddr, _ := r.NameAddress(owner, name)
		taken, err := r.db.RecordExists(address.KindProjectName, aliasAddr, txn)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: name %q", database.ErrAddressCollision, name)
		}
		return r.db.CreateRecord(address.KindProject, addr, data, txn)
	})
	if err != nil {
		return address.Address{}, err
	}
	if r.metrics != nil {
		r.metrics.projects.Inc()
	}
	r.logger.Info(
		"project registered",
		"project", addr.String(),
		"owner", owner.String(),
		"name", name,
	)
	r.publish(ProjectRegisteredEventType, ProjectEvent{Address: addr, Record: rec})
	return addr, nil
}

// UpdateProject changes the name and/or description. A nil pointer leaves
// the field unchanged.
func (r *Registry) UpdateProject(
	ctx context.Context,
	c auth.Capability,
	project address.Address,
	name *string,
	description *string,
) (err error) {
	defer func() { r.observe(auth.OpUpdateProject, err) }()
	if name != nil {
		if err := checkBudget("name", *name, MaxNameLength); err != nil {
			return err
		}
	}
	if description != nil {
		if err := checkBudget("description", *description, MaxDescriptionLength); err != nil {
			return err
		}
	}
	msg := UpdateProjectMessage(r.program, project, name, description)
	var rec *ProjectRecord
	err = r.db.UpdateRecords(ctx, func(_ context.Context, txn *database.Txn) error {
		var err error
		rec, err = r.loadProject(project, txn)
		if err != nil {
			return err
		}
		if err := r.guard.Check(c, msg, rec.Owner); err != nil {
			return err
		}
		if name != nil && *name != rec.Name {
			if err := r.renameProject(project, rec, *name, txn); err != nil {
				return err
			}
			rec.Name = *name
		}
		if description != nil {
			rec.Description = *description
		}
		rec.UpdatedAt = r.clock().Unix()
		return r.storeProject(project, rec, txn)
	})
	if err != nil {
		return err
	}
	r.logger.Info("project updated", "project", project.String())
	r.publish(ProjectUpdatedEventType, ProjectEvent{Address: project, Record: *rec})
	return nil
}

// AddDocument appends a document to a project. A hash can be added to a
// project only once.
func (r *Registry) AddDocument(
	ctx context.Context,
	c auth.Capability,
	project address.Address,
	docType DocumentType,
	hash string,
	url string,
) (addr address.Address, err error) {
	defer func() { r.observe(auth.OpAddDocument, err) }()
	if !docType.Valid() {
		return address.Address{}, fmt.Errorf(
			"%w: %d",
			ErrInvalidDocumentType,
			uint8(docType),
		)
	}
	if err := checkBudget("hash", hash, MaxHashLength); err != nil {
		return address.Address{}, err
	}
	if err := checkBudget("url", url, MaxURLLength); err != nil {
		return address.Address{}, err
	}
	msg := AddDocumentMessage(r.program, project, docType, hash, url)
	addr, bump := r.DocumentAddress(project, hash)
	rec := DocumentRecord{
		Project: project,
		DocType: docType,
		Hash:    hash,
		URL:     url,
		Bump:    bump,
	}
	err = r.db.UpdateRecords(ctx, func(_ context.Context, txn *database.Txn) error {
		proj, err := r.loadProject(project, txn)
		if err != nil {
			return err
		}
		if err := r.guard.Check(c, msg, proj.Owner); err != nil {
			return err
		}
		rec.UploadedAt = r.clock().Unix()
		data, err := database.EncodeRecord(&rec)
		if err != nil {
			return err
		}
		return r.db.CreateRecord(address.KindDocument, addr, data, txn)
	})
	if err != nil {
		return address.Address{}, err
	}
	if r.metrics != nil {
		r.metrics.documents.Inc()
	}
	r.logger.Info(
		"document added",
		"project", project.String(),
		"document", addr.String(),
		"type", docType.String(),
	)
	r.publish(DocumentAddedEventType, DocumentEvent{Address: addr, Record: rec})
	return addr, nil
}

// SetVerified records the verification authority's decision. The
// verification time is stamped only on a false to true transition.
func (r *Registry) SetVerified(
	ctx context.Context,
	c auth.Capability,
	project address.Address,
	verified bool,
) (err error) {
	defer func() { r.observe(auth.OpSetVerified, err) }()
	msg := SetVerifiedMessage(r.program, project, verified)
	if err := r.guard.Check(c, msg, auth.Identity{}); err != nil {
		return err
	}
	var rec *ProjectRecord
	err = r.db.UpdateRecords(ctx, func(_ context.Context, txn *database.Txn) error {
		var err error
		rec, err = r.loadProject(project, txn)
		if err != nil {
			return err
		}
		if verified && !rec.Verified {
			rec.VerifiedAt = r.clock().Unix()
		}
		rec.Verified = verified
		return r.storeProject(project, rec, txn)
	})
	if err != nil {
		return err
	}
	r.logger.Info(
		"project verification set",
		"project", project.String(),
		"verified", verified,
	)
	r.publish(VerifiedSetEventType, ProjectEvent{Address: project, Record: *rec})
	return nil
}

// UpdateScore records the scoring authority's transparency score
func (r *Registry) UpdateScore(
	ctx context.Context,
	c auth.Capability,
	project address.Address,
	score uint8,
) (err error) {
	defer func() { r.observe(auth.OpUpdateScore, err) }()
	msg := UpdateScoreMessage(r.program, project, score)
	if err := r.guard.Check(c, msg, auth.Identity{}); err != nil {
		return err
	}
	var rec *ProjectRecord
	err = r.db.UpdateRecords(ctx, func(_ context.Context, txn *database.Txn) error {
		var err error
		rec, err = r.loadProject(project, txn)
		if err != nil {
			return err
		}
		rec.TransparencyScore = score
		rec.ScoreUpdatedAt = r.clock().Unix()
		return r.storeProject(project, rec, txn)
	})
	if err != nil {
		return err
	}
	r.logger.Info(
		"project score updated",
		"project", project.String(),
		"score", score,
	)
	r.publish(ScoreUpdatedEventType, ProjectEvent{Address: project, Record: *rec})
	return nil
}

// GetProject reads the project stored at addr
func (r *Registry) GetProject(
	ctx context.Context,
	addr address.Address,
) (*ProjectRecord, error) {
	var rec *ProjectRecord
	err := r.db.View(ctx, func(_ context.Context, txn *database.Txn) error {
		var err error
		rec, err = r.loadProject(addr, txn)
		return err
	})
	return rec, err
}

// LookupProject finds the project owner currently calls name, following
// renames
func (r *Registry) LookupProject(
	ctx context.Context,
	owner auth.Identity,
	name string,
) (address.Address, *ProjectRecord, error) {
	var addr address.Address
	var rec *ProjectRecord
	err := r.db.View(ctx, func(_ context.Context, txn *database.Txn) error {
		aliasAddr, _ := r.NameAddress(owner, name)
		data, err := r.db.GetRecord(address.KindProjectName, aliasAddr, txn)
		switch {
		case err == nil:
			var alias AliasRecord
			if err := database.DecodeRecord(data, &alias); err != nil {
				return err
			}
			addr = alias.Project
		case errors.Is(err, database.ErrRecordNotFound):
			addr, _ = r.ProjectAddress(owner, name)
		default:
			return err
		}
		rec, err = r.loadProject(addr, txn)
		if err != nil {
			return err
		}
		if rec.Name != name {
			return fmt.Errorf("%w: %q was renamed", ErrProjectNotFound, name)
		}
		return nil
	})
	if err != nil {
		return address.Address{}, nil, err
	}
	return addr, rec, nil
}

// ProjectOwner returns the owner of the project at addr
func (r *Registry) ProjectOwner(
	ctx context.Context,
	addr address.Address,
) (auth.Identity, error) {
	rec, err := r.GetProject(ctx, addr)
	if err != nil {
		return auth.Identity{}, err
	}
	return rec.Owner, nil
}

// GetDocument reads the document stored at addr
func (r *Registry) GetDocument(
	ctx context.Context,
	addr address.Address,
) (*DocumentRecord, error) {
	var rec DocumentRecord
	err := r.db.View(ctx, func(_ context.Context, txn *database.Txn) error {
		data, err := r.db.GetRecord(address.KindDocument, addr, txn)
		if err != nil {
			if errors.Is(err, database.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrDocumentNotFound, addr.String())
			}
			return err
		}
		if err := database.DecodeRecord(data, &rec); err != nil {
			return err
		}
		return address.Verify(
			addr,
			r.program,
			address.KindDocument,
			rec.Bump,
			rec.Project[:],
			[]byte(rec.Hash),
		)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *Registry) loadProject(
	addr address.Address,
	txn *database.Txn,
) (*ProjectRecord, error) {
	data, err := r.db.GetRecord(address.KindProject, addr, txn)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, addr.String())
		}
		return nil, err
	}
	var rec ProjectRecord
	if err := database.DecodeRecord(data, &rec); err != nil {
		return nil, err
	}
	if err := address.Verify(
		addr,
		r.program,
		address.KindProject,
		rec.Bump,
		rec.Owner[:],
		[]byte(rec.SeedName),
	); err != nil {
		return nil, err
	}
	return &rec, nil
}

// renameProject moves the name reservation of project to newName. A name
// other than the seed name is held by an alias record.
func (r *Registry) renameProject(
	project address.Address,
	rec *ProjectRecord,
	newName string,
	txn *database.Txn,
) error {
	aliasAddr, bump := r.NameAddress(rec.Owner, newName)
	taken, err := r.db.RecordExists(address.KindProjectName, aliasAddr, txn)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: name %q", database.ErrAddressCollision, newName)
	}
	if seedAddr, _ := r.ProjectAddress(rec.Owner, newName); seedAddr != project {
		other, err := r.loadProject(seedAddr, txn)
		switch {
		case err == nil && other.Name == newName:
			return fmt.Errorf("%w: name %q", database.ErrAddressCollision, newName)
		case err != nil && !errors.Is(err, ErrProjectNotFound):
			return err
		}
	}
	if newName != rec.SeedName {
		data, err := database.EncodeRecord(&AliasRecord{
			Owner:   rec.Owner,
			Name:    newName,
			Project: project,
			Bump:    bump,
		})
		if err != nil {
			return err
		}
		if err := r.db.CreateRecord(address.KindProjectName, aliasAddr, data, txn); err != nil {
			return err
		}
	}
	if rec.Name != rec.SeedName {
		oldAddr, _ := r.NameAddress(rec.Owner, rec.Name)
		err := r.db.DeleteRecord(address.KindProjectName, oldAddr, txn)
		if err != nil && !errors.Is(err, database.ErrRecordNotFound) {
			return err
		}
	}
	return nil
}

func (r *Registry) storeProject(
	addr address.Address,
	rec *ProjectRecord,
	txn *database.Txn,
) error {
	data, err := database.EncodeRecord(rec)
	if err != nil {
		return err
	}
	return r.db.UpdateRecord(address.KindProject, addr, data, txn)
}
