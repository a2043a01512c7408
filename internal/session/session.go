// Package session implements the per-record edit-session controller: it owns
// the lifecycle of one open edit panel, from working-copy construction
// through per-field edits to validated save and confirmed delete.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saborverde/opsboard/internal/binder"
	"github.com/saborverde/opsboard/internal/schema"
	"github.com/saborverde/opsboard/internal/transform"
	"github.com/saborverde/opsboard/model"
)

// State is the lifecycle state of an edit session.
type State string

const (
	StateClosed   State = "closed"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateSaving   State = "saving"
	StateDeleting State = "deleting"
)

// Hooks are the caller-supplied collaborators a session delegates mutations
// to. OnUpdate receives the original record and the validated payload;
// OnDelete receives the original record only, bypassing the transform and
// validation pipeline entirely. Any rejection must carry a human-readable
// message.
type Hooks struct {
	OnUpdate func(ctx context.Context, original model.Record, payload map[string]any) error
	OnDelete func(ctx context.Context, original model.Record) error
}

// Notifier receives exactly one user-facing notification per failure. No
// failure path is silently swallowed.
type Notifier interface {
	Notify(level string, message string)
}

// NopNotifier discards notifications. Useful for tests and headless callers.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(string, string) {}

// Session is the edit-session controller for one record.
//
// Save and Delete release the session lock while the collaborator call is in
// flight and re-check the session epoch on completion: a response that
// arrives after the panel was closed or reopened is discarded instead of
// mutating the successor session. While Saving or Deleting, further Save,
// Delete, and Edit calls are rejected, so the operations are not re-entrant
// within one session.
type Session struct {
	id       string
	rowID    string
	panel    model.PanelSpec
	gate     *schema.Gate
	hooks    Hooks
	notifier Notifier
	logger   *zap.Logger

	mu           sync.Mutex
	state        State
	epoch        uint64
	original     model.Record
	working      model.Record
	deleteArmed  bool
	lastActivity time.Time
}

// New creates a closed session for one row identity.
func New(rowID string, panel model.PanelSpec, hooks Hooks, notifier Notifier, logger *zap.Logger) *Session {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		id:       uuid.New().String(),
		rowID:    rowID,
		panel:    panel,
		gate:     schema.NewGate(panel.UpdateSchema),
		hooks:    hooks,
		notifier: notifier,
		logger:   logger,
		state:    StateClosed,
	}
}

// ID returns the session identity.
func (s *Session) ID() string { return s.id }

// RowID returns the row identity this session edits.
func (s *Session) RowID() string { return s.rowID }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActivity returns the time of the most recent open or edit. The zero
// time means the session never reached Ready.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// WorkingCopy returns the session-local editable snapshot, nil while closed.
func (s *Session) WorkingCopy() model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.working
}

// Open builds the working copy for the given record and moves the session to
// Ready. Re-opening on a different record discards any prior working copy
// unconditionally; there is no merge.
func (s *Session) Open(record model.Record) error {
	s.mu.Lock()
	s.discardLocked()
	s.state = StateLoading
	epoch := s.epoch
	panel := s.panel
	s.mu.Unlock()

	wc, err := transform.BuildWorkingCopy(panel, record)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return &model.ErrorEnvelope{Code: model.ErrSessionStale, Message: "the edit session was superseded while opening"}
	}

	if err != nil {
		s.state = StateClosed
		s.logger.Error("working copy construction failed",
			zap.String("row_id", s.rowID), zap.Error(err))
		s.notifier.Notify("error", "The record could not be opened for editing")
		return err
	}

	s.original = record
	s.working = wc
	s.state = StateReady
	s.lastActivity = time.Now()
	return nil
}

// Edit writes an edited value into the working copy. No validation happens
// here; invalid intermediate states are allowed while editing. The original
// record is never touched.
func (s *Session) Edit(fieldName string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return model.NewSessionNotReadyError(string(s.state))
	}
	binder.Set(s.working, fieldName, value)
	s.lastActivity = time.Now()
	return nil
}

// Save assembles the submission object, runs the validation gate, and
// delegates to the caller's update hook. On success the cache-invalidation
// hook fires and the session closes. On any failure the session returns to
// Ready with its working copy untouched and exactly one notification is
// emitted; nothing is rolled back automatically.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return model.NewSessionNotReadyError(string(s.state))
	}
	s.state = StateSaving
	epoch := s.epoch
	panel := s.panel
	working := s.working
	original := s.original
	s.mu.Unlock()

	err := s.doSave(ctx, panel, working, original)

	s.mu.Lock()
	defer s.mu.Unlock()

	// A completion for a stale epoch belongs to a session that was closed or
	// reopened while the request was in flight; it must not touch the live
	// session.
	if s.epoch != epoch {
		s.logger.Warn("discarding stale save completion",
			zap.String("row_id", s.rowID), zap.Uint64("epoch", epoch))
		return &model.ErrorEnvelope{Code: model.ErrSessionStale, Message: "the edit session was closed while saving"}
	}

	if err != nil {
		s.state = StateReady
		s.notifySaveFailure(err)
		return err
	}

	if panel.Invalidate != nil {
		panel.Invalidate()
	}
	s.discardLocked()
	return nil
}

func (s *Session) doSave(ctx context.Context, panel model.PanelSpec, working, original model.Record) error {
	submission, err := transform.BuildSubmission(panel, working)
	if err != nil {
		s.logger.Error("submission assembly failed",
			zap.String("row_id", s.rowID), zap.Error(err))
		return err
	}

	if err := s.gate.Validate(submission); err != nil {
		return err
	}

	if s.hooks.OnUpdate == nil {
		return model.NewBadRequestError("editing is not enabled for this table")
	}
	return s.hooks.OnUpdate(ctx, original, submission)
}

// ArmDelete is the first half of the two-step delete commit. Delete refuses
// to run until the session has been armed.
func (s *Session) ArmDelete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return model.NewSessionNotReadyError(string(s.state))
	}
	s.deleteArmed = true
	return nil
}

// Delete executes a confirmed deletion, delegating the original record to
// the caller's delete hook. The transform and validation pipeline is
// bypassed. On success the cache-invalidation hook fires and the session
// closes; on failure the session returns to Ready.
func (s *Session) Delete(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return model.NewSessionNotReadyError(string(s.state))
	}
	if !s.deleteArmed {
		s.mu.Unlock()
		return model.NewConfirmationNeededError()
	}
	if s.hooks.OnDelete == nil {
		s.mu.Unlock()
		return model.NewBadRequestError("deletion is not enabled for this table")
	}
	s.state = StateDeleting
	epoch := s.epoch
	panel := s.panel
	original := s.original
	s.mu.Unlock()

	err := s.hooks.OnDelete(ctx, original)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		s.logger.Warn("discarding stale delete completion",
			zap.String("row_id", s.rowID), zap.Uint64("epoch", epoch))
		return &model.ErrorEnvelope{Code: model.ErrSessionStale, Message: "the edit session was closed while deleting"}
	}

	if err != nil {
		s.state = StateReady
		s.deleteArmed = false
		s.notifier.Notify("error", userMessage(err, "The record could not be deleted"))
		return err
	}

	if panel.Invalidate != nil {
		panel.Invalidate()
	}
	s.discardLocked()
	return nil
}

// Close discards the working copy regardless of whether a save occurred.
// An in-flight save or delete is not cancelled; its completion will find a
// bumped epoch and be ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardLocked()
}

// Describe renders the session into a PanelDescriptor with each field's
// current edit value.
func (s *Session) Describe() model.PanelDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()

	desc := model.PanelDescriptor{
		SessionID: s.id,
		RowID:     s.rowID,
		State:     string(s.state),
	}
	if s.state == StateClosed {
		return desc
	}

	if s.panel.Title != nil {
		desc.Title = s.panel.Title(s.original)
	}
	if s.panel.Description != nil {
		desc.Description = s.panel.Description(s.original)
	}

	for _, f := range s.panel.Fields {
		value, _ := binder.Get(s.working, f.Name)

		fd := model.FieldDescriptor{
			Name:       f.Name,
			Label:      f.Label,
			Kind:       f.Kind,
			ColSpan:    f.ColSpan,
			Value:      value,
			IsEditable: true,
			Options:    f.Options,
		}
		if wrapped, ok := value.(model.Editable); ok {
			fd.Value = wrapped.Value
			fd.IsEditable = wrapped.IsEditable
		}
		if f.Kind == model.FieldCustom && f.View != nil {
			fd.Control = f.View(value)
		}
		desc.Fields = append(desc.Fields, fd)
	}
	return desc
}

// discardLocked clears session state and bumps the epoch so any in-flight
// completion is orphaned. Callers must hold s.mu.
func (s *Session) discardLocked() {
	s.epoch++
	s.original = nil
	s.working = nil
	s.deleteArmed = false
	s.state = StateClosed
}

// notifySaveFailure emits exactly one notification per failed save, shaped
// by the failure kind.
func (s *Session) notifySaveFailure(err error) {
	var ee *model.ErrorEnvelope
	if errors.As(err, &ee) {
		switch ee.Code {
		case model.ErrValidationError:
			s.notifier.Notify("warning", "Some fields are invalid; review the highlighted values")
			return
		case model.ErrTransformError:
			s.notifier.Notify("error", "The record could not be saved")
			return
		}
	}
	s.notifier.Notify("error", userMessage(err, "The record could not be saved"))
}

// userMessage prefers the collaborator's human-readable message and falls
// back to a generic one.
func userMessage(err error, fallback string) string {
	var ee *model.ErrorEnvelope
	if errors.As(err, &ee) && ee.Message != "" {
		return ee.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}
