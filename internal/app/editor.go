package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"sitecopy/api/internal/content"
	"sitecopy/api/internal/editor"
)

type SetFieldInput struct {
	content.Descriptor
	Value *string `json:"value" validate:"required"`
}

// ArrayTarget is the wire form of content.ArrayPath.
type ArrayTarget struct {
	Section  string `json:"section" validate:"required"`
	Sequence string `json:"sequence" validate:"required"`
	Element  *int   `json:"element,omitempty"`
	Field    string `json:"field,omitempty"`
}

func (t ArrayTarget) path() content.ArrayPath {
	return content.ArrayPath{Section: t.Section, Sequence: t.Sequence, Element: t.Element, Field: t.Field}
}

type ReplaceArrayInput struct {
	ArrayTarget
	Items json.RawMessage `json:"items" validate:"required"`
}

type ReplaceListInput struct {
	ArrayTarget
	Text *string `json:"text" validate:"required"`
}

// SaveResult reports whether a save wrote anything. Saved is false when the
// draft had no pending edits.
type SaveResult struct {
	Saved    bool            `json:"saved"`
	Snapshot editor.Snapshot `json:"editor"`
}

func (s *Service) Editor(ctx context.Context, sess Session) (editor.Snapshot, error) {
	ed, err := s.editorFor(ctx, sess)
	if err != nil {
		return editor.Snapshot{}, err
	}
	return ed.Snapshot(), nil
}

func (s *Service) SetField(ctx context.Context, sess Session, input SetFieldInput) (editor.Snapshot, error) {
	path, err := content.ParseDescriptor(input.Descriptor)
	if err != nil {
		s.recordMutation("field", input.Section+"."+input.Field, err)
		return editor.Snapshot{}, err
	}
	return s.apply(ctx, sess, "field", path.String(), content.Set(path, *input.Value))
}

func (s *Service) ReplaceArray(ctx context.Context, sess Session, input ReplaceArrayInput) (editor.Snapshot, error) {
	path := input.path()
	return s.apply(ctx, sess, "array", path.String(), content.Replace(path, input.Items))
}

func (s *Service) ReplaceList(ctx context.Context, sess Session, input ReplaceListInput) (editor.Snapshot, error) {
	path := input.path()
	return s.apply(ctx, sess, "list", path.String(), content.ReplaceList(path, *input.Text))
}

func (s *Service) apply(ctx context.Context, sess Session, kind, path string, mutate content.Mutation) (editor.Snapshot, error) {
	ed, err := s.editorFor(ctx, sess)
	if err != nil {
		return editor.Snapshot{}, err
	}
	err = ed.Apply(mutate)
	s.recordMutation(kind, path, err)
	if err != nil {
		return editor.Snapshot{}, err
	}
	return ed.Snapshot(), nil
}

func (s *Service) recordMutation(kind, path string, err error) {
	var mismatch *content.TypeMismatchError
	switch {
	case err == nil:
		s.metrics.Mutation(kind, "ok")
	case errors.As(err, &mismatch):
		s.metrics.Mutation(kind, "rejected")
		s.logger.Warn("draft mutation type mismatch",
			zap.String("kind", kind),
			zap.String("path", mismatch.Path),
			zap.String("target", mismatch.Target),
			zap.String("value", mismatch.Value),
		)
	case content.IsRejected(err):
		s.metrics.Mutation(kind, "rejected")
		s.logger.Debug("draft mutation rejected", zap.String("kind", kind), zap.String("path", path), zap.Error(err))
	default:
		s.metrics.Mutation(kind, "error")
	}
}

// Save commits the draft. The draft survives a failed write unchanged; after a
// successful write the last-edited marker, history and search index are
// updated best-effort.
func (s *Service) Save(ctx context.Context, sess Session) (SaveResult, error) {
	ed, err := s.editorFor(ctx, sess)
	if err != nil {
		return SaveResult{}, err
	}
	// A client that goes away mid-save must not abort the write.
	ctx = context.WithoutCancel(ctx)

	saver := editor.SaverFunc(func(ctx context.Context, doc content.Document) (time.Time, error) {
		started := time.Now()
		savedAt, err := s.store.Save(ctx, doc)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		s.metrics.Save(outcome, time.Since(started))
		return savedAt, err
	})

	saved, err := ed.Save(ctx, saver)
	snapshot := ed.Snapshot()
	if err != nil {
		if !errors.Is(err, editor.ErrSaveInFlight) {
			s.logger.Error("save content", zap.String("session_id", sess.ID), zap.Error(err))
		}
		return SaveResult{Snapshot: snapshot}, err
	}
	if saved {
		s.afterSave(ctx, snapshot)
	}
	return SaveResult{Saved: saved, Snapshot: snapshot}, nil
}

func (s *Service) afterSave(ctx context.Context, snapshot editor.Snapshot) {
	if snapshot.LastSavedAt != nil {
		if err := s.sessions.RecordLastEdited(ctx, *snapshot.LastSavedAt); err != nil {
			s.logger.Warn("record last edited", zap.Error(err))
		}
	}
	if s.history != nil {
		if commit, created, err := s.history.Record(snapshot.Committed, "", ""); err != nil {
			s.logger.Warn("record publish history", zap.Error(err))
		} else if created {
			s.logger.Info("recorded publish history", zap.String("commit", commit.ShortHash))
		}
	}
	s.search.Index(snapshot.Committed)
}

// Reload fetches the committed document again. Pending edits are kept.
func (s *Service) Reload(ctx context.Context, sess Session) (editor.Snapshot, error) {
	ed, err := s.editorFor(ctx, sess)
	if err != nil {
		return editor.Snapshot{}, err
	}
	record, err := s.Content(ctx)
	if err != nil {
		return editor.Snapshot{}, err
	}
	if err := ed.Reload(record.Document); err != nil {
		return editor.Snapshot{}, err
	}
	return ed.Snapshot(), nil
}
