package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sakif/eduqa/internal/apperror"
	"github.com/sakif/eduqa/internal/model"
)

// =========================================================================
// CATEGORIES
// =========================================================================

func TestCategory_CreateAndList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c, err := env.category.Create(ctx, CreateCategoryInput{Name: "  Astronomy "})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if c.Name != "Astronomy" {
		t.Errorf("Name = %q, want trimmed", c.Name)
	}

	if _, err := env.category.Create(ctx, CreateCategoryInput{Name: "astronomy"}); !errors.Is(err, ErrDuplicateCategory) {
		t.Errorf("duplicate error = %v, want ErrDuplicateCategory", err)
	}
	if _, err := env.category.Create(ctx, CreateCategoryInput{Name: strings.Repeat("x", 51)}); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("long name error = %v, want validation", err)
	}

	cats, err := env.category.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(cats) != 4 {
		t.Errorf("List() returned %d categories, want 4", len(cats))
	}
}

func TestCategory_TogglePreference(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "alice@x.com", "pw1")
	ctx := context.Background()

	change, err := env.category.TogglePreference(ctx, alice.User.ID, TogglePreferenceInput{CategoryID: "subj-physics"})
	if err != nil {
		t.Fatalf("TogglePreference() error = %v", err)
	}
	if !change.Preferred || change.Message != "Physics added to preferred categories." {
		t.Errorf("add = %+v", change)
	}
	want := []model.Category{{ID: "subj-physics", Name: "Physics"}}
	if diff := cmp.Diff(want, change.PreferredCategories); diff != "" {
		t.Errorf("preferences mismatch (-want +got):\n%s", diff)
	}

	change, err = env.category.TogglePreference(ctx, alice.User.ID, TogglePreferenceInput{CategoryID: "subj-physics"})
	if err != nil {
		t.Fatalf("second TogglePreference() error = %v", err)
	}
	if change.Preferred || len(change.PreferredCategories) != 0 {
		t.Errorf("remove = %+v", change)
	}

	if _, err := env.category.TogglePreference(ctx, alice.User.ID, TogglePreferenceInput{CategoryID: "nope"}); !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("unknown category error = %v, want ErrCategoryNotFound", err)
	}
	if _, err := env.category.TogglePreference(ctx, "ghost", TogglePreferenceInput{CategoryID: "subj-physics"}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user error = %v, want ErrUserNotFound", err)
	}
}

// =========================================================================
// QUESTIONS
// =========================================================================

func TestQuestion_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "alice@x.com", "pw1")

	tests := []struct {
		name  string
		in    QuestionInput
		field string
	}{
		{"empty content", QuestionInput{Content: "   ", Subject: "subj-physics"}, "content"},
		{"long content", QuestionInput{Content: strings.Repeat("a", 301), Subject: "subj-physics"}, "content"},
		{"missing subject", QuestionInput{Content: "q"}, "subject"},
		{"unknown subject", QuestionInput{Content: "q", Subject: "subj-astrology"}, "subject"},
		{"too many tags", QuestionInput{Content: "q", Subject: "subj-physics", Tags: []string{"Algebra", "Equations", "Grammar", "Economics"}}, "tags"},
		{"unknown tag", QuestionInput{Content: "q", Subject: "subj-physics", Tags: []string{"Alchemy"}}, "tags"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.questions.Create(context.Background(), alice.User.ID, tt.in)
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("error = %v, want validation", err)
			}
			if appErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.field)
			}
		})
	}
}

func TestQuestion_CreatePopulates(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "alice@x.com", "pw1")

	q, err := env.questions.Create(context.Background(), alice.User.ID, QuestionInput{
		Content: "What is inertia?",
		Subject: "subj-physics",
		Tags:    []string{"Newtonian", "Newtonian"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if q.Subject.Name != "Physics" || q.Author.Username != "alice" {
		t.Errorf("populated fields = subject %+v author %+v", q.Subject, q.Author)
	}
	if diff := cmp.Diff([]string{"Newtonian"}, q.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
}

func TestQuestion_OwnershipChecks(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "alice@x.com", "pw1")
	bob := env.register(t, "bob", "bob@x.com", "pw1")
	ctx := context.Background()

	q, err := env.questions.Create(ctx, alice.User.ID, QuestionInput{Content: "original", Subject: "subj-physics", Tags: []string{"Newtonian"}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	upd := QuestionInput{Content: "edited", Subject: "subj-biology"}
	if _, err := env.questions.Update(ctx, bob.User.ID, q.ID, upd); !errors.Is(err, ErrNotOwner) || !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("non-owner Update() error = %v, want forbidden", err)
	}
	if err := env.questions.Delete(ctx, bob.User.ID, q.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("non-owner Delete() error = %v, want forbidden", err)
	}

	got, err := env.questions.Update(ctx, alice.User.ID, q.ID, upd)
	if err != nil {
		t.Fatalf("owner Update() error = %v", err)
	}
	if got.Content != "edited" || got.Subject.Name != "Biology" {
		t.Errorf("after update: %+v", got)
	}
	if diff := cmp.Diff([]string{"Newtonian"}, got.Tags); diff != "" {
		t.Errorf("omitted tags should be kept (-want +got):\n%s", diff)
	}

	if err := env.questions.Delete(ctx, alice.User.ID, q.ID); err != nil {
		t.Fatalf("owner Delete() error = %v", err)
	}
	if _, err := env.questions.Get(ctx, q.ID); !errors.Is(err, ErrQuestionNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrQuestionNotFound", err)
	}
}

func TestQuestion_List(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "alice@x.com", "pw1")
	ctx := context.Background()

	for _, in := range []QuestionInput{
		{Content: "Solve 2x=4", Subject: "subj-mathematics", Tags: []string{"Algebra", "Equations"}},
		{Content: "Factor x^2", Subject: "subj-mathematics", Tags: []string{"Algebra"}},
		{Content: "Photosynthesis?", Subject: "subj-biology"},
	} {
		if _, err := env.questions.Create(ctx, alice.User.ID, in); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	qs, err := env.questions.List(ctx, ListInput{Tags: []string{"Algebra", " Equations "}})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(qs) != 1 || qs[0].Content != "Solve 2x=4" {
		t.Errorf("tag filter = %+v", qs)
	}

	qs, _ = env.questions.List(ctx, ListInput{})
	if len(qs) != 3 || qs[0].Content != "Photosynthesis?" {
		t.Errorf("List() should return newest first, got %+v", qs)
	}
}

// =========================================================================
// TIMELINE
// =========================================================================

func TestTimeline_NoPreferences(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "alice@x.com", "pw1")

	qs, err := env.questions.Timeline(context.Background(), alice.User.ID, TimelineInput{})
	if !errors.Is(err, ErrNoPreferences) || !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Timeline() error = %v, want ErrNoPreferences", err)
	}
	if qs != nil {
		t.Errorf("Timeline() returned %v alongside the error", qs)
	}
}

func TestTimeline_FiltersByPreferences(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "alice@x.com", "pw1")
	bob := env.register(t, "bob", "bob@x.com", "pw1")
	ctx := context.Background()

	for _, in := range []QuestionInput{
		{Content: "physics 1", Subject: "subj-physics"},
		{Content: "biology 1", Subject: "subj-biology"},
		{Content: "physics 2", Subject: "subj-physics"},
		{Content: "maths 1", Subject: "subj-mathematics"},
	} {
		if _, err := env.questions.Create(ctx, bob.User.ID, in); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	for _, id := range []string{"subj-physics", "subj-biology"} {
		if _, err := env.category.TogglePreference(ctx, alice.User.ID, TogglePreferenceInput{CategoryID: id}); err != nil {
			t.Fatalf("TogglePreference() error = %v", err)
		}
	}

	qs, err := env.questions.Timeline(ctx, alice.User.ID, TimelineInput{})
	if err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}
	got := make([]string, len(qs))
	for i, q := range qs {
		got[i] = q.Content
	}
	if diff := cmp.Diff([]string{"physics 2", "biology 1", "physics 1"}, got); diff != "" {
		t.Errorf("Timeline() mismatch (-want +got):\n%s", diff)
	}
}
