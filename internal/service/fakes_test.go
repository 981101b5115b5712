package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/eduqa/internal/apperror"
	"github.com/sakif/eduqa/internal/auth"
	"github.com/sakif/eduqa/internal/model"
	"github.com/sakif/eduqa/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore keeps users, categories and questions in maps and implements
// the three repository interfaces. Uniqueness mirrors the real unique
// indexes: email and username compare case-insensitively.

type fakeStore struct {
	mu         sync.Mutex
	users      map[string]*model.User
	categories map[string]*model.Category
	questions  map[string]*model.Question
	nextID     int
	clock      time.Time

	// set to simulate a database failure
	failWith error
}

func newFakeStore() *fakeStore {
	s := &fakeStore{
		users:      make(map[string]*model.User),
		categories: make(map[string]*model.Category),
		questions:  make(map[string]*model.Question),
		clock:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, name := range []string{"Mathematics", "Biology", "Physics"} {
		id := "subj-" + strings.ToLower(name)
		s.categories[id] = &model.Category{ID: id, Name: name}
	}
	return s
}

func (s *fakeStore) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

// tick returns strictly increasing timestamps so ordering is deterministic.
func (s *fakeStore) tick() time.Time {
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

func (s *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	for _, other := range s.users {
		if strings.EqualFold(other.Email, u.Email) {
			return repository.ErrDuplicateEmail
		}
		if strings.EqualFold(other.Username, u.Username) {
			return repository.ErrDuplicateUsername
		}
	}
	u.ID = s.id("user")
	u.CreatedAt = s.tick()
	u.UpdatedAt = u.CreatedAt
	if u.Avatar == "" {
		u.Avatar = model.DefaultAvatar
	}
	u.PreferredCategories = []string{}
	stored := *u
	s.users[u.ID] = &stored
	return nil
}

func (s *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	u, ok := s.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	cp.PreferredCategories = slices.Clone(u.PreferredCategories)
	return &cp, nil
}

func (s *fakeStore) find(match func(*model.User) bool, label string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	for _, u := range s.users {
		if match(u) {
			cp := *u
			cp.PreferredCategories = slices.Clone(u.PreferredCategories)
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", label)
}

func (s *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return s.find(func(u *model.User) bool { return strings.EqualFold(u.Email, strings.TrimSpace(email)) }, email)
}

func (s *fakeStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	return s.find(func(u *model.User) bool { return strings.EqualFold(u.Username, strings.TrimSpace(username)) }, username)
}

func (s *fakeStore) UpdateProfile(ctx context.Context, id string, upd repository.UserUpdate) (*model.User, error) {
	s.mu.Lock()
	u, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		return nil, apperror.NotFound("user", id)
	}
	for _, other := range s.users {
		if other.ID == id {
			continue
		}
		if upd.Email != nil && strings.EqualFold(other.Email, *upd.Email) {
			s.mu.Unlock()
			return nil, repository.ErrDuplicateEmail
		}
		if upd.Username != nil && strings.EqualFold(other.Username, *upd.Username) {
			s.mu.Unlock()
			return nil, repository.ErrDuplicateUsername
		}
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Verified != nil {
		u.Verified = *upd.Verified
	}
	if upd.Gender != nil {
		u.Gender = *upd.Gender
	}
	if upd.ClassGrade != nil {
		u.ClassGrade = *upd.ClassGrade
	}
	if upd.SchoolName != nil {
		u.SchoolName = *upd.SchoolName
	}
	if upd.Age != nil {
		u.Age = *upd.Age
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	if upd.Avatar != nil {
		u.Avatar = *upd.Avatar
	}
	if upd.Notifications != nil {
		u.Notifications = *upd.Notifications
	}
	u.UpdatedAt = s.tick()
	s.mu.Unlock()
	return s.GetUserByID(ctx, id)
}

func (s *fakeStore) mutate(id string, fn func(*model.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	u, ok := s.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	fn(u)
	return nil
}

func (s *fakeStore) SetPasswordHash(_ context.Context, id, hash string) error {
	return s.mutate(id, func(u *model.User) { u.PasswordHash = hash })
}

func (s *fakeStore) SetVerified(_ context.Context, id string, verified bool) error {
	return s.mutate(id, func(u *model.User) { u.Verified = verified })
}

func (s *fakeStore) SetRole(_ context.Context, id string, role model.Role) error {
	return s.mutate(id, func(u *model.User) { u.Role = role })
}

func (s *fakeStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return s.mutate(id, func(u *model.User) { u.LastLogin = &at })
}

func (s *fakeStore) TogglePreferredCategory(_ context.Context, userID, categoryID string) (bool, error) {
	var preferred bool
	err := s.mutate(userID, func(u *model.User) {
		if i := slices.Index(u.PreferredCategories, categoryID); i >= 0 {
			u.PreferredCategories = slices.Delete(u.PreferredCategories, i, i+1)
			return
		}
		u.PreferredCategories = append(u.PreferredCategories, categoryID)
		preferred = true
	})
	return preferred, err
}

func (s *fakeStore) PreferredCategories(_ context.Context, userID string) ([]model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return []model.Category{}, nil
	}
	out := []model.Category{}
	for _, id := range u.PreferredCategories {
		out = append(out, *s.categories[id])
	}
	return out, nil
}

func (s *fakeStore) CreateCategory(_ context.Context, c *model.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.categories {
		if strings.EqualFold(other.Name, c.Name) {
			return repository.ErrDuplicateCategory
		}
	}
	c.ID = s.id("cat")
	stored := *c
	s.categories[c.ID] = &stored
	return nil
}

func (s *fakeStore) GetCategoryByID(_ context.Context, id string) (*model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, apperror.NotFound("category", id)
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) ListCategories(_ context.Context) ([]model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) CreateQuestion(_ context.Context, q *model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.ID = s.id("q")
	q.CreatedAt = s.tick()
	q.UpdatedAt = q.CreatedAt
	stored := *q
	stored.Tags = slices.Clone(q.Tags)
	s.questions[q.ID] = &stored
	return nil
}

// populate fills Subject and Author the way the real store joins them.
func (s *fakeStore) populate(q model.Question) model.Question {
	if c, ok := s.categories[q.SubjectID]; ok {
		q.Subject = *c
	}
	if u, ok := s.users[q.UserID]; ok {
		q.Author = model.QuestionBy{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
	}
	q.Tags = slices.Clone(q.Tags)
	return q
}

func (s *fakeStore) GetQuestionByID(_ context.Context, id string) (*model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, apperror.NotFound("question", id)
	}
	out := s.populate(*q)
	return &out, nil
}

func (s *fakeStore) ListQuestions(_ context.Context, f model.QuestionFilter) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := []model.Question{}
	for _, q := range s.questions {
		if f.Search != "" && !strings.Contains(strings.ToLower(q.Content), strings.ToLower(f.Search)) {
			continue
		}
		if f.Subject != "" && q.SubjectID != f.Subject {
			continue
		}
		if f.Subjects != nil && !slices.Contains(f.Subjects, q.SubjectID) {
			continue
		}
		if f.UserID != "" && q.UserID != f.UserID {
			continue
		}
		hasAll := true
		for _, t := range f.Tags {
			if !slices.Contains(q.Tags, t) {
				hasAll = false
			}
		}
		if !hasAll {
			continue
		}
		out = append(out, s.populate(*q))
	}
	sort.Slice(out, func(i, j int) bool {
		if f.Oldest {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Offset > 0 {
		out = out[min(f.Offset, len(out)):]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *fakeStore) UpdateQuestion(_ context.Context, q *model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.questions[q.ID]
	if !ok {
		return apperror.NotFound("question", q.ID)
	}
	stored.Content = q.Content
	stored.SubjectID = q.SubjectID
	stored.Tags = slices.Clone(q.Tags)
	stored.UpdatedAt = s.tick()
	return nil
}

func (s *fakeStore) DeleteQuestion(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[id]; !ok {
		return apperror.NotFound("question", id)
	}
	delete(s.questions, id)
	return nil
}

// =========================================================================
// FAKE NOTIFIER AND VERIFIER
// =========================================================================

type sentMail struct {
	Kind, To, Username, Token string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) SendVerification(to, username, token string) error {
	return n.record("verify", to, username, token)
}

func (n *fakeNotifier) SendPasswordReset(to, username, token string) error {
	return n.record("reset", to, username, token)
}

func (n *fakeNotifier) record(kind, to, username, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{Kind: kind, To: to, Username: username, Token: token})
	return nil
}

func (n *fakeNotifier) last(kind string) (sentMail, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Kind == kind {
			return n.sent[i], true
		}
	}
	return sentMail{}, false
}

// fakeVerifier accepts assertions listed in identities.
type fakeVerifier struct {
	identities map[string]*auth.Identity
	err        error
	block      bool
}

func (v *fakeVerifier) Verify(ctx context.Context, assertion string) (*auth.Identity, error) {
	if v.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if v.err != nil {
		return nil, v.err
	}
	id, ok := v.identities[assertion]
	if !ok {
		return nil, auth.ErrInvalidAssertion
	}
	return id, nil
}

// =========================================================================
// HELPERS
// =========================================================================

const testSecret = "test-secret-at-least-16-chars!!"

type testEnv struct {
	store     *fakeStore
	notifier  *fakeNotifier
	verifier  *fakeVerifier
	tokens    *auth.TokenService
	auth      *AuthService
	users     *UserService
	category  *CategoryService
	questions *QuestionService
	now       time.Time
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestEnv wires every service over one fake store.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tokens, err := auth.NewTokenService(testSecret)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	env := &testEnv{
		store:    newFakeStore(),
		notifier: &fakeNotifier{},
		verifier: &fakeVerifier{identities: map[string]*auth.Identity{}},
		tokens:   tokens,
		now:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	logger := testLogger()

	// Cost 4 is the bcrypt minimum.
	passwords := auth.NewPasswordServiceForTest(4)

	env.auth = NewAuthService(env.store, tokens, passwords, env.notifier, logger, AuthOptions{
		Verifiers:        map[string]auth.IdentityVerifier{"google": env.verifier},
		FederatedTimeout: 50 * time.Millisecond,
		Now:              func() time.Time { return env.now },
	})
	env.users = NewUserService(env.store, env.store, env.auth, logger)
	env.category = NewCategoryService(env.store, env.store, logger)
	env.questions = NewQuestionService(env.store, env.store, env.store, logger)
	return env
}

func (e *testEnv) register(t *testing.T, username, email, password string) *AuthResult {
	t.Helper()
	res, err := e.auth.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("Register(%q) error = %v", username, err)
	}
	return res
}

func (e *testEnv) stored(t *testing.T, id string) *model.User {
	t.Helper()
	u, err := e.store.GetUserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetUserByID(%s) error = %v", id, err)
	}
	return u
}
