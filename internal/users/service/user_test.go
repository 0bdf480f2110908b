package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"otithi/internal/auth"
	"otithi/internal/listings/storage"
	userserrors "otithi/internal/users/errors"
	"otithi/internal/users/validator"
	"otithi/pkg/config"
	mongodb "otithi/pkg/db/mongo"
	apperrors "otithi/pkg/errors"
	"otithi/pkg/logger"
	"otithi/pkg/model"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

type mockUserRepository struct {
	users map[string]*model.User
	seq   int

	createFunc func(ctx context.Context, user *model.User) error
	setNIDErr  error
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: map[string]*model.User{}}
}

func (m *mockUserRepository) Create(ctx context.Context, user *model.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	m.seq++
	user.ID = "65f000000000000000000" + string(rune('0'+m.seq)) + "00"
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *mockUserRepository) FindByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, userserrors.ErrNotFound
}

func (m *mockUserRepository) FindByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, userserrors.ErrNotFound
}

func (m *mockUserRepository) FindAll(context.Context, string, int, int64) ([]*model.User, error) {
	return nil, nil
}

func (m *mockUserRepository) FindRecent(context.Context, int) ([]*model.User, error) {
	return nil, nil
}

func (m *mockUserRepository) Count(context.Context, string) (int64, error) {
	return int64(len(m.users)), nil
}

func (m *mockUserRepository) UpdateProfile(_ context.Context, user *model.User) error {
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *mockUserRepository) UpdatePassword(_ context.Context, id, hash string) error {
	m.users[id].PasswordHash = hash
	return nil
}

func (m *mockUserRepository) SetVerified(_ context.Context, id string, verified bool) error {
	m.users[id].Verified = verified
	return nil
}

func (m *mockUserRepository) SetRole(_ context.Context, id, role string) error {
	m.users[id].Role = role
	return nil
}

func (m *mockUserRepository) SetNID(_ context.Context, id string, nid *model.NIDVerification) error {
	if m.setNIDErr != nil {
		return m.setNIDErr
	}
	copied := *nid
	m.users[id].NID = &copied
	return nil
}

func (m *mockUserRepository) ReviewNID(_ context.Context, id string, nid *model.NIDVerification, verified bool) error {
	u := m.users[id]
	if u.NID == nil || u.NID.Status != model.NIDPending {
		return userserrors.ErrNIDNotPending
	}
	copied := *nid
	u.NID, u.Verified = &copied, verified
	return nil
}

func (m *mockUserRepository) FindPendingNID(context.Context, int, int64) ([]*model.User, error) {
	return nil, nil
}

func (m *mockUserRepository) CountPendingNID(context.Context) (int64, error) {
	return 0, nil
}

func (m *mockUserRepository) Delete(_ context.Context, id string) error {
	delete(m.users, id)
	return nil
}

func (m *mockUserRepository) ExecuteTransaction(ctx context.Context, fn mongodb.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

type mockVerificationRepository struct {
	codes []*model.EmailVerification
}

func (m *mockVerificationRepository) Create(_ context.Context, v *model.EmailVerification) error {
	for _, c := range m.codes {
		if c.UserID == v.UserID {
			c.Used = true
		}
	}
	v.ID = "v" + string(rune('0'+len(m.codes)))
	m.codes = append(m.codes, v)
	return nil
}

func (m *mockVerificationRepository) FindUnused(_ context.Context, userID, code string) (*model.EmailVerification, error) {
	for _, c := range m.codes {
		if c.UserID == userID && c.Code == code && !c.Used {
			return c, nil
		}
	}
	return nil, userserrors.ErrVerificationNotFound
}

func (m *mockVerificationRepository) FindLatest(_ context.Context, userID string) (*model.EmailVerification, error) {
	var latest *model.EmailVerification
	for _, c := range m.codes {
		if c.UserID == userID && (latest == nil || !c.CreatedAt.Before(latest.CreatedAt)) {
			latest = c
		}
	}
	if latest == nil {
		return nil, userserrors.ErrVerificationNotFound
	}
	return latest, nil
}

func (m *mockVerificationRepository) MarkUsed(_ context.Context, id string) error {
	for _, c := range m.codes {
		if c.ID == id && !c.Used {
			c.Used = true
			return nil
		}
	}
	return userserrors.ErrVerificationNotFound
}

func (m *mockVerificationRepository) InvalidateAll(_ context.Context, userID string) error {
	for _, c := range m.codes {
		if c.UserID == userID {
			c.Used = true
		}
	}
	return nil
}

type recordingPublisher struct {
	events []string
	last   any
}

func (p *recordingPublisher) Publish(_ context.Context, eventType, _ string, payload any) error {
	p.events = append(p.events, eventType)
	p.last = payload
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type memoryDocumentStore struct {
	objects map[string][]byte
}

func (m *memoryDocumentStore) Save(_ context.Context, key, _ string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	url := "https://cdn.example.com/" + key
	m.objects[url] = data
	return url, nil
}

func (m *memoryDocumentStore) Delete(_ context.Context, url string) error {
	if _, ok := m.objects[url]; !ok {
		return storage.ErrForeignURL
	}
	delete(m.objects, url)
	return nil
}

type fixture struct {
	svc      *userService
	repo     *mockUserRepository
	codes    *mockVerificationRepository
	docs     *memoryDocumentStore
	clock    time.Time
	pub      *recordingPublisher
	sessions *auth.MemorySessionStore
	auth     *auth.Authenticator
}

func newFixture() *fixture {
	log := logger.Discard()
	cfg := &config.Config{
		Log:                        log,
		ReadTimeout:                5 * time.Second,
		VerificationCodeTTL:        15 * time.Minute,
		VerificationResendCooldown: 2 * time.Minute,
		MaxUploadSize:              5 << 20,
	}
	sessions := auth.NewMemorySessionStore()
	authenticator := auth.NewAuthenticator(auth.NewTokenManager("test-secret-with-enough-entropy", time.Hour), sessions, "", false, log)

	f := &fixture{
		repo:     newMockUserRepository(),
		codes:    &mockVerificationRepository{},
		docs:     &memoryDocumentStore{objects: map[string][]byte{}},
		clock:    time.Now(),
		pub:      &recordingPublisher{},
		sessions: sessions,
		auth:     authenticator,
	}
	f.svc = &userService{
		repo:          f.repo,
		verifications: f.codes,
		documents:     f.docs,
		validator:     validator.NewUserValidator(log),
		auth:          authenticator,
		publisher:     f.pub,
		cfg:           cfg,
		now:           func() time.Time { return f.clock },
	}
	return f
}

func statusOf(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return 0
}

func principalFor(t *testing.T, f *fixture, res *model.AuthResult) *auth.Principal {
	t.Helper()
	claims, err := f.auth.Tokens().Parse(res.Token)
	require.NoError(t, err)
	return &auth.Principal{UserID: claims.UserID, Role: claims.Role, Verified: claims.Verified, SessionID: claims.SessionID}
}

func register(t *testing.T, f *fixture, email string) *model.AuthResult {
	t.Helper()
	res, err := f.svc.Register(context.Background(), &model.RegisterRequest{
		FullName: "Nusrat Jahan",
		Email:    email,
		Password: "password123",
		Phone:    "01812345678",
		Role:     model.RoleHost,
	})
	require.NoError(t, err)
	return res
}

func TestRegister(t *testing.T) {
	f := newFixture()
	res := register(t, f, "  Nusrat@Example.COM ")

	assert.Equal(t, "nusrat@example.com", res.User.Email)
	assert.Equal(t, "+8801812345678", res.User.Phone)
	assert.False(t, res.User.Verified)
	assert.NotEqual(t, "password123", res.User.PasswordHash)
	assert.NotEmpty(t, res.Token)

	require.Len(t, f.codes.codes, 1)
	assert.Equal(t, []string{model.EventVerificationRequested}, f.pub.events)
	ev, ok := f.pub.last.(model.VerificationEvent)
	require.True(t, ok)
	assert.Equal(t, f.codes.codes[0].Code, ev.Code)
}

func TestRegister_Rejections(t *testing.T) {
	f := newFixture()
	register(t, f, "taken@example.com")

	tests := []struct {
		name string
		req  model.RegisterRequest
		want int
	}{
		{"duplicate email", model.RegisterRequest{FullName: "Other", Email: "TAKEN@example.com", Password: "password123"}, http.StatusConflict},
		{"admin self-registration", model.RegisterRequest{FullName: "Eve", Email: "eve@example.com", Password: "password123", Role: model.RoleAdmin}, http.StatusUnprocessableEntity},
		{"short password", model.RegisterRequest{FullName: "Eve", Email: "eve@example.com", Password: "short"}, http.StatusUnprocessableEntity},
		{"bad phone", model.RegisterRequest{FullName: "Eve", Email: "eve@example.com", Password: "password123", Phone: "12345"}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), &tt.req)
			assert.Equal(t, tt.want, statusOf(err))
		})
	}
}

func TestRegister_DuplicateKeyRace(t *testing.T) {
	f := newFixture()
	f.repo.createFunc = func(context.Context, *model.User) error { return userserrors.ErrEmailTaken }

	_, err := f.svc.Register(context.Background(), &model.RegisterRequest{FullName: "Race", Email: "race@example.com", Password: "password123"})
	assert.Equal(t, http.StatusConflict, statusOf(err))
}

func TestLogin_SameErrorForUnknownEmailAndWrongPassword(t *testing.T) {
	f := newFixture()
	register(t, f, "host@example.com")

	_, errUnknown := f.svc.Login(context.Background(), &model.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	_, errWrong := f.svc.Login(context.Background(), &model.LoginRequest{Email: "host@example.com", Password: "wrongpassword"})

	assert.Equal(t, http.StatusUnauthorized, statusOf(errUnknown))
	assert.Equal(t, http.StatusUnauthorized, statusOf(errWrong))
	assert.Equal(t, errUnknown.Error(), errWrong.Error())

	res, err := f.svc.Login(context.Background(), &model.LoginRequest{Email: "HOST@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestLogout(t *testing.T) {
	f := newFixture()
	p := principalFor(t, f, register(t, f, "out@example.com"))

	require.NoError(t, f.svc.Logout(context.Background(), p))
	ok, _ := f.sessions.Exists(context.Background(), p.SessionID)
	assert.False(t, ok)
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture()
	p := principalFor(t, f, register(t, f, "verify@example.com"))
	code := f.codes.codes[0].Code

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err := f.svc.VerifyEmail(context.Background(), p, &model.VerifyEmailRequest{Code: wrong})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))

	res, err := f.svc.VerifyEmail(context.Background(), p, &model.VerifyEmailRequest{Code: code})
	require.NoError(t, err)
	assert.True(t, res.User.Verified)
	assert.True(t, f.repo.users[p.UserID].Verified)

	oldAlive, _ := f.sessions.Exists(context.Background(), p.SessionID)
	assert.False(t, oldAlive, "session is rotated so the token carries the verified flag")
	assert.True(t, principalFor(t, f, res).Verified)

	_, err = f.svc.VerifyEmail(context.Background(), principalFor(t, f, res), &model.VerifyEmailRequest{Code: code})
	assert.Equal(t, http.StatusConflict, statusOf(err))
}

func TestVerifyEmail_ExpiredCode(t *testing.T) {
	f := newFixture()
	p := principalFor(t, f, register(t, f, "late@example.com"))
	code := f.codes.codes[0].Code

	f.svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err := f.svc.VerifyEmail(context.Background(), p, &model.VerifyEmailRequest{Code: code})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))
	assert.False(t, f.repo.users[p.UserID].Verified)
}

func TestResendVerification_RetiresOldCode(t *testing.T) {
	f := newFixture()
	p := principalFor(t, f, register(t, f, "resend@example.com"))
	first := f.codes.codes[0]

	f.clock = f.clock.Add(3 * time.Minute)
	require.NoError(t, f.svc.ResendVerification(context.Background(), p))
	require.Len(t, f.codes.codes, 2)
	assert.True(t, first.Used)
	assert.False(t, f.codes.codes[1].Used)
}

func TestResendVerification_Cooldown(t *testing.T) {
	tests := []struct {
		name      string
		elapsed   time.Duration
		wantErr   bool
		wantRetry int
	}{
		{"immediately after registering", 0, true, 120},
		{"half way through", time.Minute, true, 60},
		{"one second left", 119 * time.Second, true, 1},
		{"cooldown over", 2 * time.Minute, false, 0},
		{"long after", time.Hour, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			p := principalFor(t, f, register(t, f, "cooldown@example.com"))
			f.clock = f.clock.Add(tt.elapsed)

			err := f.svc.ResendVerification(context.Background(), p)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Len(t, f.codes.codes, 2)
				return
			}

			require.Error(t, err)
			assert.Equal(t, http.StatusTooManyRequests, statusOf(err))
			assert.Equal(t, tt.wantRetry, apperrors.AsAppError(err).Details["retry_after_seconds"])
			assert.Len(t, f.codes.codes, 1, "no new code is issued during the cooldown")
			assert.False(t, f.codes.codes[0].Used, "the pending code stays valid")
		})
	}
}

func TestResendVerification_CooldownRestartsAfterResend(t *testing.T) {
	f := newFixture()
	p := principalFor(t, f, register(t, f, "again@example.com"))

	f.clock = f.clock.Add(5 * time.Minute)
	require.NoError(t, f.svc.ResendVerification(context.Background(), p))

	f.clock = f.clock.Add(30 * time.Second)
	err := f.svc.ResendVerification(context.Background(), p)
	assert.Equal(t, http.StatusTooManyRequests, statusOf(err))
}

var (
	pngDocument = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	pdfDocument = []byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
)

func TestSubmitNID(t *testing.T) {
	f := newFixture()
	p := principalFor(t, f, register(t, f, "nid@example.com"))

	user, err := f.svc.SubmitNID(context.Background(), p, int64(len(pngDocument)), bytes.NewReader(pngDocument))
	require.NoError(t, err)
	require.NotNil(t, user.NID)
	assert.Equal(t, model.NIDPending, user.NID.Status)
	first := user.NID.DocumentURL
	assert.True(t, strings.HasPrefix(first, "https://cdn.example.com/nid/"+p.UserID+"/"))
	assert.True(t, strings.HasSuffix(first, ".png"))
	assert.Equal(t, pngDocument, f.docs.objects[first], "sniffed bytes are not lost")
	assert.Equal(t, model.NIDPending, f.repo.users[p.UserID].NID.Status)
	assert.False(t, f.repo.users[p.UserID].Verified, "submission alone does not verify")

	user, err = f.svc.SubmitNID(context.Background(), p, int64(len(pdfDocument)), bytes.NewReader(pdfDocument))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(user.NID.DocumentURL, ".pdf"))
	assert.NotContains(t, f.docs.objects, first, "replaced document is removed")
	assert.Len(t, f.docs.objects, 1)
}

func TestSubmitNID_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(f *fixture, id string)
		size       int64
		body       []byte
		wantStatus int
	}{
		{name: "too large", size: 6 << 20, body: pngDocument, wantStatus: http.StatusRequestEntityTooLarge},
		{name: "empty file", size: 0, body: nil, wantStatus: http.StatusBadRequest},
		{name: "plain text", size: 20, body: []byte("this is not an id card"), wantStatus: http.StatusUnprocessableEntity},
		{
			name:       "guest account",
			setup:      func(f *fixture, id string) { f.repo.users[id].Role = model.RoleGuest },
			size:       int64(len(pngDocument)),
			body:       pngDocument,
			wantStatus: http.StatusForbidden,
		},
		{
			name: "already approved",
			setup: func(f *fixture, id string) {
				f.repo.users[id].NID = &model.NIDVerification{Status: model.NIDApproved}
			},
			size:       int64(len(pngDocument)),
			body:       pngDocument,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "store write fails",
			setup:      func(f *fixture, _ string) { f.repo.setNIDErr = errors.New("mongo unavailable") },
			size:       int64(len(pngDocument)),
			body:       pngDocument,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			p := principalFor(t, f, register(t, f, "reject@example.com"))
			if tt.setup != nil {
				tt.setup(f, p.UserID)
			}

			_, err := f.svc.SubmitNID(context.Background(), p, tt.size, bytes.NewReader(tt.body))
			require.Error(t, err)
			assert.Equal(t, tt.wantStatus, statusOf(err))
			assert.Empty(t, f.docs.objects, "nothing is left in storage")
		})
	}
}

func TestChangePassword_RevokesOtherSessions(t *testing.T) {
	f := newFixture()
	current := principalFor(t, f, register(t, f, "pw@example.com"))
	other, err := f.svc.Login(context.Background(), &model.LoginRequest{Email: "pw@example.com", Password: "password123"})
	require.NoError(t, err)
	otherP := principalFor(t, f, other)

	err = f.svc.ChangePassword(context.Background(), current, &model.PasswordChange{CurrentPassword: "wrongpassword", NewPassword: "newpassword1"})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))

	require.NoError(t, f.svc.ChangePassword(context.Background(), current, &model.PasswordChange{CurrentPassword: "password123", NewPassword: "newpassword1"}))

	alive, _ := f.sessions.Exists(context.Background(), current.SessionID)
	assert.True(t, alive)
	alive, _ = f.sessions.Exists(context.Background(), otherP.SessionID)
	assert.False(t, alive)

	_, err = f.svc.Login(context.Background(), &model.LoginRequest{Email: "pw@example.com", Password: "newpassword1"})
	assert.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture()
	p := principalFor(t, f, register(t, f, "profile@example.com"))

	name := "  Nusrat   J.  "
	clear := ""
	user, err := f.svc.UpdateProfile(context.Background(), p, &model.ProfileUpdate{FullName: &name, Phone: &clear})
	require.NoError(t, err)
	assert.Equal(t, "Nusrat J.", user.FullName)
	assert.Empty(t, user.Phone)

	bad := "999"
	_, err = f.svc.UpdateProfile(context.Background(), p, &model.ProfileUpdate{Phone: &bad})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))
}

func TestGetByID_PublicProfile(t *testing.T) {
	f := newFixture()
	res := register(t, f, "public@example.com")

	profile, err := f.svc.GetByID(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, res.User.FullName, profile.FullName)

	_, err = f.svc.GetByID(context.Background(), "65f0000000000000000000ff")
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}

func TestGenerateCode(t *testing.T) {
	re := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}
