package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/pricewatch/internal/common"
	"github.com/dmitrijs2005/pricewatch/internal/dbx"
	"github.com/dmitrijs2005/pricewatch/internal/server/models"
	"github.com/dmitrijs2005/pricewatch/internal/server/repositories/notifications"
	"github.com/dmitrijs2005/pricewatch/internal/server/repositories/subscriptions"
	"github.com/dmitrijs2005/pricewatch/internal/server/repositories/users"
	"github.com/dmitrijs2005/pricewatch/internal/server/repositories/verifications"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

type fakeUsersRepo struct {
	byID    map[int64]*models.User
	byEmail map[string]*models.User

	created   *models.User
	createErr error
	getErr    error
	markErr   error
	verified  []int64
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	u.ID = 100
	f.created = u
	return u, nil
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) MarkVerified(_ context.Context, id int64) error {
	if f.markErr != nil {
		return f.markErr
	}
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Verified = true
	f.verified = append(f.verified, id)
	return nil
}

// add registers u under both lookup keys.
func (f *fakeUsersRepo) add(u *models.User) {
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u
}

type fakeVerificationsRepo struct {
	codes     map[string][]*models.Verification
	createErr error
	getErr    error
	deleteErr error
	now       time.Time
}

func (f *fakeVerificationsRepo) Create(_ context.Context, v *models.Verification) (*models.Verification, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	v.ID = int64(len(f.codes[v.Email]) + 1)
	v.CreatedAt = f.now
	f.codes[v.Email] = append(f.codes[v.Email], v)
	return v, nil
}

func (f *fakeVerificationsRepo) GetLatest(_ context.Context, email string) (*models.Verification, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	list := f.codes[email]
	if len(list) == 0 {
		return nil, common.ErrorNotFound
	}
	return list[len(list)-1], nil
}

func (f *fakeVerificationsRepo) DeleteByEmail(_ context.Context, email string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.codes, email)
	return nil
}

type fakeSubsRepo struct {
	open      []*models.Subscription
	created   *models.Subscription
	deleted   []int64
	deleteErr error
	listErr   error

	// handles records the DBTX each repo call was bound to.
	handles []dbx.DBTX
}

func (f *fakeSubsRepo) Create(_ context.Context, s *models.Subscription) (*models.Subscription, error) {
	s.ID = 1
	f.created = s
	return s, nil
}

func (f *fakeSubsRepo) ListOpen(context.Context) ([]*models.Subscription, error) {
	return f.open, f.listErr
}

func (f *fakeSubsRepo) ListByUser(_ context.Context, userID int64) ([]*models.Subscription, error) {
	var out []*models.Subscription
	for _, s := range f.open {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, f.listErr
}

func (f *fakeSubsRepo) DeleteForUser(_ context.Context, userID, id int64) error {
	for i, s := range f.open {
		if s.ID == id && s.UserID == userID {
			f.open = append(f.open[:i], f.open[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakeSubsRepo) DeleteReturning(_ context.Context, id int64) (*models.Subscription, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	for i, s := range f.open {
		if s.ID == id {
			f.open = append(f.open[:i], f.open[i+1:]...)
			f.deleted = append(f.deleted, id)
			return s, nil
		}
	}
	return nil, common.ErrorNotFound
}

type fakeNotificationsRepo struct {
	created   []*models.Notification
	createErr error
}

func (f *fakeNotificationsRepo) Create(_ context.Context, n *models.Notification) (*models.Notification, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	n.ID = int64(len(f.created) + 1)
	f.created = append(f.created, n)
	return n, nil
}

func (f *fakeNotificationsRepo) ListByUser(_ context.Context, userID int64) ([]*models.Notification, error) {
	var out []*models.Notification
	for _, n := range f.created {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	s *fakeSubsRepo
	n *fakeNotificationsRepo
	v *fakeVerificationsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		u: &fakeUsersRepo{byID: map[int64]*models.User{}, byEmail: map[string]*models.User{}},
		s: &fakeSubsRepo{},
		n: &fakeNotificationsRepo{},
		v: &fakeVerificationsRepo{codes: map[string][]*models.Verification{}},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository             { return m.u }
func (m *fakeRepoManager) Subscriptions(db dbx.DBTX) subscriptions.Repository {
	m.s.handles = append(m.s.handles, db)
	return m.s
}
func (m *fakeRepoManager) Notifications(dbx.DBTX) notifications.Repository { return m.n }
func (m *fakeRepoManager) Verifications(dbx.DBTX) verifications.Repository { return m.v }
