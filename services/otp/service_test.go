package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/backyard/apierror"
	"github.com/tech-arch1tect/backyard/services/acl"
	"github.com/tech-arch1tect/backyard/services/notification"
	"github.com/tech-arch1tect/backyard/services/users"
	"github.com/tech-arch1tect/backyard/testutils"
	"gorm.io/gorm"
)

type fixture struct {
	svc    *Service
	users  *users.Service
	mailer *testutils.RecordingMailer
	db     *gorm.DB
}

func setup(t *testing.T) *fixture {
	t.Helper()
	cfg := testutils.GetTestConfig()
	models := append(acl.Models(), users.Models()...)
	models = append(models, notification.Models()...)
	db := testutils.SetupTestDB(t, append(models, Models()...)...)

	mailer := &testutils.RecordingMailer{}
	userService := users.NewService(cfg, db, nil)
	notifier := notification.NewService(cfg, db, mailer, nil)
	return &fixture{
		svc:    NewService(cfg, db, userService, notifier, nil),
		users:  userService,
		mailer: mailer,
		db:     db,
	}
}

func (f *fixture) createUser(t *testing.T, email string, active bool) *users.User {
	t.Helper()
	ctx := context.Background()
	user, err := f.users.Create(ctx, users.CreateInput{Email: email, Password: testutils.TestPasswords.Valid, FirstName: "Ada"})
	require.NoError(t, err)
	if active {
		require.NoError(t, f.users.Activate(ctx, user))
	}
	return user
}

func (f *fixture) lastCode(t *testing.T) string {
	t.Helper()
	sent, ok := f.mailer.Last()
	require.True(t, ok, "no code was sent")
	code, ok := sent.Data["OTP"].(string)
	require.True(t, ok)
	return code
}

func requireKind(t *testing.T, err error, kind apierror.Kind, message string) {
	t.Helper()
	apiErr, ok := apierror.As(err)
	require.True(t, ok, "expected apierror, got %v", err)
	assert.Equal(t, kind, apiErr.Kind)
	assert.Equal(t, []string{message}, apiErr.Messages)
}

func TestService_Issue(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	t.Run("inactive user gets a signup code", func(t *testing.T) {
		user := f.createUser(t, "new@b.com", false)

		hint, err := f.svc.Issue(ctx, user)

		require.NoError(t, err)
		assert.Equal(t, &Hint{Message: MsgOTPSent, OTPTime: 120}, hint)

		sent, _ := f.mailer.Last()
		assert.Equal(t, "sign_up_otp_email", sent.Template)
		assert.Equal(t, []string{"new@b.com"}, sent.To)
		assert.Regexp(t, `^\d{4}$`, sent.Data["OTP"])

		var record OneTimeCode
		require.NoError(t, f.db.Where("email = ?", "new@b.com").First(&record).Error)
		assert.Equal(t, StageSignup, record.Stage)
		assert.False(t, record.IsValid)
	})

	t.Run("active user gets a login code", func(t *testing.T) {
		user := f.createUser(t, "active@b.com", true)

		_, err := f.svc.Issue(ctx, user)
		require.NoError(t, err)

		sent, _ := f.mailer.Last()
		assert.Equal(t, "login_otp_email", sent.Template)

		var record OneTimeCode
		require.NoError(t, f.db.Where("email = ?", "active@b.com").First(&record).Error)
		assert.Equal(t, StageLogin, record.Stage)
	})

	t.Run("every issue stores a fresh row", func(t *testing.T) {
		user := f.createUser(t, "twice@b.com", false)

		_, err := f.svc.Issue(ctx, user)
		require.NoError(t, err)
		_, err = f.svc.Issue(ctx, user)
		require.NoError(t, err)

		var count int64
		require.NoError(t, f.db.Model(&OneTimeCode{}).Where("email = ?", "twice@b.com").Count(&count).Error)
		assert.EqualValues(t, 2, count)
	})
}

func TestService_Verify(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	user := f.createUser(t, "a@b.com", false)

	_, err := f.svc.Issue(ctx, user)
	require.NoError(t, err)
	code := f.lastCode(t)

	t.Run("wrong code", func(t *testing.T) {
		wrong := "0000"
		if code == wrong {
			wrong = "1111"
		}
		_, err := f.svc.Verify(ctx, wrong, "a@b.com", StageSignup)
		requireKind(t, err, apierror.KindNotFound, MsgIncorrect)
	})

	t.Run("wrong stage", func(t *testing.T) {
		_, err := f.svc.Verify(ctx, code, "a@b.com", StageLogin)
		requireKind(t, err, apierror.KindNotFound, MsgIncorrect)
	})

	t.Run("first verify consumes the code", func(t *testing.T) {
		record, err := f.svc.Verify(ctx, code, "A@B.com", StageSignup)
		require.NoError(t, err)

		var stored OneTimeCode
		require.NoError(t, f.db.First(&stored, record.ID).Error)
		assert.True(t, stored.IsValid)
	})

	t.Run("second verify fails", func(t *testing.T) {
		_, err := f.svc.Verify(ctx, code, "a@b.com", StageSignup)
		requireKind(t, err, apierror.KindNotFound, MsgIncorrect)
	})
}

func TestService_Verify_Expiry(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	user := f.createUser(t, "a@b.com", false)

	issuedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := f.svc.WithClock(func() time.Time { return issuedAt }).Issue(ctx, user)
	require.NoError(t, err)
	code := f.lastCode(t)

	late := f.svc.WithClock(func() time.Time { return issuedAt.Add(2*time.Minute + time.Second) })
	_, err = late.Verify(ctx, code, "a@b.com", StageSignup)
	requireKind(t, err, apierror.KindExpired, MsgExpired)

	onTime := f.svc.WithClock(func() time.Time { return issuedAt.Add(2 * time.Minute) })
	_, err = onTime.Verify(ctx, code, "a@b.com", StageSignup)
	assert.NoError(t, err)
}

func TestService_Verify_PicksOldest(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	now := time.Now()

	older := &OneTimeCode{Email: "a@b.com", Code: "4242", Stage: StageLogin, CreatedAt: now.Add(-30 * time.Second)}
	newer := &OneTimeCode{Email: "a@b.com", Code: "4242", Stage: StageLogin, CreatedAt: now.Add(-10 * time.Second)}
	require.NoError(t, f.db.Create(newer).Error)
	require.NoError(t, f.db.Create(older).Error)

	record, err := f.svc.Verify(ctx, "4242", "a@b.com", StageLogin)
	require.NoError(t, err)
	assert.Equal(t, older.ID, record.ID)

	record, err = f.svc.Verify(ctx, "4242", "a@b.com", StageLogin)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, record.ID)
}

func TestService_Consume_LosesRaceToConcurrentRedeem(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	record := &OneTimeCode{Email: "a@b.com", Code: "4242", Stage: StageSignup}
	require.NoError(t, f.db.Create(record).Error)

	loaded := *record
	require.NoError(t, f.db.Model(&OneTimeCode{}).Where("id = ?", record.ID).Update("is_valid", true).Error)

	err := f.svc.consume(ctx, &loaded)
	requireKind(t, err, apierror.KindNotFound, MsgIncorrect)
	assert.False(t, loaded.IsValid)

	fresh := &OneTimeCode{Email: "a@b.com", Code: "5353", Stage: StageSignup}
	require.NoError(t, f.db.Create(fresh).Error)
	require.NoError(t, f.svc.consume(ctx, fresh))
	assert.True(t, fresh.IsValid)
}

func TestService_Resend(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	user := f.createUser(t, "a@b.com", false)

	t.Run("unknown pair", func(t *testing.T) {
		_, err := f.svc.Resend(ctx, "a@b.com", "not-the-token")
		requireKind(t, err, apierror.KindNotFound, MsgIncorrect)
		assert.Zero(t, f.mailer.Count())
	})

	t.Run("bound pair", func(t *testing.T) {
		hint, err := f.svc.Resend(ctx, "A@b.com", user.Token)
		require.NoError(t, err)
		assert.Equal(t, MsgOTPSent, hint.Message)

		sent, _ := f.mailer.Last()
		assert.Equal(t, "resend_otp_email", sent.Template)

		_, err = f.svc.Verify(ctx, f.lastCode(t), "a@b.com", StageSignup)
		assert.NoError(t, err)
	})
}

func TestService_Issue_DeliveryFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	user := f.createUser(t, "a@b.com", false)
	f.mailer.Err = errors.New("smtp down")

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.WithDB(tx).Issue(ctx, user)
		return err
	})
	requireKind(t, err, apierror.KindValidation, notification.MsgSendFailed)

	var count int64
	require.NoError(t, f.db.Model(&OneTimeCode{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestStage(t *testing.T) {
	assert.Equal(t, "SIGNUP", StageSignup.String())
	assert.Equal(t, "LOGIN", StageLogin.String())
	assert.Equal(t, StageLogin, StageFor(&users.User{IsActive: true}))
	assert.Equal(t, StageSignup, StageFor(&users.User{}))
}
