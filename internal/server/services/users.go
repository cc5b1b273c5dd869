package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/pricewatch/internal/common"
	"github.com/dmitrijs2005/pricewatch/internal/dbx"
	"github.com/dmitrijs2005/pricewatch/internal/server/auth"
	"github.com/dmitrijs2005/pricewatch/internal/server/models"
	"github.com/dmitrijs2005/pricewatch/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

const avatarBaseURL = "https://eu.ui-avatars.com/api/"

// TokenIssuer mints the login token pair.
type TokenIssuer interface {
	Issue(claim auth.Claim) (auth.Result, error)
}

// Mailer enqueues an email for asynchronous delivery.
type Mailer interface {
	Send(ctx context.Context, recipients []string, subject, body string) error
}

// RegisterRequest describes a new account. Verified accounts (created by an
// operator) skip the email confirmation step.
type RegisterRequest struct {
	Email    string
	Username string
	Password string
	Country  string
	Role     string
	Verified bool
}

// UserService handles registration, email confirmation and login.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      TokenIssuer
	mailer      Mailer
	cost        int
	codeTTL     time.Duration
	newCode     func() (string, error)
	now         func() time.Time
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, issuer TokenIssuer, mailer Mailer) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		issuer:      issuer,
		mailer:      mailer,
		cost:        bcrypt.DefaultCost,
		codeTTL:     VerificationCodeTTL,
		newCode:     newVerificationCode,
		now:         time.Now,
	}
}

// AvatarURL returns the generated avatar address for username.
func AvatarURL(username string) string {
	return avatarBaseURL + "?name=" + url.QueryEscape(username)
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// Register stores a new user. Unless the request is pre-verified, a
// confirmation code is stored in the same transaction and emailed once it
// commits. If the email cannot be enqueued the account still exists and
// ResendVerification can be used.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {

	email := normalizeEmail(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email", common.ErrorInvalidInput)
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrorInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInvalidInput, err)
	}

	role := req.Role
	if role == "" {
		role = models.RoleUser
	}

	user := &models.User{
		Username:     req.Username,
		Email:        email,
		PasswordHash: string(hash),
		Country:      req.Country,
		Verified:     req.Verified,
		Role:         role,
		AvatarURL:    AvatarURL(req.Username),
	}

	var code string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		user, err = s.repomanager.Users(tx).Create(ctx, user)
		if err != nil {
			return err
		}
		if user.Verified {
			return nil
		}
		code, err = s.storeCode(ctx, tx, email)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	if code != "" {
		if err := s.sendCode(ctx, email, code); err != nil {
			return nil, err
		}
	}

	return user, nil
}

// VerifyEmail checks the latest code issued for email and marks the user
// verified. Wrong, missing or expired codes yield ErrorInvalidCode.
// Verifying an already verified account is a no-op.
func (s *UserService) VerifyEmail(ctx context.Context, email, code string) error {

	email = normalizeEmail(email)
	code = strings.TrimSpace(code)

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorInvalidCode
			}
			return fmt.Errorf("%w: %w", common.ErrorInternal, err)
		}
		if user.Verified {
			return nil
		}

		v, err := s.repomanager.Verifications(tx).GetLatest(ctx, email)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorInvalidCode
			}
			return fmt.Errorf("%w: %w", common.ErrorInternal, err)
		}
		if !codesEqual(v.Code, code) || v.Expired(s.now(), s.codeTTL) {
			return common.ErrorInvalidCode
		}

		if err := s.repomanager.Users(tx).MarkVerified(ctx, user.ID); err != nil {
			return fmt.Errorf("%w: %w", common.ErrorInternal, err)
		}
		if err := s.repomanager.Verifications(tx).DeleteByEmail(ctx, email); err != nil {
			return fmt.Errorf("%w: %w", common.ErrorInternal, err)
		}
		return nil
	})
}

// ResendVerification issues a fresh code for an unverified account. Unknown
// and already verified emails are ignored so the call reveals nothing about
// which accounts exist.
func (s *UserService) ResendVerification(ctx context.Context, email string) error {

	email = normalizeEmail(email)

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	if user.Verified {
		return nil
	}

	code, err := s.storeCode(ctx, s.db, email)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	return s.sendCode(ctx, email, code)
}

func (s *UserService) storeCode(ctx context.Context, db dbx.DBTX, email string) (string, error) {
	code, err := s.newCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	if _, err := s.repomanager.Verifications(db).Create(ctx, &models.Verification{Email: email, Code: code}); err != nil {
		return "", err
	}
	return code, nil
}

func (s *UserService) sendCode(ctx context.Context, email, code string) error {
	if err := s.mailer.Send(ctx, []string{email}, verificationSubject, verificationBody(code)); err != nil {
		return fmt.Errorf("%w: verification email: %w", common.ErrorInternal, err)
	}
	return nil
}

// Login checks the password and mints both tokens. Unknown emails and wrong
// passwords are indistinguishable to the caller; a correct password on an
// unconfirmed account yields ErrorNotVerified.
func (s *UserService) Login(ctx context.Context, email, password string) (auth.Result, error) {

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return auth.Result{}, common.ErrorUnauthorized
		}
		return auth.Result{}, common.ErrorInternal
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return auth.Result{}, common.ErrorUnauthorized
	}

	if !user.Verified {
		return auth.Result{}, common.ErrorNotVerified
	}

	res, err := s.issuer.Issue(ClaimFor(user))
	if err != nil {
		return auth.Result{}, common.ErrorInternal
	}

	return res, nil
}

// ClaimFor builds the token claim carried for user.
func ClaimFor(user *models.User) auth.Claim {
	return auth.Claim{
		SubjectID:   user.ID,
		Role:        user.Role,
		DisplayName: user.Username,
		AvatarURL:   user.AvatarURL,
	}
}
