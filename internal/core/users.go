package core

import (
	"context"
	"strings"

	"github.com/BKHilton/Ember/internal/auth"
	"github.com/BKHilton/Ember/pkg/domain"
)

// NewUserInput creates an account inside a church.
type NewUserInput struct {
	ChurchID string
	Name     string
	Email    string
	Role     domain.Role
	CampusID string
	Password string
}

// CreateUser stores an account and its credential.
func (s *Service) CreateUser(ctx context.Context, in NewUserInput) (domain.UserAccount, error) {
	var created domain.UserAccount
	err := s.run(ctx, "create_user", in.ChurchID, func(ctx context.Context) (string, error) {
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return "", domain.ValidationError{Field: "password", Reason: err.Error()}
		}
		err = s.update(ctx, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreateUser(domain.UserAccount{
				ChurchID: in.ChurchID,
				Name:     strings.TrimSpace(in.Name),
				Email:    in.Email,
				Role:     in.Role,
				CampusID: in.CampusID,
			})
			if err != nil {
				return err
			}
			return tx.PutCredential(domain.UserCredential{UserID: created.ID, PasswordHash: hash})
		})
		return created.ID, err
	})
	return created, err
}

// UpdateUser mutates an account. Sessions of the user pick up the change.
func (s *Service) UpdateUser(ctx context.Context, id string, mutator func(*domain.UserAccount) error) (domain.UserAccount, error) {
	var updated domain.UserAccount
	err := s.run(ctx, "update_user", "", func(ctx context.Context) (string, error) {
		err := s.update(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateUser(id, mutator)
			return err
		})
		return id, err
	})
	if err == nil {
		s.sessions.Refresh(updated)
	}
	return updated, err
}

// FindUser returns an account by id.
func (s *Service) FindUser(ctx context.Context, id string) (domain.UserAccount, bool) {
	var (
		user domain.UserAccount
		ok   bool
	)
	_ = s.view(ctx, func(v domain.TransactionView) error {
		user, ok = v.FindUser(id)
		return nil
	})
	return user, ok
}

// ListUsers returns the accounts of a church.
func (s *Service) ListUsers(ctx context.Context, churchID string) []domain.UserAccount {
	var users []domain.UserAccount
	_ = s.view(ctx, func(v domain.TransactionView) error {
		if churchID == "" {
			return nil
		}
		users = v.ListUsers(churchID)
		return nil
	})
	return users
}

// ChangePassword replaces a credential after checking the current password.
// Every open session of the user is revoked.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	return s.run(ctx, "change_password", "", func(ctx context.Context) (string, error) {
		var stored domain.UserCredential
		_ = s.view(ctx, func(v domain.TransactionView) error {
			stored, _ = v.FindCredential(userID)
			return nil
		})
		if stored.PasswordHash == "" || !auth.ComparePassword(stored.PasswordHash, current) {
			return userID, domain.ErrInvalidCredentials
		}
		hash, err := auth.HashPassword(next)
		if err != nil {
			return userID, domain.ValidationError{Field: "password", Reason: err.Error()}
		}
		err = s.update(ctx, func(tx domain.Transaction) error {
			return tx.PutCredential(domain.UserCredential{UserID: userID, PasswordHash: hash})
		})
		if err == nil {
			s.sessions.RevokeUser(userID)
		}
		return userID, err
	})
}

// Authenticate checks an email/password pair and opens a session.
func (s *Service) Authenticate(ctx context.Context, email, password string) (domain.SessionInfo, error) {
	var session domain.SessionInfo
	err := s.run(ctx, "authenticate", "", func(ctx context.Context) (string, error) {
		var (
			user domain.UserAccount
			cred domain.UserCredential
			ok   bool
		)
		_ = s.view(ctx, func(v domain.TransactionView) error {
			user, ok = v.FindUserByEmail(strings.TrimSpace(email))
			if ok {
				cred, ok = v.FindCredential(user.ID)
			}
			return nil
		})
		if !ok || !auth.ComparePassword(cred.PasswordHash, password) {
			return "", domain.ErrInvalidCredentials
		}
		var err error
		session, err = s.sessions.Create(user)
		return user.ID, err
	})
	return session, err
}

// GetSession resolves a session token.
func (s *Service) GetSession(token string) (domain.SessionInfo, bool) {
	return s.sessions.Lookup(token)
}

// Logout revokes a session token. Unknown tokens are ignored.
func (s *Service) Logout(token string) {
	s.sessions.Revoke(token)
}
