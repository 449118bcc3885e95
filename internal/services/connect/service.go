package connect

import (
	"errors"

	"mebike/internal/repositories"
	"mebike/internal/services/payment"
)

var ErrUserNotFound = errors.New("user not found")

// Service handles payout-account onboarding: creating the provider's
// connected account, producing the hosted onboarding link, and tracking the
// payouts-enabled capability from account.updated webhooks.
type Service struct {
	users    repositories.UserRepository
	provider payment.Provider
}

func NewService(users repositories.UserRepository, provider payment.Provider) *Service {
	return &Service{users: users, provider: provider}
}

// StartOnboarding ensures the user has a connected account and returns the
// hosted onboarding URL. Re-running for an already-linked user just issues a
// fresh link.
func (s *Service) StartOnboarding(userID, refreshURL, returnURL string) (string, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	accountID := ""
	if user.StripeConnectedAccountID != nil {
		accountID = *user.StripeConnectedAccountID
	} else {
		accountID, err = s.provider.CreateConnectedAccount(user.ID, user.Email)
		if err != nil {
			return "", err
		}
		if err := s.users.SetStripeAccount(user.ID, accountID); err != nil {
			return "", err
		}
	}

	return s.provider.CreateAccountLink(accountID, refreshURL, returnURL)
}

// HandleAccountUpdated records the payouts capability from an account.updated
// event. Events for accounts we never linked are ignored.
func (s *Service) HandleAccountUpdated(accountID string, payoutsEnabled bool) error {
	if _, err := s.users.FindByStripeAccountID(accountID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil
		}
		return err
	}
	return s.users.SetStripePayoutsEnabled(accountID, payoutsEnabled)
}
