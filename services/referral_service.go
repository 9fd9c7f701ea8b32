// services/referral_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"financial-matrix/models"
	"financial-matrix/store"
	"financial-matrix/utils"

	"github.com/google/uuid"
)

// ProfileFailedMessage is shown when the identity exists but its profile row could not be written.
const ProfileFailedMessage = "Sign up succeeded, but we could not create your profile. Please contact support."

var referralCodePattern = regexp.MustCompile(`^[A-Za-z0-9-]{8}$`)

// DeriveReferralCode returns the first ReferralCodeLength characters of the identity id.
func DeriveReferralCode(identityID string) string {
	if len(identityID) <= models.ReferralCodeLength {
		return identityID
	}
	return identityID[:models.ReferralCodeLength]
}

// ReferralLink builds "<origin>/auth?referral=<code>".
func ReferralLink(origin, code string) string {
	return strings.TrimRight(origin, "/") + "/auth?referral=" + url.QueryEscape(code)
}

type ReferralService struct {
	Sessions SessionProvider
	Users    store.UserStore
	// IsAdminEmail promotes matching signups to admin. Optional.
	IsAdminEmail func(email string) bool
}

func NewReferralService(sessions SessionProvider, users store.UserStore) *ReferralService {
	return &ReferralService{Sessions: sessions, Users: users}
}

type SignupResult struct {
	Identity *Identity
	// Session is nil when the provider requires email confirmation.
	Session *Session
	Profile *models.User
	// ProfileErr is set when the identity was created but the profile insert
	// failed. The identity is kept.
	ProfileErr error
	// ReferrerID is the credited referrer, empty when none was credited.
	ReferrerID string
}

// Signup creates the identity, writes its profile with a zero referral count
// and, when referralCode names an existing profile, credits that profile by one.
// Only an identity-creation failure is returned as an error.
func (s *ReferralService) Signup(ctx context.Context, email, password, referralCode string) (*SignupResult, error) {
	ident, sess, err := s.Sessions.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}

	log := utils.Component("referral")
	res := &SignupResult{Identity: ident, Session: sess}

	role := models.RoleUser
	if s.IsAdminEmail != nil && s.IsAdminEmail(ident.Email) {
		role = models.RoleAdmin
	}
	profile := &models.User{
		ID:            ident.ID,
		Email:         ident.Email,
		ReferralCode:  DeriveReferralCode(ident.ID),
		ReferralCount: 0,
		Role:          role,
	}
	if err := s.Users.CreateUser(ctx, profile); err != nil {
		log.Error("profile insert failed after identity creation", "user_id", ident.ID, "error", err)
		res.ProfileErr = fmt.Errorf("create profile: %w", err)
	} else {
		res.Profile = profile
	}

	res.ReferrerID = s.creditReferrer(ctx, ident.ID, referralCode)
	return res, nil
}

// creditReferrer never fails the signup; every problem is logged and dropped.
func (s *ReferralService) creditReferrer(ctx context.Context, newUserID, code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}

	log := utils.Component("referral").With("referred_id", newUserID, "code", code)
	if !referralCodePattern.MatchString(code) {
		log.Warn("ignoring malformed referral code")
		return ""
	}

	referrer, err := s.Users.GetUserByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info("referral code matched no profile")
		} else {
			log.Error("referrer lookup failed", "error", err)
		}
		return ""
	}
	if referrer.ID == newUserID {
		log.Warn("ignoring self-referral")
		return ""
	}

	if err := s.Users.IncrementReferralCount(ctx, referrer.ID, 1); err != nil {
		log.Error("referral count increment failed", "referrer_id", referrer.ID, "error", err)
		return ""
	}

	if err := s.Users.CreateReferral(ctx, &models.Referral{
		ID:               uuid.NewString(),
		ReferrerID:       referrer.ID,
		ReferredID:       newUserID,
		ReferralCodeUsed: code,
	}); err != nil {
		log.Warn("referral audit row not written", "referrer_id", referrer.ID, "error", err)
	}

	log.Info("referrer credited", "referrer_id", referrer.ID)
	return referrer.ID
}
