// services/dashboard_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"financial-matrix/models"
	"financial-matrix/store"
	"financial-matrix/utils"
)

const LoginPromptMessage = "Please log in to view your dashboard."

var (
	// ErrLoginRequired means the session went away while the dashboard was being built.
	ErrLoginRequired       = errors.New(LoginPromptMessage)
	ErrReferralCodeMissing = errors.New("Error: Referral code not found.")
	// ErrProfileMissing means the session is valid but no profile row backs it.
	ErrProfileMissing      = errors.New("We could not find your profile. Please contact support.")
	ErrInviteTargetMissing = errors.New("Please enter an email or WhatsApp number to invite.")
)

type Dashboard struct {
	Profile      *models.User      `json:"profile"`
	ReferralLink string            `json:"referral_link"`
	Downloads    []models.Download `json:"downloads"`
}

type InviteResult struct {
	Message     string `json:"message"`
	Link        string `json:"referral_link"`
	WhatsAppURL string `json:"whatsapp_url,omitempty"`
}

type DashboardService struct {
	Sessions  SessionProvider
	Users     store.UserStore
	Downloads store.DownloadStore
}

func NewDashboardService(sessions SessionProvider, users store.UserStore, downloads store.DownloadStore) *DashboardService {
	return &DashboardService{Sessions: sessions, Users: users, Downloads: downloads}
}

// Load assembles the dashboard for the session behind accessToken. A session
// that is no longer valid yields ErrLoginRequired; a valid session without a
// profile yields ErrProfileMissing.
func (s *DashboardService) Load(ctx context.Context, accessToken, origin string) (*Dashboard, error) {
	sess, err := s.Sessions.GetSession(ctx, accessToken)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil, ErrLoginRequired
		}
		return nil, fmt.Errorf("fetch session: %w", err)
	}

	profile, err := s.Users.GetUser(ctx, sess.Identity.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Component("dashboard").Warn("no profile for session", "user_id", sess.Identity.ID)
			return nil, ErrProfileMissing
		}
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	downloads, err := s.Downloads.ListDownloadsByUser(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch downloads: %w", err)
	}
	if downloads == nil {
		downloads = []models.Download{}
	}

	d := &Dashboard{Profile: profile, Downloads: downloads}
	if profile.ReferralCode != "" {
		d.ReferralLink = ReferralLink(origin, profile.ReferralCode)
	}
	return d, nil
}

// Invite builds an invite for email or, when email is empty, a WhatsApp number.
// Email delivery is simulated. A missing referral code is reported before a
// missing target.
func (s *DashboardService) Invite(ctx context.Context, userID, origin, email, whatsapp string) (*InviteResult, error) {
	profile, err := s.Users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrReferralCodeMissing
		}
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	if profile.ReferralCode == "" {
		return nil, ErrReferralCodeMissing
	}

	email = strings.TrimSpace(email)
	whatsapp = strings.TrimSpace(whatsapp)
	if email == "" && whatsapp == "" {
		return nil, ErrInviteTargetMissing
	}

	link := ReferralLink(origin, profile.ReferralCode)
	log := utils.Component("invite").With("user_id", userID)

	if email != "" {
		log.Info("email invite simulated", "email", email)
		return &InviteResult{
			Message: fmt.Sprintf("Email invite simulated for %s. Link: %s", email, link),
			Link:    link,
		}, nil
	}

	log.Info("whatsapp invite generated", "whatsapp", whatsapp)
	return &InviteResult{
		Message:     fmt.Sprintf("WhatsApp invite link generated for %s.", whatsapp),
		Link:        link,
		WhatsAppURL: WhatsAppInviteURL(profile.ReferralCode, link),
	}, nil
}

// WhatsAppInviteURL returns a wa.me share link carrying the invite text.
func WhatsAppInviteURL(code, link string) string {
	text := fmt.Sprintf("Join Financial Matrix using my referral code: %s - %s", code, link)
	return "https://wa.me/?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}
