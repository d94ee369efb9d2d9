package waap

import (
	"fmt"

	"github.com/waapdemo/sui-demo-backend/internal/suikeys"
	"github.com/waapdemo/sui-demo-backend/internal/wallet"
)

const (
	SocialGoogle  = "google"
	SocialTwitter = "twitter"
	SocialDiscord = "discord"
	SocialGithub  = "github"

	AuthEmail  = "email"
	AuthSocial = "social"
	AuthPhone  = "phone"
	AuthWallet = "wallet"
)

var (
	knownSocials     = map[string]bool{SocialGoogle: true, SocialTwitter: true, SocialDiscord: true, SocialGithub: true}
	knownAuthMethods = map[string]bool{AuthEmail: true, AuthSocial: true, AuthPhone: true, AuthWallet: true}
)

// Options configure a wallet instance. The first group mirrors the SDK init
// call; the rest supplies what the hosted wallet would otherwise hold.
type Options struct {
	UseStaging            bool
	AllowedSocials        []string
	AuthenticationMethods []string
	DarkMode              bool
	ReferralCode          string

	// Keypair is the account key. A secp256k1 key is generated when nil.
	Keypair *suikeys.Keypair

	DefaultChain wallet.Chain

	// RememberLogin lets a silent connect authorize the account, as a
	// persisted WaaP login session would.
	RememberLogin bool

	Email string

	// EmailConsent decides whether RequestEmail may reveal Email.
	// When nil, AutoConsentEmail is used.
	EmailConsent func(address string) bool

	AutoConsentEmail bool
}

func DefaultOptions() Options {
	return Options{
		UseStaging:            false,
		AllowedSocials:        []string{SocialGoogle, SocialTwitter},
		AuthenticationMethods: []string{AuthEmail, AuthSocial},
		DarkMode:              false,
		ReferralCode:          "waap-sui-demo",
		DefaultChain:          wallet.ChainTestnet,
	}
}

func (o Options) validate() error {
	for _, s := range o.AllowedSocials {
		if !knownSocials[s] {
			return fmt.Errorf("unknown social provider %q", s)
		}
	}
	if len(o.AuthenticationMethods) == 0 {
		return fmt.Errorf("at least one authentication method is required")
	}
	for _, m := range o.AuthenticationMethods {
		if !knownAuthMethods[m] {
			return fmt.Errorf("unknown authentication method %q", m)
		}
	}
	if o.DefaultChain != "" && !o.DefaultChain.Valid() {
		return fmt.Errorf("%w: %s", wallet.ErrUnknownChain, o.DefaultChain)
	}
	return nil
}

func (o Options) consents(address string) bool {
	if o.EmailConsent != nil {
		return o.EmailConsent(address)
	}
	return o.AutoConsentEmail
}
