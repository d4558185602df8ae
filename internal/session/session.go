// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package session decides when a cached password may be reused for signing.
//
// A Manager holds at most one password. The password is usable while less
// than ActiveWindow has passed since it was supplied or last slid forward by
// activity. Independently, InactivityWindow without activity logs the
// session out entirely. Amounts at or above LargeTxThreshold always require
// the password to be entered again.
//
// Expiry is evaluated lazily on every call against an injectable clock, so
// no timers run in the background.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aplane-algo/apbridge/internal/crypto"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

var (
	// ErrSessionExpired means the cached password aged out. Prompt and
	// call SupplyPassword.
	ErrSessionExpired = errors.New("session expired: password required")

	// ErrAuthenticationRequired means the amount is at or above the
	// large-transaction threshold. A cached password is never used for it.
	ErrAuthenticationRequired = errors.New("authentication required for large transaction")

	// ErrNotLoggedIn means there is no session, or it was ended by inactivity.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrTooManyAttempts means password attempts are being throttled.
	ErrTooManyAttempts = errors.New("too many password attempts, try again later")
)

// PasswordRequired reports whether err is a session outcome that a UI should
// answer with a password prompt.
func PasswordRequired(err error) bool {
	return errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrAuthenticationRequired) ||
		errors.Is(err, ErrNotLoggedIn)
}

// Config holds the session windows and threshold.
type Config struct {
	ActiveWindow     time.Duration
	InactivityWindow time.Duration
	LargeTxThreshold decimal.Decimal
}

// DefaultConfig returns 10 minute active window, 60 minute inactivity
// window and a threshold of 1000.
func DefaultConfig() Config {
	return Config{
		ActiveWindow:     10 * time.Minute,
		InactivityWindow: 60 * time.Minute,
		LargeTxThreshold: decimal.NewFromInt(1000),
	}
}

// Validate checks that every window and the threshold are positive.
func (c Config) Validate() error {
	if c.ActiveWindow <= 0 {
		return fmt.Errorf("active window must be positive, got %s", c.ActiveWindow)
	}
	if c.InactivityWindow <= 0 {
		return fmt.Errorf("inactivity window must be positive, got %s", c.InactivityWindow)
	}
	if !c.LargeTxThreshold.IsPositive() {
		return fmt.Errorf("large transaction threshold must be positive, got %s", c.LargeTxThreshold)
	}
	return nil
}

// LogoutReason says why a session ended.
type LogoutReason string

const (
	LogoutExplicit   LogoutReason = "explicit"
	LogoutInactivity LogoutReason = "inactivity"
)

// PasswordChecker verifies a password, typically by deriving from the vault.
type PasswordChecker func(password []byte) error

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithChecker verifies passwords passed to Login and SupplyPassword.
func WithChecker(check PasswordChecker) Option {
	return func(m *Manager) { m.check = check }
}

// WithAttemptLimit allows burst password attempts, refilled at r.
func WithAttemptLimit(r rate.Limit, burst int) Option {
	return func(m *Manager) { m.limiter = rate.NewLimiter(r, burst) }
}

// OnLogout registers fn to run after the session ends. It is called without
// the Manager's lock held.
func OnLogout(fn func(LogoutReason)) Option {
	return func(m *Manager) { m.onLogout = fn }
}

// Manager is the session state for one authenticated identity.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	now      func() time.Time
	check    PasswordChecker
	limiter  *rate.Limiter
	onLogout func(LogoutReason)

	loggedIn     bool
	password     *crypto.SecureString
	passwordAt   time.Time
	lastActivity time.Time
}

// New returns a logged-out Manager.
func New(cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:     cfg,
		now:     time.Now,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Config returns the session configuration.
func (m *Manager) Config() Config { return m.cfg }

// Login verifies password if a checker is configured, then starts a session
// with the password cached and both windows starting now.
func (m *Manager) Login(password []byte) error {
	if err := m.verify(password); err != nil {
		return err
	}
	return m.LoginVerified(password)
}

// LoginVerified starts a session like Login but skips the checker, for a
// password the caller has just used to open the vault.
func (m *Manager) LoginVerified(password []byte) error {
	if len(password) == 0 {
		return fmt.Errorf("password must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.storePasswordLocked(password, m.now())
	m.loggedIn = true
	return nil
}

// Logout ends the session and wipes the cached password.
func (m *Manager) Logout() {
	m.mu.Lock()
	wasLoggedIn := m.loggedIn
	m.clearLocked()
	m.mu.Unlock()

	if wasLoggedIn {
		m.notify(LogoutExplicit)
	}
}

// TrackActivity records user activity. While logged in it resets the
// inactivity window and, if a password is cached, slides its window too.
func (m *Manager) TrackActivity() {
	var reason LogoutReason
	defer func() { m.notify(reason) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if reason = m.expireLocked(now); !m.loggedIn {
		return
	}
	m.lastActivity = now
	if m.password != nil {
		m.passwordAt = now
	}
}

// PasswordForAction returns a copy of the cached password for an action of
// the given amount. The copy belongs to the caller, stays valid for the whole
// signing operation and must be destroyed afterwards.
func (m *Manager) PasswordForAction(amount decimal.Decimal) (*crypto.SecureString, error) {
	var reason LogoutReason
	defer func() { m.notify(reason) }()

	if amount.GreaterThanOrEqual(m.cfg.LargeTxThreshold) {
		return nil, fmt.Errorf("%w: %s >= %s", ErrAuthenticationRequired, amount, m.cfg.LargeTxThreshold)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	reason = m.expireLocked(m.now())
	if !m.loggedIn {
		return nil, ErrNotLoggedIn
	}
	if m.password == nil {
		return nil, ErrSessionExpired
	}
	return m.password.Clone(), nil
}

// NeedsPassword reports whether an action of this amount would need the
// user to enter a password.
func (m *Manager) NeedsPassword(amount decimal.Decimal) bool {
	if amount.GreaterThanOrEqual(m.cfg.LargeTxThreshold) {
		return true
	}

	var reason LogoutReason
	defer func() { m.notify(reason) }()

	m.mu.Lock()
	defer m.mu.Unlock()
	reason = m.expireLocked(m.now())
	return !m.loggedIn || m.password == nil
}

// SupplyPassword is the answer to a password prompt. Attempts are throttled.
// A verified password is cached and the session is logged in if it was not.
func (m *Manager) SupplyPassword(password []byte) error {
	if err := m.Attempt(); err != nil {
		return err
	}
	return m.Login(password)
}

// Attempt consumes one password attempt from the shared throttle. Callers
// that verify a password themselves must call it before trying the password.
func (m *Manager) Attempt() error {
	if !m.limiter.AllowN(m.now(), 1) {
		return ErrTooManyAttempts
	}
	return nil
}

// IsLoggedIn reports whether a session is active.
func (m *Manager) IsLoggedIn() bool {
	var reason LogoutReason
	defer func() { m.notify(reason) }()

	m.mu.Lock()
	defer m.mu.Unlock()
	reason = m.expireLocked(m.now())
	return m.loggedIn
}

// IsUnlocked reports whether a cached password is currently usable.
func (m *Manager) IsUnlocked() bool {
	var reason LogoutReason
	defer func() { m.notify(reason) }()

	m.mu.Lock()
	defer m.mu.Unlock()
	reason = m.expireLocked(m.now())
	return m.loggedIn && m.password != nil
}

// Status is a snapshot for display.
type Status struct {
	LoggedIn     bool
	Unlocked     bool
	PasswordLeft time.Duration // until the cached password expires
	InactiveLeft time.Duration // until the inactivity logout
	LastActivity time.Time
}

// Status returns the current session state.
func (m *Manager) Status() Status {
	var reason LogoutReason
	defer func() { m.notify(reason) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	reason = m.expireLocked(now)
	s := Status{LoggedIn: m.loggedIn, LastActivity: m.lastActivity}
	if !m.loggedIn {
		return s
	}
	s.InactiveLeft = m.cfg.InactivityWindow - now.Sub(m.lastActivity)
	if m.password != nil {
		s.Unlocked = true
		s.PasswordLeft = m.cfg.ActiveWindow - now.Sub(m.passwordAt)
	}
	return s
}

func (m *Manager) verify(password []byte) error {
	if len(password) == 0 {
		return fmt.Errorf("password must not be empty")
	}
	if m.check == nil {
		return nil
	}
	return m.check(password)
}

func (m *Manager) storePasswordLocked(password []byte, now time.Time) {
	if m.password != nil {
		m.password.Destroy()
	}
	m.password = crypto.NewSecureStringFromBytes(password)
	m.passwordAt = now
	m.lastActivity = now
}

// expireLocked applies both windows at now. It returns LogoutInactivity if
// this call ended the session.
func (m *Manager) expireLocked(now time.Time) LogoutReason {
	if !m.loggedIn {
		return ""
	}
	if now.Sub(m.lastActivity) >= m.cfg.InactivityWindow {
		m.clearLocked()
		return LogoutInactivity
	}
	if m.password != nil && now.Sub(m.passwordAt) >= m.cfg.ActiveWindow {
		m.password.Destroy()
		m.password = nil
		m.passwordAt = time.Time{}
	}
	return ""
}

func (m *Manager) clearLocked() {
	if m.password != nil {
		m.password.Destroy()
		m.password = nil
	}
	m.passwordAt = time.Time{}
	m.loggedIn = false
}

func (m *Manager) notify(reason LogoutReason) {
	if reason != "" && m.onLogout != nil {
		m.onLogout(reason)
	}
}
