package goHMS

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/goHMS/internal/flows"
	"github.com/MrEthical07/goHMS/internal/transport"
	"github.com/MrEthical07/goHMS/jwt"
	"github.com/MrEthical07/goHMS/permission"
	"github.com/MrEthical07/goHMS/session"
)

/*
====================================
SESSION LIFECYCLE
====================================
*/

// RestoreSession loads persisted credentials and confirms them with the API.
//
// Without a persisted access token it returns (nil, nil) and makes no request.
// A rejected token (including a failed refresh) clears every stored credential
// and also returns (nil, nil). Any other failure leaves the session
// unauthenticated in memory, keeps the persisted credentials, and is returned.
func (c *Client) RestoreSession(ctx context.Context) (*User, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	c.beginLoading()
	defer c.endLoading()

	res := flows.RunRestore(ctx, flows.RestoreDeps[User]{
		Load:     c.loadPersisted,
		Me:       c.fetchMe,
		Rejected: isRejection,
		Commit:   c.commitUser,
		Clear:    c.clearLocal,
	})

	switch res.Outcome {
	case flows.RestoreNoToken:
		return nil, nil
	case flows.RestoreAuthenticated:
		c.metricInc(MetricRestoreSuccess)
		c.emit(ctx, EventRestore, res.User.ID, nil, nil)
		return res.User.clone(), nil
	case flows.RestoreRejected:
		c.metricInc(MetricRestoreUnauthenticated)
		c.emit(ctx, EventRestore, "", ErrAuthorizationExpired, map[string]string{"outcome": "rejected"})
		if res.Err != nil {
			c.logger.WarnContext(ctx, "goHMS: clearing rejected credentials failed", "err", res.Err)
		}
		return nil, nil
	default:
		c.dropMemory()
		c.metricInc(MetricRestoreFailure)
		c.emit(ctx, EventRestore, "", res.Err, map[string]string{"outcome": "failed"})
		return nil, fmt.Errorf("goHMS: restore session: %w", res.Err)
	}
}

// Login exchanges credentials for a session. On any failure every stored
// credential is cleared, so the session is never left half set.
func (c *Client) Login(ctx context.Context, creds Credentials) (*User, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if err := c.validateInput(&creds); err != nil {
		return nil, err
	}

	user, err := c.exchange(ctx, c.config.API.LoginPath, creds)
	if err != nil {
		c.metricInc(MetricLoginFailure)
		c.emit(ctx, EventLoginFailed, "", err, nil)
		return nil, err
	}

	c.metricInc(MetricLoginSuccess)
	c.emit(ctx, EventLogin, user.ID, nil, nil)
	return user, nil
}

// Register creates an account and authenticates it exactly like [Client.Login].
// An empty role takes Config.Session.DefaultRole.
func (c *Client) Register(ctx context.Context, reg Registration) (*User, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if reg.Role == "" {
		reg.Role = c.config.Session.DefaultRole
	}
	if err := c.validateInput(&reg); err != nil {
		return nil, err
	}

	user, err := c.exchange(ctx, c.config.API.RegisterPath, reg)
	if err != nil {
		c.metricInc(MetricRegisterFailure)
		c.emit(ctx, EventRegisterFailed, "", err, nil)
		return nil, err
	}

	c.metricInc(MetricRegisterSuccess)
	c.emit(ctx, EventRegister, user.ID, nil, nil)
	return user, nil
}

func (c *Client) exchange(ctx context.Context, path string, body any) (*User, error) {
	c.beginLoading()
	defer c.endLoading()

	res := flows.RunCredentialExchange(ctx, path, body, flows.CredentialDeps[User]{
		Post: func(ctx context.Context, path string, body, out any) error {
			return c.do(transport.WithoutAuth(ctx), http.MethodPost, path, nil, body, out)
		},
		Commit:                c.commitSession,
		Clear:                 c.clearLocal,
		ErrUnexpectedResponse: ErrUnexpectedResponse,
	})
	if res.Failure == flows.CredentialFailureNone {
		return res.User.clone(), nil
	}

	err := res.Err
	if res.Failure == flows.CredentialFailureRequest {
		var apiErr *APIError
		if errors.As(err, &apiErr) && rejectsCredentials(apiErr.Status) {
			err = fmt.Errorf("%w: %w", ErrInvalidCredentials, apiErr)
		}
	}
	if res.ClearErr != nil {
		err = errors.Join(err, res.ClearErr)
	}
	return nil, err
}

func rejectsCredentials(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// Logout notifies the API, then clears the token, refresh cookie, user and
// cache, then runs the logout observers. The API call is best effort; only a
// failure to clear the token store is returned.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.RLock()
	userID := ""
	if c.user != nil {
		userID = c.user.ID
	}
	hasToken := c.token != ""
	c.mu.RUnlock()

	deps := flows.LogoutDeps{
		Warn: func(msg string, args ...any) {
			c.logger.WarnContext(ctx, msg, args...)
		},
		ClearLocal: c.clearLocal,
		Broadcast: func() {
			c.broadcastLogout(ctx, EventLogout, userID, nil)
		},
	}
	if (hasToken || c.jar.Refresh() != nil) && !c.closed.Load() {
		deps.Post = func(ctx context.Context, path string) error {
			return c.do(transport.WithoutRefresh(ctx), http.MethodPost, path, nil, nil, nil)
		}
	}

	err := flows.RunLogout(ctx, c.config.API.LogoutPath, deps)
	c.metricInc(MetricLogout)
	return err
}

// OnLogout registers fn to run after every logout, explicit or forced by a
// failed refresh. Callbacks run synchronously on the goroutine that ended the
// session. The returned func unregisters fn.
func (c *Client) OnLogout(fn func()) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	c.observersMu.Lock()
	c.nextObserver++
	id := c.nextObserver
	c.observers[id] = fn
	c.observersMu.Unlock()

	return func() {
		c.observersMu.Lock()
		delete(c.observers, id)
		c.observersMu.Unlock()
	}
}

func (c *Client) broadcastLogout(ctx context.Context, typ EventType, userID string, cause error) {
	c.observersMu.Lock()
	fns := make([]func(), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.observersMu.Unlock()

	for _, fn := range fns {
		fn()
	}
	c.emit(ctx, typ, userID, cause, nil)
}

/*
====================================
PERMISSIONS
====================================
*/

// HasPermission reports whether the current user's role may perform action on
// resource. It is false without a user and for any pair missing from the table.
func (c *Client) HasPermission(resource, action string) bool {
	user := c.CurrentUser()
	if user == nil {
		return false
	}
	return c.roles.Allowed(string(user.Role), resource, action)
}

// PermissionScope returns the current user's scope on resource.
func (c *Client) PermissionScope(resource string) (permission.Scope, bool) {
	user := c.CurrentUser()
	if user == nil {
		return "", false
	}
	return c.roles.ScopeOf(string(user.Role), resource)
}

// CanAccess is HasPermission plus the ownership check for "own" scoped grants.
func (c *Client) CanAccess(resource, action, ownerID string) bool {
	user := c.CurrentUser()
	if user == nil {
		return false
	}
	return c.roles.CanAccess(string(user.Role), resource, action, user.ID, ownerID)
}

/*
====================================
ACCESSORS
====================================
*/

// CurrentUser returns a copy of the authenticated user, or nil.
func (c *Client) CurrentUser() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return nil
	}
	return c.user.clone()
}

// IsAuthenticated reports whether both a user and an access token are held.
func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user != nil && c.token != ""
}

// IsLoading reports whether a restore, login or register is in progress.
func (c *Client) IsLoading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading > 0
}

// Session returns a snapshot of the session.
func (c *Client) Session() SessionSnapshot {
	c.mu.RLock()
	token := c.token
	snap := SessionSnapshot{
		Authenticated: c.user != nil && token != "",
		Loading:       c.loading > 0,
	}
	if token != "" {
		snap.User = c.user.clone()
	}
	c.mu.RUnlock()

	if token != "" {
		snap.AccessTokenExpiry = jwt.ExpiresAt(token)
	}
	if rc := c.jar.Refresh(); rc != nil && rc.Expires != 0 {
		snap.RefreshExpiry = time.Unix(rc.Expires, 0)
	}
	return snap
}

/*
====================================
TOKEN STATE (single writer)
====================================
*/

func (c *Client) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) beginLoading() {
	c.mu.Lock()
	c.loading++
	c.mu.Unlock()
}

func (c *Client) endLoading() {
	c.mu.Lock()
	c.loading--
	c.mu.Unlock()
}

// refresh is the transport's RefreshFunc. A rejected refresh ends the session
// unless a concurrent refresh already replaced stale; a transport failure
// never does.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	c.mu.RLock()
	epoch := c.epoch
	c.mu.RUnlock()

	res := flows.RunRefresh(ctx, flows.RefreshDeps{
		Path:      c.config.API.RefreshPath,
		HasCookie: func() bool { return c.jar.Refresh() != nil },
		Post: func(ctx context.Context, path string, out any) error {
			return c.do(transport.WithoutAuth(ctx), http.MethodPost, path, nil, nil, out)
		},
		Epoch: func() uint64 { return epoch },
		Apply: c.applyRefreshed,
	})

	switch res.Failure {
	case flows.RefreshFailureNone:
		c.metricInc(MetricRefreshSuccess)
		c.emit(ctx, EventRefresh, c.userID(), nil, nil)
		return res.Token, nil
	case flows.RefreshFailureSuperseded:
		c.metricInc(MetricRefreshFailure)
		return "", fmt.Errorf("%w: %w: session changed during refresh", ErrRefreshFailed, ErrAuthorizationExpired)
	}

	if res.Failure == flows.RefreshFailureRequest && !refreshRejected(res.Err) {
		c.metricInc(MetricRefreshFailure)
		c.emit(ctx, EventRefreshFailed, c.userID(), res.Err, nil)
		return "", res.Err
	}

	cause := res.Err
	switch res.Failure {
	case flows.RefreshFailureNoCookie:
		cause = errors.New("no refresh cookie")
	case flows.RefreshFailureEmptyToken:
		cause = fmt.Errorf("%w: empty refresh token", ErrUnexpectedResponse)
	}
	err := fmt.Errorf("%w: %w: %w", ErrRefreshFailed, ErrAuthorizationExpired, cause)

	c.metricInc(MetricRefreshFailure)
	if token, ok := c.replacedToken(epoch, stale); ok {
		c.logger.DebugContext(ctx, "goHMS: refresh lost to a concurrent exchange, replaying with current token", "err", cause)
		return token, nil
	}
	c.emit(ctx, EventRefreshFailed, c.userID(), cause, nil)
	c.forceLogout(ctx, epoch, err)
	return "", err
}

// refreshRejected reports whether a refresh request failed because the server
// refused the cookie rather than because it could not be reached.
func refreshRejected(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests
}

// isRejection reports whether restore should discard the persisted session.
// An unreadable blob is as unusable as a rejected token.
func isRejection(err error) bool {
	return errors.Is(err, ErrAuthorizationExpired) ||
		errors.Is(err, ErrRefreshFailed) ||
		errors.Is(err, session.ErrStateCorrupt)
}

// replacedToken returns the current access token when the session is still at
// epoch and its token is no longer the one a rejected request carried.
func (c *Client) replacedToken(epoch uint64, stale string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.epoch != epoch || c.token == "" || c.token == stale {
		return "", false
	}
	return c.token, true
}

func (c *Client) applyRefreshed(ctx context.Context, epoch uint64, token string) bool {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return false
	}
	c.token = token
	c.mu.Unlock()

	if err := c.persist(ctx); err != nil {
		c.logger.WarnContext(ctx, "goHMS: persisting refreshed token failed", "err", err)
	}
	return true
}

func (c *Client) forceLogout(ctx context.Context, epoch uint64, cause error) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	hadSession := c.token != "" || c.user != nil
	userID := ""
	if c.user != nil {
		userID = c.user.ID
	}
	c.token = ""
	c.user = nil
	c.epoch++
	c.mu.Unlock()

	c.jar.Clear()
	c.cache.Clear()
	if err := c.store.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.WarnContext(ctx, "goHMS: clearing token store failed", "err", err)
	}
	if !hadSession {
		return
	}

	c.metricInc(MetricForcedLogout)
	c.broadcastLogout(ctx, EventForcedLogout, userID, cause)
}

func (c *Client) commitSession(ctx context.Context, token string, user *User) error {
	c.mu.Lock()
	prev := c.user
	c.token = token
	c.user = user.clone()
	c.epoch++
	c.mu.Unlock()

	if prev == nil || prev.ID != user.ID {
		c.cache.Clear()
	}
	return c.persist(ctx)
}

func (c *Client) commitUser(ctx context.Context, user *User) error {
	c.mu.Lock()
	c.user = user.clone()
	c.mu.Unlock()
	return c.persist(ctx)
}

func (c *Client) loadPersisted(ctx context.Context) (bool, error) {
	st, err := c.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if st == nil || st.AccessToken == "" {
		return false, nil
	}

	c.mu.Lock()
	c.token = st.AccessToken
	c.user = nil
	c.epoch++
	c.mu.Unlock()

	c.jar.Clear()
	c.jar.Restore(st.Refresh)
	return true, nil
}

func (c *Client) fetchMe(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, c.config.API.MePath, nil, nil, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: user without id", ErrUnexpectedResponse)
	}
	return &user, nil
}

func (c *Client) persist(ctx context.Context) error {
	c.mu.RLock()
	st := &session.State{
		AccessToken: c.token,
		Refresh:     c.jar.Refresh(),
		SavedAt:     time.Now().Unix(),
	}
	if c.user != nil {
		st.UserID = c.user.ID
	}
	c.mu.RUnlock()

	return c.store.Save(ctx, st)
}

func (c *Client) clearLocal(ctx context.Context) error {
	c.dropMemory()
	c.cache.Clear()
	return c.store.Clear(ctx)
}

// dropMemory forgets the in-memory credentials without touching the store.
func (c *Client) dropMemory() {
	c.mu.Lock()
	c.token = ""
	c.user = nil
	c.epoch++
	c.mu.Unlock()
	c.jar.Clear()
}

func (c *Client) userID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return ""
	}
	return c.user.ID
}
