package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Authenticate.Verify != nil && s.deps.Authenticate.Store != nil
}

func (s Service) Register(ctx context.Context, req RegisterRequest) RegisterResult {
	return RunRegister(ctx, req, s.deps.Register)
}

func (s Service) Login(ctx context.Context, email, password string) LoginResult {
	return RunLogin(ctx, email, password, s.deps.Login)
}

func (s Service) IssuePair(ctx context.Context, userID, role string) (TokenPair, error) {
	return RunIssuePair(ctx, userID, role, s.deps.Issue)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, userID, accessJTI string) {
	RunLogout(ctx, userID, accessJTI, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, userID string) int {
	return RunLogoutAll(ctx, userID, s.deps.Logout)
}

func (s Service) Authenticate(ctx context.Context, token string) AuthenticateResult {
	return RunAuthenticate(ctx, token, s.deps.Authenticate)
}

func (s Service) ListSessions(ctx context.Context, userID string) []SessionRef {
	return RunListSessions(ctx, userID, s.deps.Logout)
}
