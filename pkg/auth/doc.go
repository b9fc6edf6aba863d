// Package auth coordinates password login for simple-auth.
//
// A login passes through three gates in order:
//
//  1. the login-attempt tracker: a key that failed too often is rejected with
//     USER_LOCKED and the remaining lockout minutes, before credentials are checked
//  2. an optional captcha
//  3. the CredentialVerifier: failures are counted against the key and reported as a
//     generic INVALID_CREDENTIALS error that does not say which field was wrong
//
// A successful login clears the key and returns an access token, a refresh token,
// their lifetimes in seconds and a UserInfo summary.
//
// Per-IP throttling happens before the request reaches this package, in the
// ratelimit middleware.
//
// # Basic Usage
//
//	tracker := loginattempt.NewTracker()
//	tokens := tokengenerator.NewJwtService(cfg.JWT.Secret)
//	repo := user.NewInMemoryUserRepository()
//
//	svc := auth.NewService(tracker, tokens, auth.NewPasswordVerifier(repo), repo)
//	result, err := svc.Login(ctx, auth.LoginParams{Username: "alice", Password: "secret123"})
//
// Mounting the HTTP endpoints:
//
//	h := auth.NewHandle(svc, auth.WithRegistration(userService, captchaService))
//	r.Route("/api/auth", h.RegisterRoutes)
//	r.Route("/api/users", h.RegisterUserRoutes)
package auth
