// Package reauth issues and verifies signed re-authentication proof tokens.
//
// When the session validator demands re-authentication, the upstream identity
// provider re-verifies the user's credentials and asks the engine for a proof
// token bound to (user, session). Presenting the proof clears the re-auth
// violation. Tokens are short-lived and single-purpose; they are not access
// tokens.
package reauth
