// Package session provides the Redis-backed active-session registry consulted
// by the security validator: session lookup, per-user session index,
// concurrent-session counting, terminate-oldest enforcement, and re-auth
// timestamps.
//
// The store performs no policy decisions. It answers point-in-time questions
// ("does this session exist", "how many live sessions does this user have")
// and executes explicit mutations ordered by the Engine.
package session
