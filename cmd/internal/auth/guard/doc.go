// Package guard redirects requests for protected pages that carry no session
// cookie, before any handler runs.
//
// Only cookie presence is checked. A stale or forged cookie passes the guard
// and is rejected later by the session resolver or by the task backend's token
// verification. Sign-in and sign-up pages are always let through so a stale
// cookie cannot cause a redirect loop.
package guard
