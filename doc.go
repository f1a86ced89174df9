// Package navauth is the client side session and navigation guard layer of
// the storefront. It decides, for every route transition, whether the user
// may proceed, must sign in first, or must be bounced away from auth-only
// pages, and keeps that decision in step with an auth provider whose session
// can change at any time.
//
// Session cell:
//   - SessionHolder is the single writer of the current Session. Provider
//     notifications are queued on the Loop and applied there; CurrentSession
//     is a lock free read of the last applied value. Malformed or expired
//     sessions are treated as signed out.
//
// Event bus:
//   - Every transition is published on TopicAuth ("sign-in") of the App's
//     Bus. Delivery is synchronous, ordered, at most once; a failing handler
//     does not stop the others.
//
// Guards:
//   - GuardEngine evaluates a route chain parent first against the session
//     snapshot: RequiresAuth without a session redirects to sign in,
//     RequiresNoAuth with a session redirects home. Untagged routes are
//     Public. The reset password route only admits recovery links and the
//     callback route only admits complete token fragments.
//
// Router:
//   - Router serializes navigations on the Loop, lets the most recent
//     request win, forces sign in on SIGNED_OUT and leaves the callback view
//     one turn after SIGNED_IN.
package navauth
