// Package transport is the HTTP request/response core of the shiftdesk
// client.
//
// # Overview
//
// Every call goes through Client.Send, which:
//  1. Decorates the request (Accept-Language, Content-Type, X-Request-ID,
//     session cookies) and waits on the optional rate limiter.
//  2. Issues the round trip.
//  3. On success, runs the body through the Pipeline: decrypt-if-needed,
//     then numeric normalisation. Binary requests skip the Pipeline.
//  4. On 401, hands the request to the refresh coordinator, which performs
//     at most one credential refresh at a time, parks concurrent callers in
//     a FIFO queue and replays them in arrival order once it succeeds.
//  5. On any other failure, normalises it through the Classifier into an
//     *APIError and surfaces a notice unless the request opted out.
//
// # Error Handling
//
// Ordinary failures come back as an *APIError; match its kind with
// errors.Is against ErrAuthExpired, ErrAuthRefreshFailed,
// ErrClientValidation, ErrForbidden, ErrNotFound, ErrNetwork,
// ErrServerFault or ErrBlobDecode. A failed credential refresh also tears
// the session down, whatever the caller asked for.
//
// # Concurrency
//
// A Client is safe for concurrent use. The refresh flag and queue are the
// only shared mutable state and are guarded by a mutex.
package transport
