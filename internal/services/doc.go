// Package services talks to VK.
//
// # Login
//
// VK issues tokens to desktop applications through the OAuth implicit grant. [AuthFlow]
// drives it the way a browser would: it fetches the authorization page, fills the login form
// ([ParseForm]) with the user's credentials, submits the consent form when one is shown and
// reads access_token, user_id and expires_in from the fragment of the blank.html redirect.
// Every step is a method of [AuthFlow] moving between [AuthState] values. The cookie jar lives
// for one Authenticate call.
//
// # API calls
//
// [Client.Call] issues one GET to <api_url>/<method> with compiled [Params] plus access_token
// and v. Errors returned by VK come back as [*APIError]; compare codes with errors.Is against
// [ErrAuthorization] and the other well known values.
//
// # Pagination
//
// [List] and [ListAs] walk {"count","items"} responses with count/offset, lazily. The position
// is a [Cursor] value whose Advance step decides when to stop:
//   - the item limit is reached, even mid-page
//   - only the first page was asked for
//   - the offset reached the reported count
//   - a page came back empty
//
// # Errors
//
//   - [ErrCredentials] : login or password rejected
//   - [ErrProtocol] : VK markup or redirects changed, wraps [ErrMalformedPage],
//     [ErrUnsupportedMethod] or [ErrTokenExtraction]
//   - [ErrTransport] : network failure or a body that is not JSON
//   - [*APIError] : VK rejected a method call
//
// Nothing in this package retries.
package services
