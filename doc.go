// Package auth manages login credentials for accounts owned by another
// service. A credential binds an account id to an email and a bcrypt password
// hash, and starts disabled until the activation link sent by email is used.
//
// Lifecycle:
//   - Service.Register stores a pending credential with a 4 character hex
//     activation code and hands the link <base>/activate/<id>+<code> to the
//     configured Notifier. Delivery failures are logged and reported as
//     activity unless strict notification is enabled.
//   - Service.Activate requires both the credential id and the code. Activating
//     an active credential is a no-op.
//   - Service.Login rejects pending credentials with ErrAccountNotActivated and
//     otherwise issues an HS256 bearer token valid for LoginTokenTTL.
//   - Service.ValidateToken resolves the token subject back to a credential.
//
// Activity sinks:
//   - ActivitySink receives one ActivityEvent per operation outcome. Sinks run
//     best effort (errors are logged) so metrics or audit forwarding never fail
//     a request.
//
// Storage is provided by NewCredentialsRepository on bun. The schema lives in
// data/sql/migrations and is applied by the persistence package.
package auth
