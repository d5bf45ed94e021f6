// Package archivebox speaks the ArchiveBox admin wire protocol.
//
// ArchiveBox has no token API for adding URLs, so the client drives the
// Django admin the way a browser does:
//
//  1. GET  /admin/login   -> Set-Cookie: csrftoken=...
//  2. POST /admin/login/  -> Set-Cookie: sessionid=...
//  3. POST /add/          with Cookie: sessionid=...
//
// Redirects are never followed because the session cookie arrives on the
// redirect response of step 2. Any status from 200 through 302 counts as
// success.
//
// # Usage
//
//	client := archivebox.NewClient(logger)
//
//	sessionID, err := client.Login(ctx, cfg)
//	if err != nil {
//	    return err // wraps types.ErrLoginFailed
//	}
//
//	err = client.Add(ctx, cfg, sessionID, []string{"https://example.com"})
//	switch {
//	case archivebox.IsTimeout(err):
//	    // the server is still processing; not a failure
//	case errors.Is(err, types.ErrSessionExpired):
//	    // log in again
//	}
//
// When basic auth is enabled every request carries an Authorization header.
package archivebox
