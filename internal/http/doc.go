// Package http exposes the patient portal's REST surface.
//
// Public endpoints:
//
//	POST /register
//	POST /auth/login
//	POST /auth/verify
//	POST /auth/resend
//	POST /auth/refresh
//	POST /auth/logout
//	POST /auth/password-reset
//	POST /auth/password-reset/complete
//
// Bearer-token protected endpoints:
//
//	POST   /auth/password
//	GET    /profile            PUT /profile            DELETE /profile
//	GET    /dependents         POST /dependents
//	PUT    /dependents/{id}    DELETE /dependents/{id}
//	GET    /appointments       POST /appointments
//	PUT    /appointments/{id}  DELETE /appointments/{id}
//	GET    /doctors/{id}/availability
//	GET    /units              GET /specialties        GET /doctors
//
// Handlers translate wire payloads to application calls and map the
// application's error sentinels to stable error codes through the responder.
package http
