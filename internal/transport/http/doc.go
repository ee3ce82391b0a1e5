// Package http contains the dashboard's HTTP transport: chi routers for the
// retention report API, the analysis trigger, health checks, and the
// websocket progress feed. Handlers hold no business logic; they translate
// requests into service calls and service errors into JSON responses.
package http
