// Package httpmw provides the gorilla/mux middlewares digestd installs in
// front of the digest stage: request IDs with a request-scoped logrus
// logger, access logging, panic recovery and request body limits.
package httpmw
