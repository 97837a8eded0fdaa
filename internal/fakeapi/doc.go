// Package fakeapi is an in-memory implementation of the inventory HTTP API
// used by tests and by the CLI's --demo mode. It mirrors the remote
// service's routes, status codes and {"detail": ...} error bodies closely
// enough for the client packages to be exercised end to end.
package fakeapi
